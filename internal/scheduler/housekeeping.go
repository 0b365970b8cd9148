package scheduler

import (
	"context"
	"time"

	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

const (
	TaskTorrentInfosCleanup = "torrent-infos-cleanup"
	TaskCacheCleanup        = "cache-cleanup"
	TaskRateLimitPrune      = "rate-limit-prune"
)

type TorrentInfoCleaner interface {
	Cleanup(retention time.Duration) (int, error)
}

type ExpiredCleaner interface {
	CleanExpired() int
}

type Pruner interface {
	Prune() int
}

// Housekeeping lists what the periodic jobs clean. Nil members are skipped.
type Housekeeping struct {
	TorrentInfos TorrentInfoCleaner
	Retention    time.Duration
	Memory       ExpiredCleaner
	Limiter      Pruner
}

// Tasks builds the housekeeping jobs.
func (h Housekeeping) Tasks(log logger.Logger) []Task {
	var tasks []Task
	if h.TorrentInfos != nil && h.Retention > 0 {
		tasks = append(tasks, Task{Name: TaskTorrentInfosCleanup, Every: 24 * time.Hour, Func: func(context.Context) error {
			removed, err := h.TorrentInfos.Cleanup(h.Retention)
			if err != nil {
				return err
			}
			log.Infof("[Housekeeping] removed %d torrent infos older than %s", removed, h.Retention)
			return nil
		}})
	}
	if h.Memory != nil {
		tasks = append(tasks, Task{Name: TaskCacheCleanup, Every: time.Hour, Func: func(context.Context) error {
			log.Debugf("[Housekeeping] removed %d expired cache entries", h.Memory.CleanExpired())
			return nil
		}})
	}
	if h.Limiter != nil {
		tasks = append(tasks, Task{Name: TaskRateLimitPrune, Every: 10 * time.Minute, Func: func(context.Context) error {
			h.Limiter.Prune()
			return nil
		}})
	}
	return tasks
}
