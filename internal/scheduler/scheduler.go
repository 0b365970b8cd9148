// Package scheduler runs the periodic housekeeping jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/amaumene/gostremiodebrid/pkg/logger"
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// Task is a job run every Every.
type Task struct {
	Name  string
	Every time.Duration
	Func  TaskFunc
}

// Scheduler wraps gocron. A task never overlaps with itself.
type Scheduler struct {
	gocron gocron.Scheduler
	logger logger.Logger

	mu    sync.Mutex
	tasks map[string]Task
}

func New(log logger.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{gocron: gs, logger: log, tasks: make(map[string]Task)}, nil
}

func (s *Scheduler) Register(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.Name]; exists {
		return fmt.Errorf("task %q already registered", t.Name)
	}
	if t.Every <= 0 {
		return fmt.Errorf("task %q: interval must be positive", t.Name)
	}

	_, err := s.gocron.NewJob(
		gocron.DurationJob(t.Every),
		gocron.NewTask(func() { s.execute(context.Background(), t) }),
		gocron.WithName(t.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", t.Name, err)
	}
	s.tasks[t.Name] = t
	s.logger.Debugf("[Scheduler] registered %s every %s", t.Name, t.Every)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, t Task) error {
	start := time.Now()
	err := t.Func(ctx)
	if err != nil {
		s.logger.Errorf("[Scheduler] %s failed after %s: %v", t.Name, time.Since(start), err)
		return err
	}
	s.logger.Debugf("[Scheduler] %s completed in %s", t.Name, time.Since(start))
	return nil
}

// RunNow runs a registered task synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %q not found", name)
	}
	return s.execute(ctx, t)
}

func (s *Scheduler) Start() {
	s.logger.Infof("[Scheduler] starting %d tasks", len(s.tasks))
	s.gocron.Start()
}

func (s *Scheduler) Stop() error {
	return s.gocron.Shutdown()
}
