// Package database provides data persistence using BoltDB.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/amaumene/gostremiodebrid/internal/models"
)

const (
	// Default database file permissions
	dbFileMode = 0600
	dbDirMode  = 0755

	// Default database filename
	defaultDBFile = "data.db"

	openTimeout = 5 * time.Second
)

var (
	bucketInfos = []byte("torrent_infos")
	bucketFiles = []byte("torrent_files")
)

// Database defines the persistence operations for torrent technical infos.
type Database interface {
	// StoreTorrentInfos saves the infos and, when given, the raw .torrent
	StoreTorrentInfos(infos *models.TorrentInfos, raw []byte) error
	// GetTorrentInfos returns nil without error when the id is unknown
	GetTorrentInfos(id string) (*models.TorrentInfos, error)
	// GetTorrentFile returns nil without error when no file was stored
	GetTorrentFile(id string) ([]byte, error)
	// DeleteOlderThan removes infos created before now minus olderThan
	DeleteOlderThan(olderThan time.Duration) (int, error)
	Ping() error
	Close() error
}

// BoltDB implements the Database interface using bbolt.
type BoltDB struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBolt creates a new BoltDB database instance.
// If dbPath is empty, uses the default database file in current directory.
func NewBolt(dbPath string) (*BoltDB, error) {
	if dbPath == "" {
		dbPath = filepath.Join(".", defaultDBFile)
	}

	// Ensure database directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, dbDirMode); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, dbFileMode, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketInfos, bucketFiles} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltDB{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// Ping checks that the database is still readable.
func (b *BoltDB) Ping() error {
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketInfos) == nil {
			return errors.New("torrent_infos bucket missing")
		}
		return nil
	})
}

func (b *BoltDB) StoreTorrentInfos(infos *models.TorrentInfos, raw []byte) error {
	if infos.ID == "" {
		return errors.New("torrent infos without id")
	}
	if infos.CreatedAt.IsZero() {
		infos.CreatedAt = b.now()
	}
	data, err := json.Marshal(infos)
	if err != nil {
		return fmt.Errorf("failed to encode torrent infos: %w", err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketInfos).Put([]byte(infos.ID), data); err != nil {
			return err
		}
		if len(raw) > 0 {
			return tx.Bucket(bucketFiles).Put([]byte(infos.ID), raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store torrent infos: %w", err)
	}
	return nil
}

func (b *BoltDB) GetTorrentInfos(id string) (*models.TorrentInfos, error) {
	var infos *models.TorrentInfos
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketInfos).Get([]byte(id))
		if data == nil {
			return nil
		}
		infos = &models.TorrentInfos{}
		return json.Unmarshal(data, infos)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent infos: %w", err)
	}
	return infos, nil
}

func (b *BoltDB) GetTorrentFile(id string) ([]byte, error) {
	var raw []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketFiles).Get([]byte(id)); data != nil {
			// bbolt memory is only valid inside the transaction
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent file: %w", err)
	}
	return raw, nil
}

// DeleteOlderThan is used by the housekeeping job.
func (b *BoltDB) DeleteOlderThan(olderThan time.Duration) (int, error) {
	cutoff := b.now().Add(-olderThan)
	removed := 0

	err := b.db.Update(func(tx *bolt.Tx) error {
		infosBucket := tx.Bucket(bucketInfos)
		filesBucket := tx.Bucket(bucketFiles)

		var stale [][]byte
		err := infosBucket.ForEach(func(k, v []byte) error {
			var infos models.TorrentInfos
			if err := json.Unmarshal(v, &infos); err != nil || infos.CreatedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := infosBucket.Delete(k); err != nil {
				return err
			}
			if err := filesBucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old torrent infos: %w", err)
	}
	return removed, nil
}
