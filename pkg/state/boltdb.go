package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/hostsaccel/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSession  = []byte("session")
	bucketRankings = []byte("rankings")
	bucketWatchdog = []byte("watchdog")

	keyLastRanking = []byte("last")
)

// DBFile is the database file name inside the state directory
const DBFile = "hostsaccel.db"

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the database in dataDir. It
// gives up after a second if another process holds the database.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, DBFile)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketSession,
			bucketRankings,
			bucketWatchdog,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Session backup operations

// SaveBackup journals backup under its hosts path, replacing any entry
func (s *BoltStore) SaveBackup(backup *types.SessionBackup) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		data, err := json.Marshal(backup)
		if err != nil {
			return err
		}
		return b.Put([]byte(backup.HostsPath), data)
	})
}

func (s *BoltStore) LoadBackup(hostsPath string) (*types.SessionBackup, error) {
	var backup types.SessionBackup
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		data := b.Get([]byte(hostsPath))
		if data == nil {
			return fmt.Errorf("backup for %s: %w", hostsPath, ErrNotFound)
		}
		return json.Unmarshal(data, &backup)
	})
	if err != nil {
		return nil, err
	}
	return &backup, nil
}

func (s *BoltStore) ClearBackup(hostsPath string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		return b.Delete([]byte(hostsPath))
	})
}

// Ranking operations

func (s *BoltStore) SaveRanking(ranking *types.Ranking) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRankings)
		data, err := json.Marshal(ranking)
		if err != nil {
			return err
		}
		return b.Put(keyLastRanking, data)
	})
}

func (s *BoltStore) LastRanking() (*types.Ranking, error) {
	var ranking types.Ranking
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRankings)
		data := b.Get(keyLastRanking)
		if data == nil {
			return fmt.Errorf("ranking: %w", ErrNotFound)
		}
		return json.Unmarshal(data, &ranking)
	})
	if err != nil {
		return nil, err
	}
	return &ranking, nil
}

// Watchdog operations

// LastCheck returns when target was last checked, zero if never
func (s *BoltStore) LastCheck(target string) (time.Time, error) {
	var at time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWatchdog)
		data := b.Get([]byte(target))
		if data == nil {
			return nil
		}
		return at.UnmarshalText(data)
	})
	return at, err
}

func (s *BoltStore) SetLastCheck(target string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWatchdog)
		data, err := at.MarshalText()
		if err != nil {
			return err
		}
		return b.Put([]byte(target), data)
	})
}
