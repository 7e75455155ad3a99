// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("b_entries")

// Bolt is a single-file B+tree-backed Cache. Good for small-to-medium local
// stores copied around as one artifact.
type Bolt struct {
	db *bolt.DB
	counters
}

// OpenBolt opens (or creates) a bolt database. A directory path selects
// <path>/cdict.db inside it.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt cache path required")
	}
	dbPath := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		dbPath = filepath.Join(path, "cdict.db")
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (c *Bolt) Get(ctx context.Context, id string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketEntries).Get([]byte(id)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		c.miss()
		return nil, false, fmt.Errorf("bolt get %s: %w", id, err)
	}
	if data == nil {
		c.miss()
		return nil, false, nil
	}
	c.hit()
	return data, true, nil
}

func (c *Bolt) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(id), data)
	})
	if err != nil {
		return fmt.Errorf("bolt put %s: %w", id, err)
	}
	c.put()
	return nil
}

func (c *Bolt) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed := false
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("bolt delete %s: %w", id, err)
	}
	if removed {
		c.delete()
	}
	return nil
}

func (c *Bolt) Has(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketEntries).Get([]byte(id)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("bolt has %s: %w", id, err)
	}
	return found, nil
}

func (c *Bolt) Stats() Stats {
	size := 0
	_ = c.db.View(func(tx *bolt.Tx) error {
		size = tx.Bucket(bucketEntries).Stats().KeyN
		return nil
	})
	return c.snapshot(size)
}

func (c *Bolt) Close() error { return c.db.Close() }

var _ Cache = (*Bolt)(nil)
