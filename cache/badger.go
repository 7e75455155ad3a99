// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Badger is an embedded LSM-backed Cache for large local stores.
type Badger struct {
	db  *badger.DB
	ttl time.Duration
	counters
}

// OpenBadger opens (or creates) a badger database at path.
func OpenBadger(path string) (*Badger, error) {
	return OpenBadgerTTL(path, 0)
}

// OpenBadgerTTL opens a badger database whose entries expire after ttl.
// ttl <= 0 keeps entries forever.
func OpenBadgerTTL(path string, ttl time.Duration) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &Badger{db: db, ttl: ttl}, nil
}

func (c *Badger) Get(ctx context.Context, id string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		c.miss()
		return nil, false, nil
	}
	if err != nil {
		c.miss()
		return nil, false, fmt.Errorf("badger get %s: %w", id, err)
	}
	c.hit()
	return data, true, nil
}

func (c *Badger) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		if c.ttl > 0 {
			return txn.SetEntry(badger.NewEntry([]byte(id), data).WithTTL(c.ttl))
		}
		return txn.Set([]byte(id), data)
	})
	if err != nil {
		return fmt.Errorf("badger put %s: %w", id, err)
	}
	c.put()
	return nil
}

func (c *Badger) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed := false
	err := c.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		removed = true
		return txn.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", id, err)
	}
	if removed {
		c.delete()
	}
	return nil
}

func (c *Badger) Has(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger has %s: %w", id, err)
	}
	return true, nil
}

// Stats reports traffic counters; badger cannot count keys without a scan.
func (c *Badger) Stats() Stats { return c.snapshot(-1) }

func (c *Badger) Close() error { return c.db.Close() }

var _ Cache = (*Badger)(nil)
