// SPDX-License-Identifier: MIT

// Package cache provides content-addressed blob storage behind a single
// backend-agnostic interface. Entries are keyed by 40-digit ids and written
// at most once per id, so every backend is a plain key/value store with no
// invalidation protocol.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/davips/cdict/hosh"
)

// Cache is the agnostic persistence surface. Implementations are safe for
// concurrent use. Get reports a plain miss as (nil, false, nil); errors are
// reserved for backend failures.
type Cache interface {
	// Get retrieves the blob stored under id.
	Get(ctx context.Context, id string) ([]byte, bool, error)
	// Put stores a blob under id. Entries are immutable: overwriting an
	// existing id with the same content is a harmless no-op.
	Put(ctx context.Context, id string, data []byte) error
	// Delete removes the blob stored under id. Deleting a missing id is
	// not an error.
	Delete(ctx context.Context, id string) error
	// Has reports whether id is present without fetching the blob.
	Has(ctx context.Context, id string) (bool, error)
	// Stats returns traffic counters for this handle.
	Stats() Stats
	// Close releases backend resources.
	Close() error
}

// Stats holds cache performance metrics.
type Stats struct {
	Hits        int64 // successful Gets
	Misses      int64 // Gets that found nothing
	Puts        int64 // stored blobs
	Deletes     int64 // removed blobs
	CurrentSize int   // entries currently stored, -1 if the backend cannot tell cheaply
}

var (
	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache: closed")
	// ErrCorrupt is returned by the Verified decorator when a stored blob
	// fails its integrity check.
	ErrCorrupt = errors.New("cache: corrupt entry")
	// ErrUnknownBackend is returned by Open for unrecognized backend names.
	ErrUnknownBackend = errors.New("cache: unknown backend")
)

// counters tracks traffic for a cache handle. Backends embed it and record
// through the helpers; snapshot assembles a Stats.
type counters struct {
	hits    atomic.Int64
	misses  atomic.Int64
	puts    atomic.Int64
	deletes atomic.Int64
}

func (c *counters) hit()    { c.hits.Add(1) }
func (c *counters) miss()   { c.misses.Add(1) }
func (c *counters) put()    { c.puts.Add(1) }
func (c *counters) delete() { c.deletes.Add(1) }

// validateID guards backends that embed the id in a path or URL. The hosh
// alphabet has no separators, so a well-formed id is always safe to splice.
func validateID(id string) error {
	if !hosh.IsID(id) {
		return fmt.Errorf("%w: %q", hosh.ErrBadID, id)
	}
	return nil
}

func (c *counters) snapshot(size int) Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Puts:        c.puts.Load(),
		Deletes:     c.deletes.Load(),
		CurrentSize: size,
	}
}

// Open creates a cache for the named backend. target is backend-specific:
// a directory or file path for file, badger, bolt and sqlite; an address
// for redis; a base URL for http. An empty backend name falls back to an
// unbounded in-memory cache.
func Open(backend, target string, logger zerolog.Logger) (Cache, error) {
	switch backend {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(target, logger)
	case "badger":
		return OpenBadger(target)
	case "bolt":
		return OpenBolt(target)
	case "sqlite":
		return OpenSQLite(target)
	case "redis":
		return NewRedis(RedisConfig{Addr: target}, logger)
	case "http":
		return NewHTTP(HTTPConfig{BaseURL: target}, logger)
	case "nop":
		return NewNop(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}

// Nop is a cache that stores nothing. Useful for disabling persistence
// without branching at every call site.
type Nop struct{}

// NewNop creates a cache that doesn't cache anything.
func NewNop() *Nop { return &Nop{} }

func (*Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (*Nop) Put(context.Context, string, []byte) error         { return nil }
func (*Nop) Delete(context.Context, string) error              { return nil }
func (*Nop) Has(context.Context, string) (bool, error)         { return false, nil }
func (*Nop) Stats() Stats                                      { return Stats{} }
func (*Nop) Close() error                                      { return nil }

var _ Cache = (*Nop)(nil)
