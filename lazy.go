// SPDX-License-Identifier: MIT

package cdict

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/davips/cdict/cache"
	"github.com/davips/cdict/cache/pack"
	"github.com/davips/cdict/hosh"
	"github.com/davips/cdict/internal/log"
)

// application is one pending function call shared by all its output values.
// The call runs at most once; its results are distributed to the siblings.
// Caches are deliberately NOT part of the application: each value copy
// carries its own attachment, so attaching a cache to one dict never leaks
// persistence into another dict sharing the same pending call.
type application struct {
	fnName   string
	deps     []Value
	depNames []string
	outs     []string
	parent   hosh.Hosh   // deps·fn product; sibs multiply back to it
	sibs     []hosh.Hosh // one identity per output
	call     func(ctx context.Context, args []any) ([]any, error)

	mu      sync.Mutex
	done    bool
	results []any
	err     error
}

// lazyValue is output idx of a pending application.
type lazyValue struct {
	field  string
	idx    int
	app    *application
	caches []cache.Cache
}

func (v *lazyValue) Hosh() hosh.Hosh { return v.app.sibs[v.idx] }

func (v *lazyValue) Evaluated() bool {
	v.app.mu.Lock()
	defer v.app.mu.Unlock()
	return v.app.done
}

func (v *lazyValue) Resolve(ctx context.Context) (any, error) {
	return v.app.resolve(ctx, v.caches, v.idx)
}

func (v *lazyValue) String() string {
	return "λ(" + strings.Join(v.app.depNames, " ") + ")"
}

// withCaches returns a copy bound to cs. The application stays shared, so a
// result computed through any copy is visible to all of them.
func (v *lazyValue) withCaches(cs []cache.Cache) *lazyValue {
	return &lazyValue{field: v.field, idx: v.idx, app: v.app, caches: cs}
}

var _ Value = (*lazyValue)(nil)

func (a *application) resolve(ctx context.Context, caches []cache.Cache, idx int) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return a.results[idx], nil
	}
	if a.err != nil {
		return nil, a.err
	}

	results, err := a.run(ctx, caches)
	if err != nil {
		// Deterministic failures are remembered; interrupted runs may retry.
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			a.err = err
		}
		return nil, err
	}
	a.results = results
	a.done = true
	return a.results[idx], nil
}

// run obtains all outputs: from the caches when every sibling is stored,
// otherwise by resolving the inputs and calling the function. Freshly
// computed outputs are written through to every attached cache.
func (a *application) run(ctx context.Context, caches []cache.Cache) ([]any, error) {
	logger := log.WithComponentFromContext(ctx, "cdict")

	if len(caches) > 0 {
		if results, ok := a.fetchAll(ctx, caches, logger); ok {
			return results, nil
		}
	}

	args := make([]any, len(a.deps))
	for i, dep := range a.deps {
		v, err := dep.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve input %s: %w", a.depNames[i], err)
		}
		args[i] = v
	}
	results, err := a.call(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.fnName, err)
	}
	if len(results) != len(a.outs) {
		return nil, fmt.Errorf("%w: %s returned %d values for outputs %v",
			ErrArityMismatch, a.fnName, len(results), a.outs)
	}

	for i, r := range results {
		writeThrough(ctx, caches, a.sibs[i], r, logger)
	}
	return results, nil
}

func (a *application) fetchAll(ctx context.Context, caches []cache.Cache, logger zerolog.Logger) ([]any, bool) {
	results := make([]any, len(a.sibs))
	for i, h := range a.sibs {
		v, ok := fetchOne(ctx, caches, h.ID(), logger)
		if !ok {
			return nil, false
		}
		results[i] = v
	}
	return results, true
}

// fetchGroup collapses concurrent fetches of the same id into one backend
// round trip.
var fetchGroup singleflight.Group

type fetchResult struct {
	v  any
	ok bool
}

// fetchOne walks the caches in attachment order. A hit back-fills every
// earlier cache that missed, bringing outdated replicas up to date. Backend
// failures degrade to a miss: persistence must never break resolution.
func fetchOne(ctx context.Context, caches []cache.Cache, id string, logger zerolog.Logger) (any, bool) {
	out, _, _ := fetchGroup.Do(id, func() (any, error) {
		for j, c := range caches {
			data, found, err := c.Get(ctx, id)
			if err != nil {
				logger.Warn().Err(err).Str(log.FieldID, id).Msg("cache read failed, trying next")
				continue
			}
			if !found {
				continue
			}
			v, err := unpackStored(data, caches)
			if err != nil {
				logger.Warn().Err(err).Str(log.FieldID, id).Msg("stored blob unusable, trying next")
				continue
			}
			for k := 0; k < j; k++ {
				if err := caches[k].Put(ctx, id, data); err != nil {
					logger.Warn().Err(err).Str(log.FieldID, id).Msg("cache back-fill failed")
				}
			}
			return fetchResult{v: v, ok: true}, nil
		}
		return fetchResult{}, nil
	})
	r := out.(fetchResult)
	return r.v, r.ok
}

// unpackStored decodes a stored blob. Skeleton blobs come back as a *Dict
// whose fields resolve lazily from the same caches.
func unpackStored(data []byte, caches []cache.Cache) (any, error) {
	v, err := pack.Unpack(data)
	if err != nil {
		return nil, err
	}
	if m, ok := v.(map[string]any); ok && isSkeleton(m) {
		return dictFromSkeleton(m, caches)
	}
	return v, nil
}

// writeThrough persists one freshly computed output to every attached cache.
// Nested dicts are stored structurally: their fields, their own skeleton,
// and the skeleton again under the output id this value is known by.
func writeThrough(ctx context.Context, caches []cache.Cache, h hosh.Hosh, v any, logger zerolog.Logger) {
	if len(caches) == 0 {
		return
	}
	if d, ok := v.(*Dict); ok {
		if err := d.storeTo(ctx, caches); err != nil {
			logger.Warn().Err(err).Str(log.FieldID, h.ID()).Msg("nested dict write-through failed")
		}
		if h != d.Hosh() {
			if blob, err := d.skeletonBlob(); err == nil {
				putAll(ctx, caches, h.ID(), blob, logger)
			}
		}
		return
	}
	blob, _, err := pack.Pack(v)
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldID, h.ID()).Msg("pack for write-through failed")
		return
	}
	putAll(ctx, caches, h.ID(), blob, logger)
}

func putAll(ctx context.Context, caches []cache.Cache, id string, blob []byte, logger zerolog.Logger) {
	for _, c := range caches {
		if err := c.Put(ctx, id, blob); err != nil {
			logger.Warn().Err(err).Str(log.FieldID, id).Msg("cache write-through failed")
		}
	}
}

// fetchValue is an entry restored from a cache by id: the content is
// whatever the caches hold under the identity.
type fetchValue struct {
	h      hosh.Hosh
	caches []cache.Cache

	mu   sync.Mutex
	done bool
	v    any
}

func (f *fetchValue) Hosh() hosh.Hosh { return f.h }

func (f *fetchValue) Evaluated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *fetchValue) Resolve(ctx context.Context) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return f.v, nil
	}
	logger := log.WithComponentFromContext(ctx, "cdict")
	v, ok := fetchOne(ctx, f.caches, f.h.ID(), logger)
	if !ok {
		// Not memoized: the entry may appear once a producer finishes.
		return nil, fmt.Errorf("%w: %s", ErrNotCached, f.h.ID())
	}
	f.v, f.done = v, true
	return v, nil
}

func (f *fetchValue) String() string { return "λ(cached)" }

func (f *fetchValue) withCaches(cs []cache.Cache) *fetchValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	nf := &fetchValue{h: f.h, caches: cs}
	if f.done {
		nf.done, nf.v = true, f.v
	}
	return nf
}

var _ Value = (*fetchValue)(nil)
