// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/davips/cdict/cache/pack"
	"github.com/davips/cdict/hosh"
)

// wrapper is implemented by decorators so IsEager can see through a chain
// of them, like errors.Unwrap over wrapped errors.
type wrapper interface {
	Unwrap() Cache
}

// eagerCache marks its delegate for immediate persistence of already
// evaluated fields when a dict attaches it.
type eagerCache struct {
	Cache
}

// Eager marks c as eager: attaching it to a dict persists fields that are
// already evaluated right away, instead of only on future evaluations.
func Eager(c Cache) Cache { return eagerCache{c} }

func (e eagerCache) Unwrap() Cache { return e.Cache }

// IsEager reports whether c, or any cache it decorates, is marked eager.
func IsEager(c Cache) bool {
	for c != nil {
		if _, ok := c.(eagerCache); ok {
			return true
		}
		w, ok := c.(wrapper)
		if !ok {
			return false
		}
		c = w.Unwrap()
	}
	return false
}

// throttled applies a token-bucket limit to writes. Reads stay unthrottled:
// the point is to keep bulk evaluations from saturating a shared backend.
type throttled struct {
	Cache
	limiter *rate.Limiter
}

// Throttled wraps c with a write limit of rps puts per second and the given
// burst. Put blocks until a token is available or ctx is done.
func Throttled(c Cache, rps float64, burst int) Cache {
	return &throttled{
		Cache:   c,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (t *throttled) Put(ctx context.Context, id string, data []byte) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle put %s: %w", id, err)
	}
	return t.Cache.Put(ctx, id, data)
}

func (t *throttled) Unwrap() Cache { return t.Cache }

// verified re-checks blobs on the way out. A blob that does not unpack
// cleanly (bad layout, broken zstd frame, invalid JSON) is dropped and
// reported as ErrCorrupt so the caller recomputes instead of consuming
// garbage.
type verified struct {
	Cache
}

// Verified wraps c with read-side integrity checking.
func Verified(c Cache) Cache { return verified{c} }

func (v verified) Get(ctx context.Context, id string) ([]byte, bool, error) {
	data, found, err := v.Cache.Get(ctx, id)
	if err != nil || !found {
		return data, found, err
	}
	if _, err := pack.Unpack(data); err != nil {
		_ = v.Cache.Delete(ctx, id)
		return nil, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}
	return data, true, nil
}

func (v verified) Unwrap() Cache { return v.Cache }

// Copy moves every reachable entry of ids from src to dst, skipping blobs
// dst already has. It is the building block for warming a fresh cache from
// an old one.
func Copy(ctx context.Context, dst, src Cache, ids []string) (int, error) {
	copied := 0
	for _, id := range ids {
		if !hosh.IsID(id) {
			return copied, fmt.Errorf("%w: %q", hosh.ErrBadID, id)
		}
		if ok, err := dst.Has(ctx, id); err != nil {
			return copied, err
		} else if ok {
			continue
		}
		data, found, err := src.Get(ctx, id)
		if err != nil {
			return copied, err
		}
		if !found {
			continue
		}
		if err := dst.Put(ctx, id, data); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}
