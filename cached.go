// SPDX-License-Identifier: MIT

package cdict

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/davips/cdict/cache"
	"github.com/davips/cdict/cache/pack"
	"github.com/davips/cdict/hosh"
	"github.com/davips/cdict/internal/log"
)

// Cached returns a copy of the dict with cs appended to its caches. The
// dict skeleton is written to each new cache right away so the dict can be
// restored by id before any field is computed; field contents follow on
// evaluation (write-through), or immediately for caches wrapped in
// cache.Eager. Pending lazy values resolve against the full cache list from
// now on: already cached results are fetched instead of computed.
//
// Write failures are aggregated and returned, but the attached dict is
// returned regardless: a degraded cache must not block composition.
func (d *Dict) Cached(ctx context.Context, cs ...cache.Cache) (*Dict, error) {
	if len(cs) == 0 {
		return d, nil
	}
	nd := d.clone()
	nd.caches = append(append([]cache.Cache(nil), d.caches...), cs...)
	for k, v := range nd.values {
		switch val := v.(type) {
		case *lazyValue:
			nd.values[k] = val.withCaches(nd.caches)
		case *fetchValue:
			nd.values[k] = val.withCaches(nd.caches)
		}
	}

	var result *multierror.Error
	blob, err := nd.skeletonBlob()
	if err != nil {
		result = multierror.Append(result, err)
	} else {
		for _, c := range cs {
			if cache.IsEager(c) {
				continue // storeTo below writes the skeleton too
			}
			if err := c.Put(ctx, nd.ID(), blob); err != nil {
				result = multierror.Append(result, fmt.Errorf("write skeleton: %w", err))
			}
		}
	}

	var eager []cache.Cache
	for _, c := range cs {
		if cache.IsEager(c) {
			eager = append(eager, c)
		}
	}
	if len(eager) > 0 {
		if err := nd.storeTo(ctx, eager); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return nd, result.ErrorOrNil()
}

// Caches returns the attached caches in attachment order.
func (d *Dict) Caches() []cache.Cache {
	return append([]cache.Cache(nil), d.caches...)
}

// FromCache restores a dict by id. The blob under id must be a skeleton;
// fields come back lazy, resolving from the same caches on access.
func FromCache(ctx context.Context, id string, caches ...cache.Cache) (*Dict, error) {
	h, err := hosh.FromID(id)
	if err != nil {
		return nil, err
	}
	if len(caches) == 0 {
		return nil, fmt.Errorf("%w: no caches given for %s", ErrNotCached, id)
	}
	logger := log.WithComponentFromContext(ctx, "cdict")
	v, ok := fetchOne(ctx, caches, h.ID(), logger)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCached, id)
	}
	d, ok := v.(*Dict)
	if !ok {
		return nil, fmt.Errorf("%w: entry %s is not a dict", ErrBadSkeleton, id)
	}
	return d, nil
}

// storeTo persists every evaluated field and the dict skeleton to caches.
// Unevaluated fields are skipped: their ids are already minted and their
// contents will be written through when they are computed.
func (d *Dict) storeTo(ctx context.Context, caches []cache.Cache) error {
	var result *multierror.Error
	for _, k := range d.keys {
		v := d.values[k]
		if !v.Evaluated() {
			continue
		}
		content, err := v.Resolve(ctx)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("field %s: %w", k, err))
			continue
		}
		if nd, ok := content.(*Dict); ok {
			if err := nd.storeTo(ctx, caches); err != nil {
				result = multierror.Append(result, fmt.Errorf("field %s: %w", k, err))
			}
			if v.Hosh() != nd.Hosh() {
				// Known under a composed id as well: alias the skeleton.
				blob, err := nd.skeletonBlob()
				if err != nil {
					result = multierror.Append(result, fmt.Errorf("field %s: %w", k, err))
					continue
				}
				for _, c := range caches {
					if err := c.Put(ctx, v.Hosh().ID(), blob); err != nil {
						result = multierror.Append(result, fmt.Errorf("field %s: %w", k, err))
					}
				}
			}
			continue
		}
		blob, _, err := pack.Pack(content)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("pack field %s: %w", k, err))
			continue
		}
		for _, c := range caches {
			if err := c.Put(ctx, v.Hosh().ID(), blob); err != nil {
				result = multierror.Append(result, fmt.Errorf("store field %s: %w", k, err))
			}
		}
	}

	blob, err := d.skeletonBlob()
	if err != nil {
		return multierror.Append(result, err).ErrorOrNil()
	}
	for _, c := range caches {
		if err := c.Put(ctx, d.ID(), blob); err != nil {
			result = multierror.Append(result, fmt.Errorf("store skeleton: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// skeletonBlob packs the structural entry stored under the dict id: field
// ids and field order, enough to rebuild the dict with lazy fields.
func (d *Dict) skeletonBlob() ([]byte, error) {
	blob, _, err := pack.Pack(map[string]any{
		fieldID:    d.ID(),
		fieldIDs:   d.IDs(),
		fieldOrder: d.keys,
	})
	return blob, err
}

const fieldOrder = "_fields"

// isSkeleton recognizes the structural entry layout after a JSON round
// trip: exactly _id, _ids and _fields.
func isSkeleton(m map[string]any) bool {
	if len(m) != 3 {
		return false
	}
	if _, ok := m[fieldID].(string); !ok {
		return false
	}
	if _, ok := m[fieldIDs].(map[string]any); !ok {
		return false
	}
	_, ok := m[fieldOrder].([]any)
	return ok
}

// dictFromSkeleton rebuilds a dict from its structural entry. Every field
// resolves lazily from caches. The stored id must match the id recomputed
// from the field ids, otherwise the skeleton (or the algebra) is broken.
func dictFromSkeleton(m map[string]any, caches []cache.Cache) (*Dict, error) {
	wantID, _ := m[fieldID].(string)
	rawIDs, _ := m[fieldIDs].(map[string]any)
	rawOrder, _ := m[fieldOrder].([]any)

	if len(rawOrder) != len(rawIDs) {
		return nil, fmt.Errorf("%w: %d fields, %d ids", ErrBadSkeleton, len(rawOrder), len(rawIDs))
	}
	d := &Dict{values: make(map[string]Value, len(rawOrder)), caches: caches}
	for _, f := range rawOrder {
		k, ok := f.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string field name", ErrBadSkeleton)
		}
		idStr, ok := rawIDs[k].(string)
		if !ok {
			return nil, fmt.Errorf("%w: field %s has no id", ErrBadSkeleton, k)
		}
		h, err := hosh.FromID(idStr)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrBadSkeleton, k, err)
		}
		d = d.putValue(k, &fetchValue{h: h, caches: caches})
	}
	if d.ID() != wantID {
		return nil, fmt.Errorf("%w: recomputed id %s, stored id %s", ErrBadSkeleton, d.ID(), wantID)
	}
	return d, nil
}
