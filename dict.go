// SPDX-License-Identifier: MIT

// Package cdict implements a cacheable lazy dict with universally unique
// deterministic identifiers and transparent agnostic persistence.
//
// A Dict maps field names to identified values. Every value carries a
// 40-digit id; the dict id aggregates the field contributions so that two
// dicts built from the same content, in any order, by any process, get the
// same id. Function application (Apply) binds outputs lazily: the output
// ids are composed algebraically from the input ids and the function id,
// without running anything. Attached caches make persistence transparent:
// values are fetched instead of computed when some cache already holds
// them, and written through when they are computed.
//
// Dicts are immutable: every composition method returns a new Dict and
// never mutates the receiver.
package cdict

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/davips/cdict/cache"
	"github.com/davips/cdict/hosh"
)

// Dict is an immutable identified dict.
type Dict struct {
	keys   []string // insertion order, for display and iteration
	values map[string]Value
	h      hosh.Hosh
	caches []cache.Cache
}

// New builds a dict from a plain map. Map iteration order is irrelevant:
// fields are inserted in sorted key order and the id is order-independent
// anyway.
func New(m map[string]any) (*Dict, error) {
	d := &Dict{values: make(map[string]Value, len(m))}
	var err error
	for _, k := range sortedKeys(m) {
		if d, err = d.Put(k, m[k]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// FromMap builds a dict whose field ids are (partially) predefined: keys
// present in ids keep the given identity instead of being digested. This is
// how externally minted ids enter a dict.
func FromMap(values map[string]any, ids map[string]string) (*Dict, error) {
	d := &Dict{values: make(map[string]Value, len(values))}
	var err error
	for _, k := range sortedKeys(values) {
		nk := norm.NFC.String(k)
		if err = validateKey(nk); err != nil {
			return nil, err
		}
		idStr, ok := ids[k]
		if !ok {
			if d, err = d.Put(k, values[k]); err != nil {
				return nil, err
			}
			continue
		}
		h, err := hosh.FromID(idStr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		d = d.putValue(nk, newIdentified(values[k], h))
	}
	return d, nil
}

// Put returns a new dict with field key set to v. Reserved names (_id,
// _ids) are rejected: the library maintains those itself. A *Dict value
// keeps its own identity; a Value is attached as-is; anything else is
// digested.
func (d *Dict) Put(key string, v any) (*Dict, error) {
	k := norm.NFC.String(key)
	if err := validateKey(k); err != nil {
		return nil, err
	}
	val, err := toValue(v)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", k, err)
	}
	return d.putValue(k, val), nil
}

// Merge returns d overlaid with every field of other (other wins).
func (d *Dict) Merge(other *Dict) *Dict {
	if other == nil {
		return d
	}
	nd := d
	for _, k := range other.keys {
		nd = nd.putValue(k, other.values[k])
	}
	return nd
}

// MergeMap is Merge for a plain map, inserted in sorted key order.
func (d *Dict) MergeMap(m map[string]any) (*Dict, error) {
	nd := d
	var err error
	for _, k := range sortedKeys(m) {
		if nd, err = nd.Put(k, m[k]); err != nil {
			return nil, err
		}
	}
	return nd, nil
}

// Hosh returns the dict identity element.
func (d *Dict) Hosh() hosh.Hosh { return d.h }

// ID returns the dict id, the value of the virtual _id entry.
func (d *Dict) ID() string { return d.h.ID() }

// IDs returns field name to field id, the virtual _ids entry.
func (d *Dict) IDs() map[string]string {
	ids := make(map[string]string, len(d.keys))
	for k, v := range d.values {
		ids[k] = v.Hosh().ID()
	}
	return ids
}

// Keys returns all real field names in insertion order.
func (d *Dict) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Fields returns the data field names: every key not starting with "_".
func (d *Dict) Fields() []string {
	out := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		if !strings.HasPrefix(k, "_") {
			out = append(out, k)
		}
	}
	return out
}

// Metafields returns the "_"-prefixed field names. Metafields contribute to
// the dict id like any other field but are kept out of Fields so pipelines
// can carry bookkeeping without polluting the data surface.
func (d *Dict) Metafields() []string {
	out := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		if strings.HasPrefix(k, "_") {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the number of real fields.
func (d *Dict) Len() int { return len(d.keys) }

// Has reports whether key exists, including the virtual _id and _ids.
func (d *Dict) Has(key string) bool {
	k := norm.NFC.String(key)
	if k == fieldID || k == fieldIDs {
		return true
	}
	_, ok := d.values[k]
	return ok
}

// Get returns the content of key, evaluating it if needed. The virtual
// entries resolve without evaluation: _id to the dict id string, _ids to
// the field id map.
func (d *Dict) Get(ctx context.Context, key string) (any, error) {
	k := norm.NFC.String(key)
	switch k {
	case fieldID:
		return d.ID(), nil
	case fieldIDs:
		return d.IDs(), nil
	}
	v, ok := d.values[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, key)
	}
	content, err := v.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", k, err)
	}
	return content, nil
}

// Peek returns the field's Value without triggering evaluation.
func (d *Dict) Peek(key string) (Value, bool) {
	v, ok := d.values[norm.NFC.String(key)]
	return v, ok
}

// Entries resolves every field in insertion order and hands each one to fn.
// Iteration stops at the first error.
func (d *Dict) Entries(ctx context.Context, fn func(key string, v any) error) error {
	for _, k := range d.keys {
		content, err := d.values[k].Resolve(ctx)
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		if err := fn(k, content); err != nil {
			return err
		}
	}
	return nil
}

// AsMap resolves every field and returns a plain map including the virtual
// _id and _ids entries.
func (d *Dict) AsMap(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any, len(d.keys)+2)
	err := d.Entries(ctx, func(k string, v any) error {
		out[k] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	out[fieldID] = d.ID()
	out[fieldIDs] = d.IDs()
	return out, nil
}

// Equal reports identity equality. Two dicts with the same id hold the same
// content by construction.
func (d *Dict) Equal(other *Dict) bool {
	return other != nil && d.h == other.h
}

// Evaluated reports whether every field, nested dicts included, already has
// its content.
func (d *Dict) Evaluated() bool {
	for _, k := range d.keys {
		v := d.values[k]
		if !v.Evaluated() {
			return false
		}
		if s, ok := v.(*strictValue); ok {
			if nd, ok := s.v.(*Dict); ok && !nd.Evaluated() {
				return false
			}
		}
	}
	return true
}

const (
	fieldID  = "_id"
	fieldIDs = "_ids"
)

func validateKey(k string) error {
	if strings.TrimSpace(k) == "" {
		return fmt.Errorf("%w: empty name", ErrBadField)
	}
	if k == fieldID || k == fieldIDs {
		return fmt.Errorf("%w: %s", ErrReservedField, k)
	}
	return nil
}

func toValue(v any) (Value, error) {
	if val, ok := v.(Value); ok {
		return val, nil
	}
	return newStrict(v)
}

// contrib is one field's share of the dict id. Multiplying by the key
// digest binds the value to its name; Add-aggregation keeps the total
// independent of insertion order.
func contrib(k string, v Value) hosh.Hosh {
	return v.Hosh().Mul(hosh.DigestString(k))
}

// putValue inserts an already-validated key with an already-built value.
func (d *Dict) putValue(k string, val Value) *Dict {
	nd := d.clone()
	if old, ok := nd.values[k]; ok {
		nd.h = nd.h.Sub(contrib(k, old))
	} else {
		nd.keys = append(nd.keys, k)
	}
	nd.values[k] = val
	nd.h = nd.h.Add(contrib(k, val))
	return nd
}

func (d *Dict) clone() *Dict {
	nd := &Dict{
		keys:   append([]string(nil), d.keys...),
		values: make(map[string]Value, len(d.values)+1),
		h:      d.h,
		caches: d.caches,
	}
	for k, v := range d.values {
		nd.values[k] = v
	}
	return nd
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
