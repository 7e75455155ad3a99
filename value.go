// SPDX-License-Identifier: MIT

package cdict

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/davips/cdict/cache/pack"
	"github.com/davips/cdict/hosh"
)

// Value is one dict entry: an identity plus a way to obtain the content.
// Strict values carry their content; lazy values carry the recipe and
// compute (or fetch) on first Resolve.
type Value interface {
	// Hosh returns the entry's identity. It never triggers evaluation:
	// lazy identities are composed algebraically from the identities of
	// their inputs.
	Hosh() hosh.Hosh
	// Evaluated reports whether the content is already available.
	Evaluated() bool
	// Resolve returns the content, evaluating at most once.
	Resolve(ctx context.Context) (any, error)
	fmt.Stringer
}

// strictValue holds content that already exists.
type strictValue struct {
	h hosh.Hosh
	v any
}

// newStrict digests v into a strict value. A *Dict keeps its own identity.
func newStrict(v any) (*strictValue, error) {
	if d, ok := v.(*Dict); ok {
		return &strictValue{h: d.Hosh(), v: d}, nil
	}
	h, err := pack.Digest(v)
	if err != nil {
		return nil, err
	}
	return &strictValue{h: h, v: v}, nil
}

// newIdentified wraps v under a caller-supplied identity, for entries whose
// id is already known (restored dicts, externally minted ids).
func newIdentified(v any, h hosh.Hosh) *strictValue {
	return &strictValue{h: h, v: v}
}

func (s *strictValue) Hosh() hosh.Hosh                      { return s.h }
func (s *strictValue) Evaluated() bool                      { return true }
func (s *strictValue) Resolve(context.Context) (any, error) { return s.v, nil }

func (s *strictValue) String() string {
	if d, ok := s.v.(*Dict); ok {
		return d.String()
	}
	b, err := json.Marshal(s.v)
	if err != nil {
		return fmt.Sprintf("%v", s.v)
	}
	return string(b)
}

var _ Value = (*strictValue)(nil)
