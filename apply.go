// SPDX-License-Identifier: MIT

package cdict

import (
	"fmt"

	"github.com/davips/cdict/hosh"
)

// Apply returns a new dict with l's outputs bound as lazy fields. Nothing
// runs here: the output ids are composed from the input ids and the
// function id, so the resulting dict is fully identified before any
// computation happens, and results already present in an attached cache are
// fetched instead of recomputed.
//
// Inputs bind by precedence: existing dict field, then sampled choice, then
// declared default. Sampled and default values become regular fields of the
// result, contributing to its id like any other field. An input bound by
// none of the three is ErrMissingField.
//
// An output with the same name as an existing field replaces it; the input
// side still sees the previous value, which is how a field is evolved in
// place.
func (d *Dict) Apply(l *Let) (*Dict, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil function", ErrBadSchema)
	}
	nd := d
	deps := make([]Value, 0, len(l.inputs))
	depNames := make([]string, 0, len(l.inputs))
	for _, in := range l.inputs {
		k := in.name
		if v, ok := nd.values[k]; ok {
			deps = append(deps, v)
			depNames = append(depNames, displayName(in))
			continue
		}
		bound, have := any(nil), false
		if options, ok := l.choices[k]; ok {
			bound, have = l.sample(options), true
		} else if dv, ok := l.defaults[k]; ok {
			bound, have = dv, true
		}
		if !have {
			return nil, fmt.Errorf("%w: %s needs %q", ErrMissingField, l.name, k)
		}
		var err error
		if nd, err = nd.Put(k, bound); err != nil {
			return nil, err
		}
		deps = append(deps, nd.values[k])
		depNames = append(depNames, displayName(in))
	}

	parent := hosh.Identity
	for _, dep := range deps {
		parent = parent.Mul(dep.Hosh())
	}
	parent = parent.Mul(l.h)

	n := len(l.outputs)
	app := &application{
		fnName:   l.name,
		deps:     deps,
		depNames: depNames,
		outs:     append([]string(nil), l.outputs...),
		parent:   parent,
		sibs:     make([]hosh.Hosh, n),
		call:     l.callAdapter(),
	}
	for i := range app.sibs {
		app.sibs[i] = parent.Sibling(i, n)
	}
	for i, out := range l.outputs {
		nd = nd.putValue(out, &lazyValue{field: out, idx: i, app: app, caches: nd.caches})
	}
	return nd, nil
}

func displayName(in input) string {
	if in.starred {
		return "*" + in.name
	}
	return in.name
}
