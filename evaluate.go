// SPDX-License-Identifier: MIT

package cdict

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Evaluate forces every pending field, nested dicts included. Independent
// applications run concurrently under a bounded worker count; outputs of
// one application still run exactly once and share results. Contents are
// memoized in place, so the receiver itself flips to evaluated.
func (d *Dict) Evaluate(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	d.schedule(gctx, g, map[*application]struct{}{})
	return g.Wait()
}

func (d *Dict) schedule(ctx context.Context, g *errgroup.Group, seen map[*application]struct{}) {
	for _, k := range d.keys {
		switch v := d.values[k].(type) {
		case *lazyValue:
			if _, dup := seen[v.app]; dup {
				continue
			}
			seen[v.app] = struct{}{}
			g.Go(func() error {
				_, err := v.Resolve(ctx)
				return err
			})
		case *fetchValue:
			g.Go(func() error {
				_, err := v.Resolve(ctx)
				return err
			})
		case *strictValue:
			if nd, ok := v.v.(*Dict); ok {
				nd.schedule(ctx, g, seen)
			}
		}
	}
}
