// SPDX-License-Identifier: MIT

package cdict

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestEvaluate_ForcesEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls atomic.Int32
	slowInc := func(x int) int {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return x + 1
	}
	l1, err := NewLet(slowInc, "a:b", WithID("ev1"))
	require.NoError(t, err)
	l2, err := NewLet(slowInc, "c:d", WithID("ev2"))
	require.NoError(t, err)

	d, err := New(map[string]any{"a": 1, "c": 10})
	require.NoError(t, err)
	d, err = d.Apply(l1)
	require.NoError(t, err)
	d, err = d.Apply(l2)
	require.NoError(t, err)
	require.False(t, d.Evaluated())

	require.NoError(t, d.Evaluate(context.Background()))
	assert.True(t, d.Evaluated())
	assert.Equal(t, int32(2), calls.Load())

	b, err := d.Get(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 2, b)
	dv, err := d.Get(context.Background(), "d")
	require.NoError(t, err)
	assert.Equal(t, 11, dv)
}

func TestEvaluate_SharedApplicationRunsOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls atomic.Int32
	fn := func(x int) (int, int) { calls.Add(1); return x, x }
	l, err := NewLet(fn, "x:p,q", WithID("ev-shared"))
	require.NoError(t, err)

	d, err := New(map[string]any{"x": 1})
	require.NoError(t, err)
	d, err = d.Apply(l)
	require.NoError(t, err)

	require.NoError(t, d.Evaluate(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestEvaluate_NestedDict(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	inc := func(x int) int { return x + 1 }
	l, err := NewLet(inc, "x:y", WithID("ev-nested"))
	require.NoError(t, err)

	inner, err := New(map[string]any{"x": 1})
	require.NoError(t, err)
	inner, err = inner.Apply(l)
	require.NoError(t, err)

	outer, err := New(map[string]any{"inner": inner})
	require.NoError(t, err)
	require.False(t, outer.Evaluated())

	require.NoError(t, outer.Evaluate(context.Background()))
	assert.True(t, outer.Evaluated())
	assert.True(t, inner.Evaluated())
}

func TestEvaluate_PropagatesErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	boom := errors.New("boom")
	bad := func(x int) (int, error) { return 0, boom }
	good := func(x int) int { return x }
	lb, err := NewLet(bad, "x:y", WithID("ev-bad"))
	require.NoError(t, err)
	lg, err := NewLet(good, "x:z", WithID("ev-good"))
	require.NoError(t, err)

	d, err := New(map[string]any{"x": 1})
	require.NoError(t, err)
	d, err = d.Apply(lb)
	require.NoError(t, err)
	d, err = d.Apply(lg)
	require.NoError(t, err)

	err = d.Evaluate(context.Background())
	assert.ErrorIs(t, err, boom)
}
