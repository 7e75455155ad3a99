// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davips/cdict/cache/pack"
	"github.com/davips/cdict/hosh"
)

func TestEager_Marking(t *testing.T) {
	base := NewMemory()
	defer base.Close()

	assert.False(t, IsEager(base))
	assert.True(t, IsEager(Eager(base)))
	assert.True(t, IsEager(Verified(Eager(base))), "marker must be visible through decorators")
	assert.True(t, IsEager(Eager(Throttled(base, 10, 1))))
	assert.False(t, IsEager(Verified(base)))
}

func TestEager_DelegatesStorage(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	defer base.Close()

	c := Eager(base)
	id := hosh.DigestString("eager").ID()
	require.NoError(t, c.Put(ctx, id, []byte("bx")))

	_, ok, err := base.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "the marker must write through to its delegate")
}

func TestThrottled_LimitsWrites(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	defer base.Close()

	// Burst 1 at 50 puts/s: the second put must wait for a token.
	c := Throttled(base, 50, 1)
	id1 := hosh.DigestString("t1").ID()
	id2 := hosh.DigestString("t2").ID()

	start := time.Now()
	require.NoError(t, c.Put(ctx, id1, []byte("bx")))
	require.NoError(t, c.Put(ctx, id2, []byte("bx")))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	// Reads bypass the limiter.
	_, ok, err := c.Get(ctx, id1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestThrottled_RespectsContext(t *testing.T) {
	base := NewMemory()
	defer base.Close()

	c := Throttled(base, 0.001, 1)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, hosh.DigestString("first").ID(), []byte("bx")))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := c.Put(ctx, hosh.DigestString("second").ID(), []byte("bx"))
	require.Error(t, err, "a starved put must fail with the context, not block forever")
}

func TestVerified_DropsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	defer base.Close()
	c := Verified(base)

	good, h, err := pack.Pack(map[string]any{"k": "v"})
	require.NoError(t, err)
	id := h.ID()
	require.NoError(t, c.Put(ctx, id, good))

	data, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, good, data)

	// Corrupt the stored blob behind the decorator's back.
	bad := hosh.DigestString("bad").ID()
	require.NoError(t, base.Put(ctx, bad, []byte("j{broken")))

	_, ok, err = c.Get(ctx, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.False(t, ok)

	found, err := base.Has(ctx, bad)
	require.NoError(t, err)
	assert.False(t, found, "corrupt entries are evicted on detection")
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	src := NewMemory()
	dst := NewMemory()
	defer src.Close()
	defer dst.Close()

	ids := make([]string, 3)
	for i, seed := range []string{"a", "b", "c"} {
		h := hosh.DigestString(seed)
		ids[i] = h.ID()
		require.NoError(t, src.Put(ctx, ids[i], []byte("b"+seed)))
	}
	// One entry already present downstream.
	require.NoError(t, dst.Put(ctx, ids[0], []byte("ba")))

	n, err := Copy(ctx, dst, src, ids)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range ids {
		ok, err := dst.Has(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	_, err = Copy(ctx, dst, src, []string{"not-an-id"})
	require.Error(t, err)
	assert.ErrorIs(t, err, hosh.ErrBadID)
}
