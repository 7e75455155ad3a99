// SPDX-License-Identifier: MIT

package cdict

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davips/cdict/hosh"
)

func TestNew_OrderIndependentID(t *testing.T) {
	a, err := New(map[string]any{"x": 3, "y": "abc", "z": []any{1.0, 2.0}})
	require.NoError(t, err)

	b, err := New(nil)
	require.NoError(t, err)
	for _, k := range []string{"z", "x", "y"} {
		m := map[string]any{"x": 3, "y": "abc", "z": []any{1.0, 2.0}}
		b, err = b.Put(k, m[k])
		require.NoError(t, err)
	}

	assert.Equal(t, a.ID(), b.ID())
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.IDs(), b.IDs())
}

func TestPut_Replacement(t *testing.T) {
	d, err := New(map[string]any{"x": 3, "y": "keep"})
	require.NoError(t, err)

	d2, err := d.Put("x", 5)
	require.NoError(t, err)
	assert.NotEqual(t, d.ID(), d2.ID())
	assert.Equal(t, d.IDs()["y"], d2.IDs()["y"])

	// Replacing back restores the exact identity.
	d3, err := d2.Put("x", 3)
	require.NoError(t, err)
	assert.Equal(t, d.ID(), d3.ID())
}

func TestPut_DoesNotMutateReceiver(t *testing.T) {
	d, err := New(map[string]any{"x": 3})
	require.NoError(t, err)
	id := d.ID()

	_, err = d.Put("y", 4)
	require.NoError(t, err)

	assert.Equal(t, id, d.ID())
	assert.False(t, d.Has("y"))
}

func TestPut_RejectsBadNames(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	for _, k := range []string{"_id", "_ids"} {
		_, err := d.Put(k, 1)
		assert.ErrorIs(t, err, ErrReservedField, k)
	}
	for _, k := range []string{"", "   "} {
		_, err := d.Put(k, 1)
		assert.ErrorIs(t, err, ErrBadField, "%q", k)
	}
}

func TestPut_NormalizesKeys(t *testing.T) {
	// "é" precomposed vs "e"+combining acute: same field after NFC.
	a, err := New(map[string]any{"café": 1})
	require.NoError(t, err)
	b, err := New(map[string]any{"café": 1})
	require.NoError(t, err)

	assert.Equal(t, a.ID(), b.ID())
	assert.True(t, b.Has("café"))
}

func TestGet_VirtualEntries(t *testing.T) {
	d, err := New(map[string]any{"x": 3})
	require.NoError(t, err)
	ctx := context.Background()

	id, err := d.Get(ctx, "_id")
	require.NoError(t, err)
	assert.Equal(t, d.ID(), id)

	ids, err := d.Get(ctx, "_ids")
	require.NoError(t, err)
	assert.Equal(t, d.IDs(), ids)

	assert.True(t, d.Has("_id"))
	assert.True(t, d.Has("_ids"))

	_, err = d.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestFields_MetafieldSplit(t *testing.T) {
	d, err := New(map[string]any{"x": 1, "_history": "h", "y": 2, "_tag": "t"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"x", "y"}, d.Fields())
	assert.ElementsMatch(t, []string{"_history", "_tag"}, d.Metafields())
	assert.Equal(t, 4, d.Len())

	// Metafields still shape the identity.
	plain, err := New(map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)
	assert.NotEqual(t, plain.ID(), d.ID())
}

func TestMerge(t *testing.T) {
	a, err := New(map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)
	b, err := New(map[string]any{"y": 20, "z": 30})
	require.NoError(t, err)

	m := a.Merge(b)
	ctx := context.Background()

	y, err := m.Get(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, 20, y)
	assert.True(t, m.Has("z"))

	// Merge equals building the overlay directly.
	direct, err := New(map[string]any{"x": 1, "y": 20, "z": 30})
	require.NoError(t, err)
	assert.Equal(t, direct.ID(), m.ID())

	assert.Same(t, a, a.Merge(nil))
}

func TestMergeMap(t *testing.T) {
	a, err := New(map[string]any{"x": 1})
	require.NoError(t, err)
	m, err := a.MergeMap(map[string]any{"y": 2})
	require.NoError(t, err)

	direct, err := New(map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)
	assert.Equal(t, direct.ID(), m.ID())

	_, err = a.MergeMap(map[string]any{"_id": 1})
	assert.ErrorIs(t, err, ErrReservedField)
}

func TestEntries_InsertionOrder(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)
	for _, k := range []string{"c", "a", "b"} {
		d, err = d.Put(k, k)
		require.NoError(t, err)
	}

	var got []string
	err = d.Entries(context.Background(), func(k string, v any) error {
		got = append(got, k)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, got)
	assert.Equal(t, []string{"c", "a", "b"}, d.Keys())
}

func TestAsMap(t *testing.T) {
	d, err := New(map[string]any{"x": 3, "name": "alice"})
	require.NoError(t, err)

	m, err := d.AsMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, m["x"])
	assert.Equal(t, "alice", m["name"])
	assert.Equal(t, d.ID(), m["_id"])
	assert.Equal(t, d.IDs(), m["_ids"])
}

func TestFromMap_PinnedIDs(t *testing.T) {
	pinned := hosh.Digest([]byte("externally minted")).ID()
	d, err := FromMap(
		map[string]any{"x": 3, "y": 4},
		map[string]string{"x": pinned},
	)
	require.NoError(t, err)

	assert.Equal(t, pinned, d.IDs()["x"])

	// y keeps its content digest, same as a regular Put.
	plain, err := New(map[string]any{"y": 4})
	require.NoError(t, err)
	assert.Equal(t, plain.IDs()["y"], d.IDs()["y"])

	x, err := d.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 3, x)

	_, err = FromMap(map[string]any{"x": 1}, map[string]string{"x": "not an id"})
	assert.ErrorIs(t, err, hosh.ErrBadID)
}

func TestNestedDict_KeepsOwnIdentity(t *testing.T) {
	inner, err := New(map[string]any{"a": 1})
	require.NoError(t, err)
	outer, err := New(map[string]any{"inner": inner, "x": 2})
	require.NoError(t, err)

	assert.Equal(t, inner.ID(), outer.IDs()["inner"])

	got, err := outer.Get(context.Background(), "inner")
	require.NoError(t, err)
	nd, ok := got.(*Dict)
	require.True(t, ok)
	assert.True(t, inner.Equal(nd))
}

func TestEqual(t *testing.T) {
	a, err := New(map[string]any{"x": 1})
	require.NoError(t, err)
	b, err := New(map[string]any{"x": 1})
	require.NoError(t, err)
	c, err := New(map[string]any{"x": 2})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestEvaluated_StrictDict(t *testing.T) {
	d, err := New(map[string]any{"x": 1})
	require.NoError(t, err)
	assert.True(t, d.Evaluated())
}

func BenchmarkNew(b *testing.B) {
	m := map[string]any{
		"alpha": 1, "beta": "two", "gamma": []any{3.0, 4.0},
		"delta": map[string]any{"nested": true},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := New(m); err != nil {
			b.Fatal(err)
		}
	}
}
