// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davips/cdict/hosh"
)

// testBasics runs the shared contract every backend must satisfy.
func testBasics(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	id := hosh.DigestString("conformance " + t.Name()).ID()
	blob := []byte("bpayload")

	found, err := c.Has(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "get before put must miss")

	require.NoError(t, c.Put(ctx, id, blob))
	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blob, got)

	found, err = c.Has(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)

	// Content-addressed entries are overwrite-safe.
	require.NoError(t, c.Put(ctx, id, blob))

	require.NoError(t, c.Delete(ctx, id))
	_, ok, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "get after delete must miss")
	require.NoError(t, c.Delete(ctx, id), "deleting a missing id is not an error")

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 2, stats.Misses)
	assert.EqualValues(t, 2, stats.Puts)
	assert.EqualValues(t, 1, stats.Deletes)
}

func TestBackends_Contract(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		c := NewMemory()
		defer c.Close()
		testBasics(t, c)
	})

	t.Run("file", func(t *testing.T) {
		c, err := NewFile(t.TempDir(), zerolog.Nop())
		require.NoError(t, err)
		defer c.Close()
		testBasics(t, c)
	})

	t.Run("bolt", func(t *testing.T) {
		c, err := OpenBolt(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		defer c.Close()
		testBasics(t, c)
	})

	t.Run("badger", func(t *testing.T) {
		c, err := OpenBadger(t.TempDir())
		require.NoError(t, err)
		defer c.Close()
		testBasics(t, c)
	})

	t.Run("sqlite", func(t *testing.T) {
		c, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		defer c.Close()
		testBasics(t, c)
	})
}

func TestBackends_SurviveReopen(t *testing.T) {
	ctx := context.Background()
	id := hosh.DigestString("persistent").ID()
	blob := []byte("bstill here")

	open := map[string]func(dir string) (Cache, error){
		"file":   func(dir string) (Cache, error) { return NewFile(dir, zerolog.Nop()) },
		"bolt":   func(dir string) (Cache, error) { return OpenBolt(filepath.Join(dir, "cache.db")) },
		"badger": func(dir string) (Cache, error) { return OpenBadger(dir) },
		"sqlite": func(dir string) (Cache, error) { return OpenSQLite(filepath.Join(dir, "cache.db")) },
	}
	for name, factory := range open {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			c, err := factory(dir)
			require.NoError(t, err)
			require.NoError(t, c.Put(ctx, id, blob))
			require.NoError(t, c.Close())

			c, err = factory(dir)
			require.NoError(t, err)
			defer c.Close()
			got, ok, err := c.Get(ctx, id)
			require.NoError(t, err)
			require.True(t, ok, "entry must survive reopen")
			assert.Equal(t, blob, got)
		})
	}
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	c := NewNop()
	id := hosh.DigestString("nop").ID()

	require.NoError(t, c.Put(ctx, id, []byte("bx")))
	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "nop cache stores nothing")
	assert.Equal(t, Stats{}, c.Stats())
	assert.NoError(t, c.Close())
}

func TestOpen_Factory(t *testing.T) {
	logger := zerolog.Nop()

	c, err := Open("", "", logger)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
	_ = c.Close()

	c, err = Open("memory", "", logger)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
	_ = c.Close()

	c, err = Open("nop", "", logger)
	require.NoError(t, err)
	assert.IsType(t, &Nop{}, c)

	c, err = Open("file", t.TempDir(), logger)
	require.NoError(t, err)
	assert.IsType(t, &File{}, c)
	_ = c.Close()

	c, err = Open("sqlite", filepath.Join(t.TempDir(), "c.db"), logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, c)
	_ = c.Close()

	_, err = Open("carrier-pigeon", "", logger)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestFile_RejectsMalformedIDs(t *testing.T) {
	c, err := NewFile(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	for _, id := range []string{"", "../../etc/passwd", "short", "x/y"} {
		err := c.Put(ctx, id, []byte("bx"))
		require.Error(t, err, "id %q", id)
		assert.ErrorIs(t, err, hosh.ErrBadID)
	}
}
