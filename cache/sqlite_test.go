// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davips/cdict/hosh"
)

func TestVerifyIntegrity_Healthy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(context.Background(), hosh.DigestString("x").ID(), []byte("bx")))
	require.NoError(t, c.Close())

	for _, mode := range []string{"quick", "full"} {
		problems, err := VerifyIntegrity(path, mode)
		require.NoError(t, err)
		assert.Nil(t, problems, "fresh database must verify clean in %s mode", mode)
	}
}

func TestVerifyIntegrity_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database"), 0o600))

	problems, err := VerifyIntegrity(path, "quick")
	if err == nil {
		assert.NotEmpty(t, problems, "garbage must not verify clean")
	}
}

func TestSQLite_OverwriteKeepsLatest(t *testing.T) {
	ctx := context.Background()
	c, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	id := hosh.DigestString("rewrite").ID()
	require.NoError(t, c.Put(ctx, id, []byte("bone")))
	require.NoError(t, c.Put(ctx, id, []byte("btwo")))

	data, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("btwo"), data)
}
