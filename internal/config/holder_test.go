// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_GetAndReload(t *testing.T) {
	path := writeConfig(t, "backend: memory\n")
	initial, err := Load(path)
	require.NoError(t, err)

	h := NewHolder(initial, path)
	defer h.Stop()
	assert.Equal(t, "memory", h.Get().Backend)

	require.NoError(t, os.WriteFile(path, []byte("backend: bolt\ntarget: /tmp/x.db\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, "bolt", h.Get().Backend)
}

func TestHolder_ReloadKeepsOldConfigOnFailure(t *testing.T) {
	path := writeConfig(t, "backend: memory\n")
	initial, err := Load(path)
	require.NoError(t, err)

	h := NewHolder(initial, path)
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte("backend: carrier-pigeon\n"), 0o600))
	assert.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "memory", h.Get().Backend, "failed reload must not change the config")
}

func TestHolder_NotifiesListeners(t *testing.T) {
	path := writeConfig(t, "backend: memory\n")
	initial, err := Load(path)
	require.NoError(t, err)

	h := NewHolder(initial, path)
	defer h.Stop()
	ch := make(chan Config, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("backend: memory\nlisten: \":9001\"\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	select {
	case got := <-ch:
		assert.Equal(t, ":9001", got.Listen)
	case <-time.After(time.Second):
		t.Fatal("listener was not notified")
	}
}

func TestHolder_WatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "backend: memory\n")
	initial, err := Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHolder(initial, path)
	require.NoError(t, h.StartWatcher(ctx))
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte("backend: memory\nlisten: \":9002\"\n"), 0o600))

	assert.Eventually(t, func() bool {
		return h.Get().Listen == ":9002"
	}, 5*time.Second, 50*time.Millisecond, "watcher should pick up the change")
}

func TestHolder_WatcherDisabledWithoutPath(t *testing.T) {
	h := NewHolder(Default(), "")
	defer h.Stop()
	assert.NoError(t, h.StartWatcher(context.Background()))
}
