// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davips/cdict/cache"
)

func captureStdout(t *testing.T, fn func() int) (string, int) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	code := fn()
	_ = w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read pipe: %v", err)
	}
	return string(out), code
}

func writeJSON(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestStoreGetShowRoundtrip(t *testing.T) {
	dir := t.TempDir()
	input := writeJSON(t, dir, "in.json", `{"x": {"y": 5}, "name": "demo"}`)
	storeDir := filepath.Join(dir, "store")

	storeArgs := []string{"-backend", "file", "-target", storeDir, input}
	out, code := captureStdout(t, func() int { return runStore(storeArgs) })
	if code != 0 {
		t.Fatalf("store exit = %d", code)
	}
	dictID := strings.TrimSpace(out)
	if len(dictID) != 40 {
		t.Fatalf("store printed %q, want a 40-digit id", dictID)
	}

	// The dict id resolves to its skeleton; pull a field id out of it.
	getArgs := []string{"-backend", "file", "-target", storeDir, "-path", "_ids.name", dictID}
	out, code = captureStdout(t, func() int { return runGet(getArgs) })
	if code != 0 {
		t.Fatalf("get exit = %d", code)
	}
	nameID := strings.TrimSpace(out)
	if len(nameID) != 40 {
		t.Fatalf("get -path _ids.name printed %q, want a 40-digit id", nameID)
	}

	out, code = captureStdout(t, func() int {
		return runGet([]string{"-backend", "file", "-target", storeDir, nameID})
	})
	if code != 0 {
		t.Fatalf("get field exit = %d", code)
	}
	if strings.TrimSpace(out) != `"demo"` {
		t.Fatalf("field content = %q, want %q", strings.TrimSpace(out), `"demo"`)
	}

	// Nested path through the stored structure.
	out, code = captureStdout(t, func() int {
		return runGet([]string{"-backend", "file", "-target", storeDir, "-path", "_ids.x", dictID})
	})
	if code != 0 {
		t.Fatalf("get x id exit = %d", code)
	}
	xID := strings.TrimSpace(out)
	out, code = captureStdout(t, func() int {
		return runGet([]string{"-backend", "file", "-target", storeDir, "-path", "y", xID})
	})
	if code != 0 {
		t.Fatalf("get x.y exit = %d", code)
	}
	if strings.TrimSpace(out) != "5" {
		t.Fatalf("x.y = %q, want 5", strings.TrimSpace(out))
	}

	out, code = captureStdout(t, func() int {
		return runShow([]string{"-backend", "file", "-target", storeDir, "-plain", dictID})
	})
	if code != 0 {
		t.Fatalf("show exit = %d", code)
	}
	if !strings.Contains(out, `"_id": "`+dictID+`"`) {
		t.Fatalf("show output missing dict id:\n%s", out)
	}
	if !strings.Contains(out, `"name": "demo"`) {
		t.Fatalf("show output missing field content:\n%s", out)
	}
}

func TestGetMiss(t *testing.T) {
	dir := t.TempDir()
	id := strings.Repeat("0", 40)
	_, code := captureStdout(t, func() int {
		return runGet([]string{"-backend", "file", "-target", dir, id})
	})
	if code != 1 {
		t.Fatalf("get miss exit = %d, want 1", code)
	}
}

func TestGetUsageErrors(t *testing.T) {
	if _, code := captureStdout(t, func() int { return runGet([]string{"not-an-id"}) }); code != 2 {
		t.Fatalf("bad id exit = %d, want 2", code)
	}
	if _, code := captureStdout(t, func() int { return runGet([]string{}) }); code != 2 {
		t.Fatalf("missing id exit = %d, want 2", code)
	}
}

func TestStoreRejectsNonObject(t *testing.T) {
	dir := t.TempDir()
	input := writeJSON(t, dir, "bad.json", `[1, 2, 3]`)
	_, code := captureStdout(t, func() int {
		return runStore([]string{"-backend", "file", "-target", filepath.Join(dir, "store"), input})
	})
	if code != 1 {
		t.Fatalf("store exit = %d, want 1", code)
	}
}

func TestStatsLocal(t *testing.T) {
	dir := t.TempDir()
	input := writeJSON(t, dir, "in.json", `{"a": 1}`)
	storeDir := filepath.Join(dir, "store")

	if _, code := captureStdout(t, func() int {
		return runStore([]string{"-backend", "file", "-target", storeDir, input})
	}); code != 0 {
		t.Fatalf("store failed")
	}

	out, code := captureStdout(t, func() int {
		return runStats([]string{"-backend", "file", "-target", storeDir})
	})
	if code != 0 {
		t.Fatalf("stats exit = %d", code)
	}
	if !strings.Contains(out, "entries:") {
		t.Fatalf("stats output = %q", out)
	}
}

func TestVerifySQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.sqlite")
	store, err := cache.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	id := strings.Repeat("1", 40)
	if err := store.Put(context.Background(), id, []byte("bdata")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, code := captureStdout(t, func() int {
		return runVerify([]string{"-target", path})
	})
	if code != 0 {
		t.Fatalf("verify exit = %d", code)
	}
	if strings.TrimSpace(out) != "ok" {
		t.Fatalf("verify output = %q, want ok", out)
	}

	if _, code := captureStdout(t, func() int {
		return runVerify([]string{"-target", path, "-mode", "bogus"})
	}); code != 2 {
		t.Fatalf("bad mode exit = %d, want 2", code)
	}
}

func TestVersionPrints(t *testing.T) {
	out, code := captureStdout(t, runVersion)
	if code != 0 {
		t.Fatalf("version exit = %d", code)
	}
	if !strings.Contains(out, "cdictctl") {
		t.Fatalf("version output = %q", out)
	}
}
