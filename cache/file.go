// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// File stores one blob per file under a base directory, sharded by the first
// two id digits so no single directory collects millions of entries. Writes
// go through renameio so readers never observe a partial blob, even across a
// power failure mid-write.
type File struct {
	dir    string
	logger zerolog.Logger
	counters
}

// DefaultDir resolves the default on-disk cache location: the CDICT_CACHE_DIR
// environment variable when set, otherwise the user cache dir plus "cdict".
func DefaultDir() (string, error) {
	if dir := os.Getenv("CDICT_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(base, "cdict"), nil
}

// NewFile creates a file-backed cache rooted at dir, creating it as needed.
// An empty dir selects DefaultDir.
func NewFile(dir string, logger zerolog.Logger) (*File, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &File{dir: abs, logger: logger}, nil
}

// path maps an id to its blob file. Ids come from the hosh alphabet, which
// is filesystem-safe, but anything with a separator is rejected upstream by
// validateID.
func (c *File) path(id string) string {
	shard := "__"
	if len(id) >= 2 {
		shard = id[:2]
	}
	return filepath.Join(c.dir, shard, id)
}

func (c *File) Get(_ context.Context, id string) ([]byte, bool, error) {
	if err := validateID(id); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(c.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		c.miss()
		return nil, false, nil
	}
	if err != nil {
		c.miss()
		return nil, false, fmt.Errorf("read blob %s: %w", id, err)
	}
	c.hit()
	return data, true, nil
}

func (c *File) Put(_ context.Context, id string, data []byte) error {
	if err := validateID(id); err != nil {
		return err
	}
	path := c.path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}

	// renameio handles temp file creation, fsync, atomic rename and cleanup.
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending blob: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			c.logger.Debug().Err(err).Str("id", id).Msg("cleanup pending blob")
		}
	}()
	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write blob %s: %w", id, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace blob %s: %w", id, err)
	}
	c.put()
	return nil
}

func (c *File) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	err := os.Remove(c.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	c.delete()
	return nil
}

func (c *File) Has(_ context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	_, err := os.Stat(c.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat blob %s: %w", id, err)
	}
	return true, nil
}

// Stats counts traffic only; sizing the tree would walk every shard.
func (c *File) Stats() Stats { return c.snapshot(-1) }

func (c *File) Close() error { return nil }

// Dir returns the resolved base directory.
func (c *File) Dir() string { return c.dir }

var _ Cache = (*File)(nil)
