// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// FileCache keeps one file per key under a directory. Writes are atomic and
// durable (fsync + rename), so a crash never leaves a torn snapshot behind.
type FileCache struct {
	dir    string
	logger zerolog.Logger
	stats  struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

type fileEntry struct {
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Data      []byte    `json:"data"`
}

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")

// NewFileCache creates dir if needed.
func NewFileCache(dir string, logger zerolog.Logger) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("file cache: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("file cache: create %s: %w", dir, err)
	}
	return &FileCache{dir: dir, logger: logger}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, keyReplacer.Replace(key)+".cache")
}

func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn().Err(err).Str("key", key).Msg("file cache read failed")
		}
		c.stats.misses.Add(1)
		return nil, false
	}

	var e fileEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("file cache entry corrupt")
		c.stats.misses.Add(1)
		return nil, false
	}
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		c.stats.misses.Add(1)
		return nil, false
	}

	c.stats.hits.Add(1)
	return e.Data, true
}

func (c *FileCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := fileEntry{Data: value}
	if ttl > 0 {
		e.ExpiresAt = time.Now().Add(ttl)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("file cache: encode %s: %w", key, err)
	}

	pendingFile, err := renameio.NewPendingFile(c.path(key), renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("file cache: create pending file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("cleanup pending cache file")
		}
	}()

	if _, err := pendingFile.Write(raw); err != nil {
		return fmt.Errorf("file cache: write %s: %w", key, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("file cache: commit %s: %w", key, err)
	}
	c.stats.sets.Add(1)
	return nil
}

func (c *FileCache) Delete(_ context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file cache: delete %s: %w", key, err)
	}
	return nil
}

func (c *FileCache) Stats() CacheStats {
	matches, _ := filepath.Glob(filepath.Join(c.dir, "*.cache"))
	return CacheStats{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		CurrentSize: len(matches),
	}
}

func (c *FileCache) Close() error { return nil }
