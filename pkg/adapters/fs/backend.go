// Package fs stores drafts as Markdown files and watches note files edited
// outside the engine.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/inkwell/pkg/core"
)

const draftExt = ".md"

// Config holds the configuration for the filesystem draft backend.
type Config struct {
	// Dir is the directory holding one file per draft key.
	Dir string
	// MustExist fails Initialize when Dir is missing instead of creating it.
	MustExist bool
	Logger    *slog.Logger
}

// DraftBackend implements core.DraftBackend on a directory of Markdown files.
type DraftBackend struct {
	Dir    string
	config Config
	cache  *cache

	// mu serializes writers; readers rely on atomic renames.
	mu     sync.Mutex
	writes int
}

// NewDraftBackend creates a backend rooted at config.Dir. Call Initialize
// before use.
func NewDraftBackend(config Config) *DraftBackend {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &DraftBackend{
		Dir:    config.Dir,
		config: config,
		cache:  newCache(),
	}
}

// Initialize prepares the draft directory.
func (b *DraftBackend) Initialize(ctx context.Context) error {
	if b.config.MustExist {
		info, err := os.Stat(b.Dir)
		if os.IsNotExist(err) {
			return fmt.Errorf("draft directory does not exist: %s", b.Dir)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("draft path is not a directory: %s", b.Dir)
		}
		return nil
	}
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return fmt.Errorf("create draft directory: %w", err)
	}
	return nil
}

// Put writes the draft for key, replacing any previous one.
func (b *DraftBackend) Put(ctx context.Context, key string, d core.Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.path(key)
	if err != nil {
		return err
	}
	data, err := EncodeDraft(d)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := writeAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("put draft %s: %w", key, err)
	}
	b.writes++
	if info, err := os.Stat(path); err == nil {
		b.cache.Set(key, d, info.ModTime(), info.Size())
	}
	return nil
}

// Get returns the draft for key, core.ErrNotFound when there is none, or an
// error wrapping ErrMalformed for a corrupt file.
func (b *DraftBackend) Get(ctx context.Context, key string) (core.Draft, error) {
	if err := ctx.Err(); err != nil {
		return core.Draft{}, err
	}
	path, err := b.path(key)
	if err != nil {
		return core.Draft{}, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		b.cache.Delete(key)
		return core.Draft{}, fmt.Errorf("draft %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return core.Draft{}, err
	}
	if d, ok := b.cache.Get(key, info.ModTime(), info.Size()); ok {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return core.Draft{}, fmt.Errorf("read draft %s: %w", key, err)
	}
	d, err := DecodeDraft(data)
	if err != nil {
		b.config.Logger.Debug("corrupt draft file", "path", path, "error", err)
		return core.Draft{}, fmt.Errorf("draft %s: %w", key, err)
	}
	b.cache.Set(key, d, info.ModTime(), info.Size())
	return d, nil
}

// Delete removes the draft for key. Missing drafts are not an error.
func (b *DraftBackend) Delete(ctx context.Context, key string) error {
	path, err := b.path(key)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.cache.Delete(key)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete draft %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored draft keys in lexical order.
func (b *DraftBackend) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	keep := make(map[string]bool, len(entries))
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || isTemp(name) || filepath.Ext(name) != draftExt {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, draftExt))
		if err != nil {
			b.config.Logger.Debug("skipping foreign file in draft directory", "name", name)
			continue
		}
		keep[key] = true
		keys = append(keys, key)
	}
	b.cache.Prune(keep)
	sort.Strings(keys)
	return keys, nil
}

// Path returns the file that holds the draft for key.
func (b *DraftBackend) Path(key string) (string, error) {
	return b.path(key)
}

func (b *DraftBackend) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", core.ErrInvalidDraft)
	}
	return filepath.Join(b.Dir, url.PathEscape(key)+draftExt), nil
}

var _ core.DraftBackend = (*DraftBackend)(nil)
