package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fy0/filterable/filter"
)

// FileOracle is a filter.MetadataOracle backed by a mapping file. The
// catalog is swapped atomically on Reload; a failed reload keeps the
// previous catalog.
type FileOracle struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	catalog filter.Catalog
	loaded  time.Time

	// OnReload is called after every reload attempt from Watch.
	OnReload func(err error)
}

var _ filter.MetadataOracle = (*FileOracle)(nil)

// NewFileOracle loads path. A nil logger discards output.
func NewFileOracle(path string, logger *slog.Logger) (*FileOracle, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o := &FileOracle{path: path, logger: logger}
	if err := o.Reload(); err != nil {
		return nil, err
	}
	return o, nil
}

// Metadata implements filter.MetadataOracle.
func (o *FileOracle) Metadata(name string) (*filter.ObjectMetadata, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.catalog.Metadata(name)
}

// Entities returns the entity names in sorted order.
func (o *FileOracle) Entities() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return sortedKeys(o.catalog)
}

// Loaded returns the time of the last successful load.
func (o *FileOracle) Loaded() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loaded
}

// Reload reads the mapping file again. A file without entities is an
// error, as editors may truncate a file before writing it.
func (o *FileOracle) Reload() error {
	c, err := LoadFile(o.path)
	if err != nil {
		return err
	}
	if len(c) == 0 {
		return fmt.Errorf("%s: catalog has no entities", o.path)
	}
	o.mu.Lock()
	o.catalog = c
	o.loaded = time.Now()
	o.mu.Unlock()
	return nil
}

// Watch reloads the catalog whenever the mapping file changes. It blocks
// until ctx is cancelled. The parent directory is watched so files
// replaced by rename are picked up.
func (o *FileOracle) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(o.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("cannot watch catalog directory: %w", err)
	}
	o.logger.Info("watching catalog", "path", target)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				o.logger.Debug("ignoring catalog event", "event", event.String())
				continue
			}

			err := o.Reload()
			if err != nil {
				o.logger.Error("cannot reload catalog", "path", target, "error", err)
			} else {
				o.logger.Info("catalog reloaded", "path", target, "entities", len(o.Entities()))
			}
			if o.OnReload != nil {
				o.OnReload(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("catalog watcher error", "error", err)
		}
	}
}
