package parser

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
)

// ReloadDebounce collapses the burst of events editors emit on save
const ReloadDebounce = 500 * time.Millisecond

// Catalog is the read-only DescriptorStore built from the data_sources
// section. Replace swaps the whole set atomically on reload.
type Catalog struct {
	mu          sync.RWMutex
	descriptors map[string]domain.DataSourceDescriptor
	ordered     []domain.DataSourceDescriptor
}

var _ interfaces.DescriptorStore = (*Catalog)(nil)

// NewCatalog builds a catalog from cfg
func NewCatalog(cfg *Config) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace swaps in the data sources of cfg. On error the catalog is unchanged.
func (c *Catalog) Replace(cfg *Config) error {
	ordered, err := cfg.Descriptors()
	if err != nil {
		return err
	}
	byName := make(map[string]domain.DataSourceDescriptor, len(ordered))
	for _, d := range ordered {
		byName[d.Name] = d
	}

	c.mu.Lock()
	c.descriptors = byName
	c.ordered = ordered
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Get(name string) (domain.DataSourceDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.descriptors[name]
	return d, ok
}

func (c *Catalog) List() []domain.DataSourceDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.DataSourceDescriptor, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of data sources
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}

// Watch reloads the config file at path whenever it changes and calls
// onReload with the new configuration. A file that fails to load leaves the
// previous configuration in place. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// watch the directory: editors replace the file by rename
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return err
	}

	reload := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	log.Infof("Watching %s for changes", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(ReloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Config watcher error: %v", err)
		case <-reload:
			if _, err := os.Stat(absPath); err != nil {
				log.Warnf("Config file unavailable, keeping current data sources: %v", err)
				continue
			}
			cfg, err := LoadConfig(absPath)
			if err != nil {
				log.Warnf("Reload failed, keeping current data sources: %v", err)
				continue
			}
			log.Infof("Config changed, reloaded %d data sources", len(cfg.DataSources))
			onReload(cfg)
		}
	}
}
