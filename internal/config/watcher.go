package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Overlay holds the subset of Config fields that are safe to change at
// runtime without restarting the engine. Pointer fields mean "unset" when
// nil, so a partial overlay file only touches the keys it mentions.
type Overlay struct {
	LogLevel                  *string        `yaml:"logLevel"`
	DecayLambda               *float64       `yaml:"decayLambda"`
	PromotionThreshold        *int           `yaml:"promotionThreshold"`
	EnrichSimilarityThreshold *float64       `yaml:"enrichSimilarityThreshold"`
	ZPTDefaultMaxTokens       *int           `yaml:"zptDefaultMaxTokens"`
	MaintenanceInterval       *time.Duration `yaml:"maintenanceInterval"`
}

// LoadFileOverlay reads an Overlay from a YAML file. A missing file is not
// an error: it yields a zero-value Overlay, so a deployment that never
// drops an overlay file behaves exactly like one that disables hot-reload.
func LoadFileOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Overlay{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading overlay %s: %w", path, err)
	}
	var ov Overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("config: parsing overlay %s: %w", path, err)
	}
	return &ov, nil
}

// Apply returns a copy of base with every non-nil Overlay field substituted
// in, then validated. base is never mutated.
func Apply(base Config, ov *Overlay) (*Config, error) {
	out := base
	if ov != nil {
		if ov.LogLevel != nil {
			out.LogLevel = *ov.LogLevel
		}
		if ov.DecayLambda != nil {
			out.DecayLambda = *ov.DecayLambda
		}
		if ov.PromotionThreshold != nil {
			out.PromotionThreshold = *ov.PromotionThreshold
		}
		if ov.EnrichSimilarityThreshold != nil {
			out.EnrichSimilarityThreshold = *ov.EnrichSimilarityThreshold
		}
		if ov.ZPTDefaultMaxTokens != nil {
			out.ZPTDefaultMaxTokens = *ov.ZPTDefaultMaxTokens
		}
		if ov.MaintenanceInterval != nil {
			out.MaintenanceInterval = *ov.MaintenanceInterval
		}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Watcher hot-reloads an Overlay file and republishes a merged Config on
// every change, debouncing the burst of events a single save produces.
// It watches the overlay's containing directory rather than the file
// itself, since editors that save via temp-file-then-rename replace the
// inode fsnotify originally watched.
type Watcher struct {
	path   string
	base   Config
	logger *zap.Logger
	fsw    *fsnotify.Watcher

	current atomic.Pointer[Config]

	mu        sync.Mutex
	onChange  []func(*Config)
	debounce  *time.Timer
	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher loads path once to establish the initial Config, then starts
// watching it for changes. base supplies every field the overlay does not
// override.
func NewWatcher(path string, base Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ov, err := LoadFileOverlay(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Apply(base, ov)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: starting watcher: %w", err)
	}
	watchDir := filepath.Dir(path)
	if err := fsw.Add(watchDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", watchDir, err)
	}

	w := &Watcher{
		path:   path,
		base:   base,
		logger: logger,
		fsw:    fsw,
		done:   make(chan struct{}),
	}
	w.current.Store(cfg)
	go w.run()
	return w, nil
}

// Current returns the most recently applied Config.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// OnChange registers a callback invoked with the new Config after each
// successful reload. Callbacks are not invoked for the initial load.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) run() {
	const debounceDelay = 200 * time.Millisecond
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload(debounceDelay)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) scheduleReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *Watcher) reload() {
	ov, err := LoadFileOverlay(w.path)
	if err != nil {
		w.logger.Warn("config overlay reload failed, keeping previous config", zap.Error(err))
		return
	}
	cfg, err := Apply(w.base, ov)
	if err != nil {
		w.logger.Warn("config overlay produced invalid config, keeping previous config", zap.Error(err))
		return
	}
	w.current.Store(cfg)
	w.logger.Info("config overlay reloaded", zap.String("path", w.path))

	w.mu.Lock()
	callbacks := append([]func(*Config){}, w.onChange...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
}
