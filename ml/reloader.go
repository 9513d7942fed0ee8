package ml

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type BuildFunc func(ctx context.Context) (*Predictor, error)

type ReloaderConfig struct {
	Paths    []string
	Debounce time.Duration
	OnReload func(generation uint64, err error)
}

// Reloader 监听模型文件和参考数据，变更后重新构建并发布；失败时保留旧快照
type Reloader struct {
	engine   *Engine
	build    BuildFunc
	config   ReloaderConfig
	logger   *zap.Logger
	paths    map[string]bool
	watcher  *fsnotify.Watcher
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewReloader(engine *Engine, build BuildFunc, config ReloaderConfig, logger *zap.Logger) (*Reloader, error) {
	if engine == nil || build == nil {
		return nil, errors.New("engine and build func are required")
	}
	if len(config.Paths) == 0 {
		return nil, errors.New("no paths to watch")
	}
	if config.Debounce <= 0 {
		config.Debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	paths := make(map[string]bool, len(config.Paths))
	for _, p := range config.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		paths[abs] = true
	}
	return &Reloader{
		engine: engine,
		build:  build,
		config: config,
		logger: logger,
		paths:  paths,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start 监听父目录，以便捕获通过 rename 替换的文件
func (r *Reloader) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dirs := make(map[string]bool)
	for p := range r.paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	r.watcher = watcher
	go r.run()
	r.logger.Info("hot reload enabled", zap.Int("files", len(r.paths)), zap.Duration("debounce", r.config.Debounce))
	return nil
}

func (r *Reloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.stop)
		if r.watcher == nil {
			return
		}
		<-r.done
		err = r.watcher.Close()
	})
	return err
}

func (r *Reloader) Reload(ctx context.Context) error {
	predictor, err := r.build(ctx)
	if err != nil {
		r.logger.Error("reload failed, keeping current model", zap.Error(err))
		r.notify(r.engine.Generation(), err)
		return err
	}
	generation := r.engine.Publish(predictor)
	r.logger.Info("model reloaded", zap.Uint64("generation", generation))
	r.notify(generation, nil)
	return nil
}

func (r *Reloader) notify(generation uint64, err error) {
	if r.config.OnReload != nil {
		r.config.OnReload(generation, err)
	}
}

func (r *Reloader) run() {
	defer close(r.done)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !r.paths[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			r.logger.Debug("watched file changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(r.config.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(r.config.Debounce)
			}
			timerC = timer.C
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("watcher error", zap.Error(err))
		case <-timerC:
			timerC = nil
			_ = r.Reload(context.Background())
		case <-r.stop:
			return
		}
	}
}
