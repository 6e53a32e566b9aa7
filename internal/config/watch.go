package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"pbr-engine/internal/logger"
)

// Watcher re-reads a config file whenever it changes and delivers valid
// results on Configs. Only the newest undelivered config is kept; invalid
// files are logged and skipped.
type Watcher struct {
	Configs <-chan Config

	configs chan Config
	watcher *fsnotify.Watcher
	done    chan struct{}
	exited  chan struct{}
}

// Watch starts watching path. The parent directory is watched since editors
// often replace a file by renaming over it.
func Watch(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	configs := make(chan Config, 1)
	w := &Watcher{
		Configs: configs,
		configs: configs,
		watcher: fw,
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go w.loop(abs)
	return w, nil
}

func (w *Watcher) loop(path string) {
	defer close(w.exited)
	log := logger.Logger()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config ignored", "path", path, "err", err)
				continue
			}
			w.publish(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watch error", "err", err)
		}
	}
}

func (w *Watcher) publish(cfg Config) {
	select {
	case <-w.configs:
	default:
	}
	w.configs <- cfg
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	<-w.exited
	return err
}
