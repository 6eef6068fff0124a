package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watch re-reads the configuration whenever the file at path changes and
// hands the parsed result to onReload. Parse failures are logged and the
// previous configuration stays in effect. The returned stop function shuts
// the watcher down.
func Watch(path string, onReload func(*Config)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory rather than the file: editors replace config
	// files on save, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, errLoad := Load(path)
				if errLoad != nil {
					log.Warnf("config reload skipped: %v", errLoad)
					continue
				}
				log.WithField("path", path).Info("configuration reloaded")
				onReload(cfg)
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("config watcher error: %v", errWatch)
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}
