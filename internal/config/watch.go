package config

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce collapses editor save bursts into one reload.
const debounce = 250 * time.Millisecond

// Watch reloads configuration whenever conf/ or a form directory changes
// and hands the new Config to onChange.  A reload that fails keeps the
// previous Config in place.  Watch blocks until ctx ends.
func Watch(ctx context.Context, secrets SecretResolver, onChange func(*Config)) error {
	cfg := Get()
	if cfg == nil {
		cfg, _ = Load(ctx)
		if cfg == nil {
			return errNotLoaded
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := append([]string{filepath.Join(cfg.Paths.Root, "conf")}, cfg.Forms.Dirs...)
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			zap.S().Debugw("config watch skipped", "dir", d, "err", err)
			continue
		}
		zap.S().Debugw("config watching", "dir", d)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			zap.S().Warnw("config watcher error", "err", err)

		case <-fire:
			fire = nil
			next, err := LoadFrom(ctx, cfg.Paths.Root, secrets)
			if err != nil {
				zap.S().Errorw("config reload failed, keeping previous", "err", err)
				continue
			}
			cfg = next
			onChange(next)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	switch strings.ToLower(filepath.Ext(ev.Name)) {
	case ".yaml", ".yml", ".env":
		return true
	}
	return filepath.Base(ev.Name) == ".env"
}
