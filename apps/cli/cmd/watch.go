package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitprobe/packages/scenario"
	"github.com/fsnotify/fsnotify"
)

// WatchDebounceDelay is the debounce delay for file watch events
const WatchDebounceDelay = 300 * time.Millisecond

// watch re-runs the suite whenever a scenario file under args changes, until
// ctx is cancelled. It returns the outcome of the last run.
func (s *session) watch(ctx context.Context, args []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range watchDirs(args) {
		if err := watcher.Add(dir); err != nil {
			warnf("failed to watch %s: %v", dir, err)
		}
	}

	out := s.cmd.ErrOrStderr()
	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		changed string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return s.lastErr

		case event, ok := <-watcher.Events:
			if !ok {
				return s.lastErr
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// new subdirectories need their own watch
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			if !scenario.IsScenarioFile(event.Name) {
				continue
			}
			changed = event.Name
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(WatchDebounceDelay)
			fire = timer.C

		case <-fire:
			fire = nil
			fmt.Fprintf(out, "\nFile changed: %s\nRe-running scenarios...\n", changed)
			s.report(s.runOnce(ctx, args))
			fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return s.lastErr
			}
			warnf("watcher error: %v", err)
		}
	}
}

// watchDirs lists the directories to watch for args: every non-hidden
// directory below a directory argument and the parent of a file argument.
func watchDirs(args []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			add(filepath.Dir(arg))
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if path != arg && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			add(path)
			return nil
		})
	}
	return dirs
}
