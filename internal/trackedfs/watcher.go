package trackedfs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/unitreplay/internal/recorder"
)

// Watch re-snapshots tracked files that change while an event is still
// executing, so the committed record carries the content the handler
// actually saw last. It runs until ctx is cancelled; the caller cancels it
// just before committing the session.
//
// Snapshot updates are best-effort: a failed re-snapshot must never abort
// the live invocation it is observing.
func Watch(ctx context.Context, set *Set, session *recorder.Session) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch every directory under the tracked roots. Watching the parent of
	// a file root catches editors that replace files via rename.
	for _, root := range set.Roots() {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			_ = watcher.Add(filepath.Dir(root))
			continue
		}
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if !set.Contains(event.Name) {
					continue
				}
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if event.Has(fsnotify.Create) {
						_ = watcher.Add(event.Name)
					}
					continue
				}
				norm, err := set.Normalize(event.Name)
				if err != nil {
					continue
				}
				content, err := os.ReadFile(norm)
				if err != nil {
					continue
				}
				_ = session.ReplaceFile(norm, content)
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; keep observing.
		}
	}
}
