package trackedfs

import (
	"os"
	"path/filepath"

	"github.com/blackwell-systems/unitreplay/internal/recorder"
)

// Snapshot captures the current content of every file under the tracked
// roots into the session, keyed by normalized path. Roots that do not exist
// and entries that cannot be read are skipped; the recording proceeds with
// what is there.
func Snapshot(set *Set, session *recorder.Session) error {
	for _, root := range set.Roots() {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if err := snapshotOne(set, session, root); err != nil {
				return err
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() {
				return nil
			}
			return snapshotOne(set, session, path)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func snapshotOne(set *Set, session *recorder.Session, path string) error {
	norm, err := set.Normalize(path)
	if err != nil {
		return nil
	}
	content, err := os.ReadFile(norm)
	if err != nil {
		return nil
	}
	return session.SnapshotFile(norm, content)
}
