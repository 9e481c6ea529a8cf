// Package trackedfs handles the tracked-path side of event capture: which
// filesystem paths are part of an event's input context, and keeping their
// snapshots current while the event is still executing.
package trackedfs

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Set is the normalized collection of tracked roots. A path is tracked when
// it equals a root or lies anywhere under a root directory.
type Set struct {
	roots []string
}

// NewSet builds a tracked-path set. Paths are made absolute and cleaned so
// that record and replay agree on path identity.
func NewSet(paths []string) (*Set, error) {
	s := &Set{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("tracked path %q: %w", p, err)
		}
		s.roots = append(s.roots, filepath.Clean(abs))
	}
	return s, nil
}

// Roots returns the normalized tracked roots.
func (s *Set) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Normalize returns the canonical form of path used as the snapshot key.
func (s *Set) Normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("tracked path %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// Contains reports whether path is under one of the tracked roots.
func (s *Set) Contains(path string) bool {
	norm, err := s.Normalize(path)
	if err != nil {
		return false
	}
	for _, root := range s.roots {
		if norm == root || strings.HasPrefix(norm, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
