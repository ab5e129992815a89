package flatten

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Collision is a file that could not be moved up because a file with the
// same base name already sits at the destination. The earlier file wins;
// the later one stays where it was found and is reported.
type Collision struct {
	Name string
	Path string
}

// Report describes one flattening pass.
type Report struct {
	Moved       []string
	Collisions  []Collision
	RemovedDirs int
}

// Flatten moves every regular file found at any depth below root up to root
// itself, then removes directories that became empty, deepest first. Hidden
// entries are skipped. Traversal is depth-first in lexicographic order, so
// the first-seen-wins collision policy is reproducible across filesystems.
// Running Flatten on an already flat tree is a no-op.
func Flatten(root string, log *slog.Logger) (Report, error) {
	var rep Report

	entries, err := sortedEntries(root)
	if err != nil {
		return rep, err
	}
	for _, entry := range entries {
		if !entry.IsDir() || hidden(entry.Name()) {
			continue
		}
		if err := flattenDir(root, filepath.Join(root, entry.Name()), &rep, log); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// flattenDir handles one subtree: children first, then this directory's
// files, then the directory itself if nothing is left inside.
func flattenDir(root, dir string, rep *Report, log *slog.Logger) error {
	entries, err := sortedEntries(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if hidden(entry.Name()) {
			continue
		}
		src := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := flattenDir(root, src, rep, log); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		dst := filepath.Join(root, entry.Name())
		if _, err := os.Stat(dst); err == nil {
			rep.Collisions = append(rep.Collisions, Collision{Name: entry.Name(), Path: src})
			log.Warn("name collision while flattening, keeping first file",
				slog.String("name", entry.Name()), slog.String("left_at", src))
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to move %s up: %w", src, err)
		}
		rep.Moved = append(rep.Moved, entry.Name())
	}

	remaining, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to re-read %s: %w", dir, err)
	}
	if len(remaining) == 0 {
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("failed to remove empty directory %s: %w", dir, err)
		}
		rep.RemovedDirs++
	}
	return nil
}

func sortedEntries(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
