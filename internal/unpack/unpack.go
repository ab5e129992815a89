package unpack

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ArchiveError marks a container that could not be unpacked. The archive
// file itself is always left in place for manual inspection.
type ArchiveError struct {
	Archive string
	Err     error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Archive, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// Report lists what happened to a student folder's containers.
type Report struct {
	// Extracted holds archive filenames that were fully extracted and
	// removed.
	Extracted []string
	// Rars holds rar filenames. They are never extracted, only flagged.
	Rars []string
	// Failed holds archives whose extraction was aborted.
	Failed []*ArchiveError
}

// Extract unpacks every zip archive found at the top level of dir into a
// sibling directory named after the archive without its extension, then
// removes the archive. Extraction is all-or-nothing per archive: a corrupt
// entry aborts that archive, leaves the file in place and never leaves a
// partially filled directory behind. Rar containers are flagged, never
// opened. Non-archive files and existing directories are untouched.
func Extract(dir string, log *slog.Logger) (Report, error) {
	var rep Report

	entries, err := os.ReadDir(dir)
	if err != nil {
		return rep, fmt.Errorf("failed to read student folder %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".rar":
			rep.Rars = append(rep.Rars, name)
			log.Warn("rar container flagged, not extracted", slog.String("file", name))
		case ".zip":
			if err := extractZip(dir, name); err != nil {
				ae := &ArchiveError{Archive: name, Err: err}
				rep.Failed = append(rep.Failed, ae)
				log.Warn("zip extraction aborted", slog.String("file", name), slog.Any("error", err))
				continue
			}
			rep.Extracted = append(rep.Extracted, name)
			log.Debug("zip extracted", slog.String("file", name))
		}
	}
	return rep, nil
}

// extractZip unpacks dir/name into dir/<stem>. The content is staged in a
// temporary directory and renamed into place only after every entry was
// written, so later stages never see a half-extracted tree.
func extractZip(dir, name string) error {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	dest := filepath.Join(dir, stem)
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("destination %s already exists", stem)
	}

	r, err := zip.OpenReader(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	staging, err := os.MkdirTemp(dir, ".extract-"+stem+"-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, f := range r.File {
		if err := writeEntry(staging, f); err != nil {
			return fmt.Errorf("entry %s: %w", f.Name, err)
		}
	}

	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("failed to move extracted content into place: %w", err)
	}
	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("failed to remove archive after extraction: %w", err)
	}
	return nil
}

func writeEntry(staging string, f *zip.File) error {
	rel := filepath.Clean(f.Name)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("entry path escapes archive root")
	}
	target := filepath.Join(staging, rel)

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
