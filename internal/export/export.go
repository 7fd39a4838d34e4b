// Package export packages processed artifacts as a zip archive or as loose
// files in a directory.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"rehash/internal/processor"
)

// Entry is one file of an export.
type Entry struct {
	Name string
	Data []byte
}

// Entries converts artifacts to export entries, keeping their order and
// suffixing repeated names with -2, -3, ... before the extension.
func Entries(artifacts []processor.Artifact) []Entry {
	seen := make(map[string]int, len(artifacts))
	entries := make([]Entry, 0, len(artifacts))
	for _, art := range artifacts {
		name := uniqueName(art.Name, seen)
		entries = append(entries, Entry{Name: name, Data: art.Data})
	}
	return entries
}

func uniqueName(name string, seen map[string]int) string {
	key := strings.ToLower(name)
	n := seen[key]
	seen[key] = n + 1
	if n == 0 {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for {
		n++
		candidate := fmt.Sprintf("%s-%d%s", base, n, ext)
		ckey := strings.ToLower(candidate)
		if seen[ckey] == 0 {
			seen[ckey] = 1
			seen[key] = n
			return candidate
		}
	}
}

// WriteArchive writes entries as a zip archive. JPEG data does not
// compress, so entries are stored.
func WriteArchive(w io.Writer, entries []Entry, modified time.Time) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		hdr := &zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Store,
			Modified: modified,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("add %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write %s: %w", e.Name, err)
		}
	}
	return zw.Close()
}

// WriteArchiveFile writes the archive to a temporary file next to path and
// renames it into place, so a failed export never leaves a partial archive.
func WriteArchiveFile(path string, entries []Entry, modified time.Time) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "rehash-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if err := WriteArchive(tmpFile, entries, modified); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return replaceFile(tmpFile.Name(), path)
}

// WriteDir writes each entry as its own file under dir and returns the
// written paths in entry order.
func WriteDir(dir string, entries []Entry) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		dest := filepath.Join(dir, filepath.Base(e.Name))
		if err := writeFileAtomic(dest, e.Data); err != nil {
			return paths, fmt.Errorf("write %s: %w", dest, err)
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

func writeFileAtomic(dest string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "rehash-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpFile.Name())

	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return replaceFile(tmpFile.Name(), dest)
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
