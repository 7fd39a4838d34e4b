// Package upload gathers an upload batch from a file or directory on disk.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"rehash/internal/session"
)

// DefaultMaxFileSize skips files that could not plausibly be decoded.
const DefaultMaxFileSize = 256 << 20

type Options struct {
	// Exclude lists directories that are never entered, typically the
	// export destination when it sits inside the root.
	Exclude []string
	// MaxFileSize defaults to DefaultMaxFileSize.
	MaxFileSize int64
}

// Collect reads root, or every regular file below it in lexical order, into
// session files. The declared media type comes from the file extension and
// is left empty when unknown, so the session sniffs the content. Filtering
// non-images is the session's job; hidden files are skipped here.
func Collect(ctx context.Context, root string, opts Options) ([]session.File, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		f, err := readFile(absRoot, filepath.Base(absRoot), opts.MaxFileSize)
		if err != nil {
			return nil, err
		}
		return []session.File{f}, nil
	}

	excluded := make([]string, 0, len(opts.Exclude))
	for _, dir := range opts.Exclude {
		if abs, err := filepath.Abs(dir); err == nil {
			excluded = append(excluded, filepath.Clean(abs))
		}
	}

	var files []session.File
	fsys := os.DirFS(absRoot)
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fullPath := filepath.Join(absRoot, path)
		if d.IsDir() {
			if path != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			for _, dir := range excluded {
				if isWithin(fullPath, dir) {
					return fs.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		f, err := readFile(fullPath, filepath.ToSlash(path), opts.MaxFileSize)
		if err != nil {
			var tooLarge *TooLargeError
			if errors.As(err, &tooLarge) {
				slog.Warn("skipping large file", "file", path, "size", humanize.IBytes(uint64(tooLarge.Size)))
				return nil
			}
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return files, err
	}

	slog.Debug("collected upload", "root", absRoot, "files", len(files))
	return files, nil
}

// TooLargeError reports a file above the configured size limit.
type TooLargeError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s: %s exceeds limit of %s", e.Name,
		humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
}

func readFile(path, name string, limit int64) (session.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return session.File{}, err
	}
	if info.Size() > limit {
		return session.File{}, &TooLargeError{Name: name, Size: info.Size(), Limit: limit}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return session.File{}, fmt.Errorf("read %s: %w", name, err)
	}
	return session.File{
		Name:      name,
		MediaType: mediaTypeByExt(path),
		Data:      data,
	}, nil
}

func mediaTypeByExt(path string) string {
	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.TrimSpace(mediaType)
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
