package session

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleBatch is returned when a decoded batch arrives after a newer
	// batch was started. The stale batch is discarded.
	ErrStaleBatch = errors.New("batch superseded by a newer upload")
	// ErrNoImages is returned by Export while the session is empty.
	ErrNoImages = errors.New("no images loaded")
)

// UnsupportedFileError marks a file skipped because it is not an image.
type UnsupportedFileError struct {
	Name      string
	MediaType string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("%s: unsupported media type %q", e.Name, e.MediaType)
}
