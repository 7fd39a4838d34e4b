package perturb

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned for parameter sets Transform cannot apply.
var ErrInvalidParams = errors.New("invalid transform parameters")

// InvalidImageError reports a source that cannot be transformed: it failed
// to decode, has no pixels, or has a zero dimension.
type InvalidImageError struct {
	Name   string
	Reason string
	Err    error
}

func (e *InvalidImageError) Error() string {
	msg := "invalid image"
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *InvalidImageError) Unwrap() error {
	return e.Err
}
