package encode

import "fmt"

// EncodingError reports a canvas that could not be serialized. Callers must
// not keep any bytes from the failed attempt.
type EncodingError struct {
	Op  string
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Op, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}
