// Package encode serializes perturbed canvases and appends the trailing
// comment that changes their digest.
package encode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/gen2brain/jpegli"
)

// DefaultQuality is the quality factor on the 0-1 scale.
const DefaultQuality = 0.92

// Backend selects the JPEG encoder implementation.
type Backend string

const (
	BackendStd    Backend = "std"
	BackendJpegli Backend = "jpegli"
)

// ParseBackend accepts "std", "jpegli" or the empty string (std).
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(name))) {
	case "", BackendStd:
		return BackendStd, nil
	case BackendJpegli:
		return BackendJpegli, nil
	default:
		return "", fmt.Errorf("unknown encoder %q (want std or jpegli)", name)
	}
}

type Options struct {
	// Quality on the 0-1 scale; zero means DefaultQuality.
	Quality float64
	Backend Backend
}

func (o Options) quality() (int, error) {
	q := o.Quality
	if q == 0 {
		q = DefaultQuality
	}
	if math.IsNaN(q) || q < 0 || q > 1 {
		return 0, fmt.Errorf("quality %v outside (0,1]", o.Quality)
	}
	return max(1, int(math.Round(q*100))), nil
}

// Encode writes img as JPEG. Nothing is returned on failure.
func Encode(img image.Image, opts Options) ([]byte, error) {
	if img == nil {
		return nil, &EncodingError{Op: "canvas", Err: errors.New("no image")}
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &EncodingError{Op: "canvas", Err: fmt.Errorf("empty bounds %v", b)}
	}
	q, err := opts.quality()
	if err != nil {
		return nil, &EncodingError{Op: "options", Err: err}
	}

	var buf bytes.Buffer
	switch opts.Backend {
	case "", BackendStd:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: q})
	case BackendJpegli:
		err = jpegli.Encode(&buf, img, &jpegli.EncodingOptions{
			Quality:           q,
			ChromaSubsampling: image.YCbCrSubsampleRatio420,
		})
	default:
		err = fmt.Errorf("unknown backend %q", opts.Backend)
	}
	if err != nil {
		return nil, &EncodingError{Op: string(opts.backend()), Err: err}
	}
	return buf.Bytes(), nil
}

func (o Options) backend() Backend {
	if o.Backend == "" {
		return BackendStd
	}
	return o.Backend
}

// CommentToken builds "<unix millis>-<base36 random>".
func CommentToken(now time.Time, rng *rand.Rand) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + strconv.FormatUint(rng.Uint64()>>8, 36)
}

// InjectComment appends comment after the end of the compressed stream.
// Most decoders ignore trailing bytes, but strict parsers may reject the
// result; this is a best-effort digest change, not embedded metadata.
func InjectComment(data []byte, comment string) []byte {
	out := make([]byte, 0, len(data)+len(comment))
	out = append(out, data...)
	return append(out, comment...)
}
