// Package display renders artifact previews inline on terminals that speak
// the kitty graphics protocol.
package display

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/nfnt/resize"

	"rehash/internal/processor"
)

// DefaultMaxSide bounds the longer edge of a preview thumbnail.
const DefaultMaxSide = 320

type Displayer struct {
	out     io.Writer
	maxSide uint
}

func New(out io.Writer, maxSide int) *Displayer {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	return &Displayer{out: out, maxSide: uint(maxSide)}
}

// Display draws one artifact as a thumbnail followed by a newline.
func (d *Displayer) Display(art processor.Artifact) error {
	data, err := Thumbnail(art.Data, d.maxSide)
	if err != nil {
		return fmt.Errorf("preview %s: %w", art.Name, err)
	}

	if err := NewKittyEncoder(d.out).Encode(data); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	_, err = fmt.Fprintln(d.out)
	return err
}

// Thumbnail decodes an encoded image and returns a PNG no larger than
// maxSide on either edge. Smaller images keep their size.
func Thumbnail(data []byte, maxSide uint) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if uint(b.Dx()) > maxSide || uint(b.Dy()) > maxSide {
		img = resize.Thumbnail(maxSide, maxSide, img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func IsTerminalSupported() bool {
	return terminalSupported(os.Getenv)
}

func terminalSupported(getenv func(string) string) bool {
	termProgram := strings.ToLower(getenv("TERM_PROGRAM"))
	for _, prog := range []string{"kitty", "ghostty", "wezterm"} {
		if termProgram == prog {
			return true
		}
	}

	if getenv("KITTY_WINDOW_ID") != "" {
		return true
	}

	term := strings.ToLower(getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}
