package perturb

import (
	"image"

	"golang.org/x/image/draw"
)

// SourceImage is a decoded upload. Pixels always start at the origin and
// must not be modified once the SourceImage is built.
type SourceImage struct {
	Name      string
	MediaType string
	Pixels    *image.NRGBA
}

// NewSourceImage copies img into a fresh NRGBA buffer anchored at (0,0).
func NewSourceImage(name, mediaType string, img image.Image) (SourceImage, error) {
	if img == nil {
		return SourceImage{}, &InvalidImageError{Name: name, Reason: "no image data"}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return SourceImage{}, &InvalidImageError{Name: name, Reason: "zero width or height"}
	}

	pixels := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(pixels, pixels.Bounds(), img, b.Min, draw.Src)

	return SourceImage{Name: name, MediaType: mediaType, Pixels: pixels}, nil
}

func (s SourceImage) Width() int {
	if s.Pixels == nil {
		return 0
	}
	return s.Pixels.Bounds().Dx()
}

func (s SourceImage) Height() int {
	if s.Pixels == nil {
		return 0
	}
	return s.Pixels.Bounds().Dy()
}

func (s SourceImage) validate() error {
	if s.Pixels == nil {
		return &InvalidImageError{Name: s.Name, Reason: "no pixel buffer"}
	}
	if s.Width() <= 0 || s.Height() <= 0 {
		return &InvalidImageError{Name: s.Name, Reason: "zero width or height"}
	}
	return nil
}
