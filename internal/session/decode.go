package session

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"rehash/internal/perturb"
	"rehash/pkg/imgutil"
)

// MaxPixels caps width*height of a single upload.
const MaxPixels = 100_000_000

// File is one entry of an upload batch. MediaType may be empty, in which
// case it is sniffed from Data.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// DecodeFile turns an uploaded file into a SourceImage. Non-image media
// types yield *UnsupportedFileError; anything that fails to decode yields
// *perturb.InvalidImageError.
func DecodeFile(f File) (perturb.SourceImage, error) {
	mediaType := imgutil.MediaTypeOf(f.MediaType, f.Data)
	if !imgutil.IsImageMediaType(mediaType) {
		return perturb.SourceImage{}, &UnsupportedFileError{Name: f.Name, MediaType: mediaType}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return perturb.SourceImage{}, &perturb.InvalidImageError{Name: f.Name, Reason: "decode header", Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return perturb.SourceImage{}, &perturb.InvalidImageError{Name: f.Name, Reason: "zero width or height"}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return perturb.SourceImage{}, &perturb.InvalidImageError{
			Name:   f.Name,
			Reason: fmt.Sprintf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels),
		}
	}

	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return perturb.SourceImage{}, &perturb.InvalidImageError{Name: f.Name, Reason: "decode", Err: err}
	}
	return perturb.NewSourceImage(f.Name, mediaType, img)
}
