// Package inspect reports what identifies an image file: its digest, its
// metadata and any bytes trailing the JPEG stream.
package inspect

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"runtime"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"rehash/internal/encode"
	"rehash/internal/session"
	"rehash/pkg/imgutil"
)

type Report struct {
	Name   string
	Kind   imgutil.Kind
	Size   int
	Width  int
	Height int
	SHA256 string
	Exif   ExifSummary
	// TextKeys holds PNG text chunk keywords.
	TextKeys []string
	// Trailer is whatever follows the JPEG end-of-image marker.
	Trailer []byte
	// Err collects the parts of the report that could not be read.
	Err error
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Inspect builds a report for one file. It never fails outright; problems
// are collected in Report.Err and the remaining fields are still filled.
func Inspect(name string, data []byte) Report {
	rep := Report{
		Name:   name,
		Kind:   imgutil.Detect(data),
		Size:   len(data),
		SHA256: Digest(data),
	}

	var errs []error
	if rep.Kind == imgutil.KindUnknown {
		rep.Err = errors.New("not a recognized image")
		return rep
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		errs = append(errs, fmt.Errorf("dimensions: %w", err))
	} else {
		rep.Width, rep.Height = cfg.Width, cfg.Height
	}

	switch rep.Kind {
	case imgutil.KindJPEG, imgutil.KindPNG, imgutil.KindTIFF, imgutil.KindWebP:
		summary, err := readExif(bytes.NewReader(data))
		if err != nil {
			errs = append(errs, fmt.Errorf("exif: %w", err))
		}
		rep.Exif = summary
	}

	switch rep.Kind {
	case imgutil.KindJPEG:
		_, trailer, err := encode.SplitTrailer(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("trailer: %w", err))
		}
		rep.Trailer = trailer
	case imgutil.KindPNG:
		keys, err := pngTextKeys(bytes.NewReader(data))
		if err != nil {
			errs = append(errs, fmt.Errorf("png chunks: %w", err))
		}
		rep.TextKeys = keys
	}

	rep.Err = errors.Join(errs...)
	return rep
}

// All inspects files in parallel and returns reports in input order.
func All(ctx context.Context, files []session.File, workers int) ([]Report, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	reports := make([]Report, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = Inspect(f.Name, f.Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
