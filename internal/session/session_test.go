package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"testing"

	"rehash/internal/perturb"
)

func pngFile(t *testing.T, name string, w, h int) File {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(i), 0x40, 0x90, 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return File{Name: name, MediaType: "image/png", Data: buf.Bytes()}
}

func jpegFile(t *testing.T, name string, w, h int) File {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: uint8(x), B: uint8(y), A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	// no declared media type: the decoder has to sniff it
	return File{Name: name, Data: buf.Bytes()}
}

func newTestSession() *Session {
	return New(Options{
		Workers: 2,
		NewRand: func(i int) *rand.Rand { return perturb.SeededRand(uint64(i) + 1) },
	})
}

func TestUploadSkipsNonImages(t *testing.T) {
	s := newTestSession()
	files := []File{
		pngFile(t, "first.png", 8, 8),
		{Name: "notes.txt", MediaType: "text/plain", Data: []byte("hello")},
		jpegFile(t, "third.jpg", 9, 7),
	}

	batch, err := s.Upload(context.Background(), files)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if s.State() != StateLoaded || s.Len() != 2 {
		t.Fatalf("state = %v with %d images, want loaded with 2", s.State(), s.Len())
	}
	images := s.Images()
	if images[0].Name != "first.png" || images[1].Name != "third.jpg" {
		t.Fatalf("order = %s, %s", images[0].Name, images[1].Name)
	}
	if images[1].MediaType != "image/jpeg" {
		t.Fatalf("sniffed media type = %q", images[1].MediaType)
	}

	if len(batch.Warnings) != 1 {
		t.Fatalf("warnings = %+v, want one", batch.Warnings)
	}
	w := batch.Warnings[0]
	var unsupported *UnsupportedFileError
	if w.Index != 1 || w.Name != "notes.txt" || !errors.As(w.Err, &unsupported) {
		t.Fatalf("warning = %+v", w)
	}
}

func TestUploadSniffsUndeclaredText(t *testing.T) {
	s := newTestSession()
	batch, err := s.Upload(context.Background(), []File{
		{Name: "readme", Data: []byte("just some text, no image here")},
		pngFile(t, "ok.png", 3, 3),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if s.Len() != 1 || len(batch.Warnings) != 1 {
		t.Fatalf("images = %d, warnings = %d", s.Len(), len(batch.Warnings))
	}
}

func TestUploadReportsUndecodableImage(t *testing.T) {
	s := newTestSession()
	batch, err := s.Upload(context.Background(), []File{
		{Name: "broken.png", MediaType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nnot really")},
		pngFile(t, "fine.png", 4, 4),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if s.Len() != 1 {
		t.Fatalf("images = %d, want 1", s.Len())
	}
	var invalid *perturb.InvalidImageError
	if len(batch.Warnings) != 1 || !errors.As(batch.Warnings[0].Err, &invalid) {
		t.Fatalf("warnings = %+v, want one InvalidImageError", batch.Warnings)
	}
}

func TestNewBatchReplacesWholesale(t *testing.T) {
	s := newTestSession()
	if _, err := s.Upload(context.Background(), []File{pngFile(t, "a.png", 2, 2), pngFile(t, "b.png", 2, 2)}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	firstBatch := s.BatchID()

	if _, err := s.Upload(context.Background(), []File{pngFile(t, "c.png", 2, 2)}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if s.Len() != 1 || s.Images()[0].Name != "c.png" {
		t.Fatalf("images after second upload = %+v", s.Images())
	}
	if s.BatchID() == firstBatch {
		t.Fatal("batch id did not change")
	}

	if _, err := s.Upload(context.Background(), []File{{Name: "x.txt", MediaType: "text/plain"}}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if s.State() != StateEmpty {
		t.Fatalf("state = %v after an all-invalid batch, want empty", s.State())
	}
}

func TestStaleBatchIsDiscarded(t *testing.T) {
	s := newTestSession()
	ctx := context.Background()

	old := s.Begin()
	current := s.Begin()

	oldBatch, err := s.Decode(ctx, old, []File{pngFile(t, "old.png", 2, 2)})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	newBatch, err := s.Decode(ctx, current, []File{pngFile(t, "new.png", 2, 2)})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if err := s.Commit(newBatch); err != nil {
		t.Fatalf("Commit current: %v", err)
	}
	if err := s.Commit(oldBatch); !errors.Is(err, ErrStaleBatch) {
		t.Fatalf("Commit stale = %v, want ErrStaleBatch", err)
	}
	if s.Len() != 1 || s.Images()[0].Name != "new.png" {
		t.Fatalf("stale batch leaked into session: %+v", s.Images())
	}

	s.Reset()
	if err := s.Commit(newBatch); !errors.Is(err, ErrStaleBatch) {
		t.Fatalf("Commit after Reset = %v, want ErrStaleBatch", err)
	}
	if s.State() != StateEmpty {
		t.Fatalf("state after Reset = %v", s.State())
	}
}

func TestDecodeHonoursCancellation(t *testing.T) {
	s := newTestSession()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Decode(ctx, s.Begin(), []File{pngFile(t, "a.png", 2, 2)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRefreshTwice(t *testing.T) {
	s := newTestSession()
	if _, err := s.Upload(context.Background(), []File{pngFile(t, "a.png", 10, 10), jpegFile(t, "b.jpg", 6, 12)}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	params := perturb.Params{PixelShift: 2, NoiseLevel: 3, ModifyMetadata: true}

	for round := 0; round < 2; round++ {
		results, err := s.Refresh(context.Background(), params, nil)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if len(results) != 2 {
			t.Fatalf("round %d: %d results, want 2", round, len(results))
		}
		for i, res := range results {
			if !res.OK() {
				t.Fatalf("round %d image %d: %v", round, i, res.Err)
			}
		}
		if results[1].Artifact.Width != 8 || results[1].Artifact.Height != 14 {
			t.Fatalf("round %d: b.jpg artifact %dx%d", round, results[1].Artifact.Width, results[1].Artifact.Height)
		}
	}
	if s.Len() != 2 {
		t.Fatalf("refresh changed the image set: %d", s.Len())
	}
}

func TestRefreshAndExportWhenEmpty(t *testing.T) {
	s := newTestSession()

	results, err := s.Refresh(context.Background(), perturb.Neutral(), nil)
	if err != nil || results != nil {
		t.Fatalf("Refresh on empty = %v, %v", results, err)
	}
	if _, _, err := s.Export(context.Background(), perturb.Neutral(), nil); !errors.Is(err, ErrNoImages) {
		t.Fatalf("Export on empty = %v, want ErrNoImages", err)
	}
}

func TestExportNames(t *testing.T) {
	s := newTestSession()
	if _, err := s.Upload(context.Background(), []File{pngFile(t, "cat.png", 5, 5), pngFile(t, "dog.png", 5, 5)}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	artifacts, results, err := s.Export(context.Background(), perturb.Neutral(), nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(results) != 2 || len(artifacts) != 2 {
		t.Fatalf("results = %d, artifacts = %d", len(results), len(artifacts))
	}
	if artifacts[0].Name != "processed_cat.png" || artifacts[1].Name != "processed_dog.png" {
		t.Fatalf("names = %s, %s", artifacts[0].Name, artifacts[1].Name)
	}
}

func TestRefreshFuncSnapshotsImages(t *testing.T) {
	s := newTestSession()
	if _, err := s.Upload(context.Background(), []File{pngFile(t, "a.png", 4, 4)}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	refresh := s.RefreshFunc(perturb.Neutral())

	if _, err := s.Upload(context.Background(), []File{pngFile(t, "b.png", 4, 4), pngFile(t, "c.png", 4, 4)}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	results, err := refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(results) != 1 || results[0].Name != "a.png" {
		t.Fatalf("snapshot results = %+v", results)
	}
}

func TestStateString(t *testing.T) {
	if StateEmpty.String() != "empty" || StateLoaded.String() != "loaded" {
		t.Fatalf("State strings: %s %s", StateEmpty, StateLoaded)
	}
}
