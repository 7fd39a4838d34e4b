package perturb

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func gradientSource(t *testing.T, w, h int) SourceImage {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / max(w-1, 1)),
				G: uint8((y * 255) / max(h-1, 1)),
				B: uint8((x + y) % 256),
				A: 0xff,
			})
		}
	}
	src, err := NewSourceImage("gradient.png", "image/png", img)
	if err != nil {
		t.Fatalf("NewSourceImage: %v", err)
	}
	return src
}

func TestTransformDimensions(t *testing.T) {
	src := gradientSource(t, 37, 21)

	for _, shift := range []int{0, 1, 2, 7, 16} {
		p := Neutral()
		p.PixelShift = shift
		p.NoiseLevel = 10
		p.Watermark = true

		out, err := Transform(src, p, SeededRand(uint64(shift)))
		if err != nil {
			t.Fatalf("shift %d: %v", shift, err)
		}
		if got, want := out.Bounds().Dx(), src.Width()+shift; got != want {
			t.Fatalf("shift %d: width = %d, want %d", shift, got, want)
		}
		if got, want := out.Bounds().Dy(), src.Height()+shift; got != want {
			t.Fatalf("shift %d: height = %d, want %d", shift, got, want)
		}
	}
}

func TestTransformNeutralCopiesPixels(t *testing.T) {
	src := gradientSource(t, 100, 100)
	p := Neutral()
	p.PixelShift = 2

	out, err := Transform(src, p, SeededRand(42))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 102, 102) {
		t.Fatalf("bounds = %v, want 102x102", out.Bounds())
	}

	for y := 0; y < 102; y++ {
		for x := 0; x < 102; x++ {
			got := out.NRGBAAt(x, y)
			inside := x >= 1 && x <= 100 && y >= 1 && y <= 100
			if !inside {
				if got != (color.NRGBA{}) {
					t.Fatalf("border pixel (%d,%d) = %v, want zero fill", x, y, got)
				}
				continue
			}
			want := src.Pixels.NRGBAAt(x-1, y-1)
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestTransformLeavesAlphaAlone(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 200, 90, uint8(i)
	}
	src, err := NewSourceImage("alpha.png", "image/png", img)
	if err != nil {
		t.Fatalf("NewSourceImage: %v", err)
	}

	p := Params{Brightness: 40, Contrast: -30, NoiseLevel: 50}
	out, err := Transform(src, p, SeededRand(7))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] != img.Pix[i] {
			t.Fatalf("alpha at %d = %d, want %d", i, out.Pix[i], img.Pix[i])
		}
	}
}

func TestTransformClampsChannels(t *testing.T) {
	src := gradientSource(t, 64, 64)
	cases := []Params{
		{Brightness: 100, Contrast: 100, Profile: "coarse"},
		{Brightness: -100, Contrast: 100, NoiseLevel: MaxNoiseLevel},
		{Brightness: 1e6, Contrast: -1e6, NoiseLevel: 255},
		{Brightness: 55, Contrast: 99.9, NoiseLevel: 3, Watermark: true, PixelShift: 5},
	}

	for i, p := range cases {
		out, err := Transform(src, p, SeededRand(uint64(i)))
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		// uint8 cannot leave [0,255]; what can go wrong is wrap-around, which
		// shows up as a dark pixel under maximal brightness.
		if i == 0 {
			for j := 0; j < len(out.Pix); j += 4 {
				if out.Pix[j+3] == 0 {
					continue
				}
				if out.Pix[j] < 200 || out.Pix[j+1] < 200 || out.Pix[j+2] < 200 {
					t.Fatalf("case 0: pixel %d wrapped: %v", j/4, out.Pix[j:j+4])
				}
			}
		}
	}
}

func TestContrastFixedPoint(t *testing.T) {
	for _, c := range []float64{-255, -100, -1, 0, 1, 50, 127.5, 200, 255} {
		if got := ApplyContrast(128, ContrastFactor(c)); got != 128 {
			t.Fatalf("contrast %v: ApplyContrast(128) = %v", c, got)
		}
	}
	if f := ContrastFactor(0); f != 1 {
		t.Fatalf("ContrastFactor(0) = %v, want 1", f)
	}
	if f := ContrastFactor(1e9); math.IsInf(f, 0) || math.IsNaN(f) {
		t.Fatalf("ContrastFactor clamps its input, got %v", f)
	}
}

func TestTransformMidGreyUnderContrast(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 128, 128, 128, 0xff
	}
	src, err := NewSourceImage("grey.png", "image/png", img)
	if err != nil {
		t.Fatalf("NewSourceImage: %v", err)
	}

	out, err := Transform(src, Params{Contrast: 80}, SeededRand(1))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 128 || out.Pix[i+1] != 128 || out.Pix[i+2] != 128 {
			t.Fatalf("pixel %d = %v, want 128 grey", i/4, out.Pix[i:i+3])
		}
	}
}

func TestTransformSeedIsReproducible(t *testing.T) {
	src := gradientSource(t, 32, 32)
	p := Params{Brightness: 3, Contrast: 4, NoiseLevel: 6, Watermark: true, PixelShift: 1}

	a, err := Transform(src, p, SeededRand(99))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	b, err := Transform(src, p, SeededRand(99))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	c, err := Transform(src, p, SeededRand(100))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	if string(a.Pix) != string(b.Pix) {
		t.Fatal("same seed produced different pixels")
	}
	if string(a.Pix) == string(c.Pix) {
		t.Fatal("different seeds produced identical pixels")
	}
}

func TestTransformInvalidImage(t *testing.T) {
	tests := []struct {
		name string
		src  SourceImage
	}{
		{"nil pixels", SourceImage{Name: "nil.png"}},
		{"zero width", SourceImage{Name: "flat.png", Pixels: image.NewNRGBA(image.Rect(0, 0, 0, 10))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Transform(tt.src, Neutral(), SeededRand(1))
			var invalid *InvalidImageError
			if !errors.As(err, &invalid) {
				t.Fatalf("err = %v, want InvalidImageError", err)
			}
			if out != nil {
				t.Fatal("partial output returned with error")
			}
		})
	}

	if _, err := NewSourceImage("empty.gif", "image/gif", image.NewRGBA(image.Rect(3, 3, 3, 9))); err == nil {
		t.Fatal("NewSourceImage accepted an empty image")
	}
}

func TestTransformRejectsBadParams(t *testing.T) {
	src := gradientSource(t, 4, 4)
	bad := []Params{
		{PixelShift: -1},
		{NoiseLevel: -3},
		{PixelShift: MaxPixelShift + 1},
		{Profile: "vivid"},
		{Brightness: math.NaN()},
	}
	for _, p := range bad {
		if _, err := Transform(src, p, SeededRand(1)); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("params %v: err = %v, want ErrInvalidParams", p, err)
		}
	}
}

func TestNewSourceImageRebasesOrigin(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 13, 22))
	img.Set(10, 20, color.RGBA{R: 255, A: 255})

	src, err := NewSourceImage("offset.png", "image/png", img)
	if err != nil {
		t.Fatalf("NewSourceImage: %v", err)
	}
	if src.Pixels.Bounds() != image.Rect(0, 0, 3, 2) {
		t.Fatalf("bounds = %v", src.Pixels.Bounds())
	}
	if got := src.Pixels.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Fatalf("origin pixel = %v", got)
	}
}
