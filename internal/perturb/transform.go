// Package perturb applies the cosmetic pixel changes that make an image
// hash differently while looking the same.
package perturb

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/disintegration/gift"
)

// jitterProbability is the per-pixel chance of an extra sub-unit nudge.
const jitterProbability = 0.1

// NewRand returns a generator with a fresh random seed.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// SeededRand returns a reproducible generator.
func SeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Transform renders src onto a canvas grown by PixelShift in both axes and
// applies brightness, contrast, noise, jitter and the optional watermark, in
// that order. The border left by the offset stays transparent black. A nil
// rng is replaced by NewRand.
func Transform(src SourceImage, p Params, rng *rand.Rand) (*image.NRGBA, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand()
	}
	p, prof := p.normalized()

	canvas := image.NewNRGBA(image.Rect(0, 0, src.Width()+p.PixelShift, src.Height()+p.PixelShift))
	offset := p.PixelShift / 2
	gift.New().DrawAt(canvas, src.Pixels, image.Pt(offset, offset), gift.CopyOperator)

	adjustPixels(canvas, p, prof, rng)

	if p.Watermark {
		drawWatermark(canvas, rng)
	}
	return canvas, nil
}

func adjustPixels(img *image.NRGBA, p Params, prof Profile, rng *rand.Rand) {
	brightness := p.Brightness * prof.BrightnessScale
	factor := ContrastFactor(p.Contrast * prof.ContrastScale)
	noise := float64(p.NoiseLevel)

	b := img.Bounds()
	rowLen := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+rowLen]
		for i := 0; i < rowLen; i += 4 {
			jitter := rng.Float64() < jitterProbability
			// alpha at row[i+3] is left alone
			for c := i; c < i+3; c++ {
				v := clampChannel(float64(row[c]) + brightness)
				v = ApplyContrast(v, factor)
				if noise > 0 {
					v = clampChannel(v + (rng.Float64()-0.5)*noise)
				}
				if jitter {
					v = clampChannel(v + rng.Float64() - 0.5)
				}
				row[c] = uint8(math.Round(v))
			}
		}
	}
}

// ContrastFactor is the standard contrast correction factor for c in
// channel units. c is clamped to [-255,255].
func ContrastFactor(c float64) float64 {
	c = clampRange(c, -255, 255)
	return 259 * (c + 255) / (255 * (259 - c))
}

// ApplyContrast remaps v around the 128 midpoint and clamps to [0,255].
func ApplyContrast(v, factor float64) float64 {
	return clampChannel(factor*(v-128) + 128)
}

func clampChannel(v float64) float64 {
	return clampRange(v, 0, 255)
}
