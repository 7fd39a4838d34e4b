package perturb

import (
	"image"
	"image/color"
	"math/rand/v2"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	watermarkLength   = 6
	watermarkMargin   = 4
	watermarkAlpha    = 0x33
	watermarkAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// watermark records what drawWatermark put on the canvas.
type watermark struct {
	Text string
	// Rect is the text's bounding box, which may extend past a tiny canvas.
	Rect image.Rectangle
}

func drawWatermark(dst *image.NRGBA, rng *rand.Rand) watermark {
	text := randomText(rng, watermarkLength)
	face := basicfont.Face7x13

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: watermarkAlpha}),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	height := m.Height.Ceil()

	b := dst.Bounds()
	x := randomOffset(rng, b.Dx()-width-2*watermarkMargin)
	top := randomOffset(rng, b.Dy()-height-2*watermarkMargin)

	d.Dot = fixed.P(x, top+ascent)
	d.DrawString(text)

	return watermark{Text: text, Rect: image.Rect(x, top, x+width, top+height)}
}

// randomOffset picks a position in [margin, margin+span]. A canvas too small
// for the text and its margins puts it at the origin.
func randomOffset(rng *rand.Rand, span int) int {
	if span < 0 {
		return 0
	}
	return watermarkMargin + rng.IntN(span+1)
}

func randomText(rng *rand.Rand, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = watermarkAlphabet[rng.IntN(len(watermarkAlphabet))]
	}
	return string(buf)
}
