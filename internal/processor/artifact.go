package processor

import (
	"path/filepath"
	"time"

	"rehash/internal/encode"
	"rehash/internal/perturb"
)

// OutputPrefix is prepended to the original file name of every artifact.
const OutputPrefix = "processed_"

// OutputName is the suggested file name for the artifact of original.
func OutputName(original string) string {
	return OutputPrefix + filepath.Base(original)
}

// Process transforms src, encodes the canvas and, when the parameters ask
// for it, appends a fresh comment trailer.
func Process(src perturb.SourceImage, p perturb.Params, env Env) (Artifact, error) {
	rng := env.Rand
	if rng == nil {
		rng = perturb.NewRand()
	}

	canvas, err := perturb.Transform(src, p, rng)
	if err != nil {
		return Artifact{}, err
	}

	data, err := encode.Encode(canvas, env.Encoder)
	if err != nil {
		return Artifact{}, err
	}

	art := Artifact{
		Name:   OutputName(src.Name),
		Source: src.Name,
		Data:   data,
		Width:  canvas.Bounds().Dx(),
		Height: canvas.Bounds().Dy(),
	}
	if p.ModifyMetadata {
		now := time.Now
		if env.Now != nil {
			now = env.Now
		}
		art.Comment = encode.CommentToken(now(), rng)
		art.Data = encode.InjectComment(data, art.Comment)
	}
	return art, nil
}
