package processor

import (
	"math/rand/v2"
	"time"

	"rehash/internal/encode"
	"rehash/internal/perturb"
)

// Artifact is one processed image, ready for a preview slot or an export.
type Artifact struct {
	Name    string
	Source  string
	Data    []byte
	Width   int
	Height  int
	Comment string
}

// Env carries the collaborators a single Process call draws on.
type Env struct {
	Encoder encode.Options
	Rand    *rand.Rand
	Now     func() time.Time
}

type Options struct {
	Params  perturb.Params
	Encoder encode.Options
	// Workers defaults to runtime.NumCPU().
	Workers int
	// NewRand returns the generator for the image at index. Nil means a
	// fresh random seed per image.
	NewRand func(index int) *rand.Rand
	Now     func() time.Time
}

type Job struct {
	Index int
	Image perturb.SourceImage
}

type Result struct {
	Index    int
	Name     string
	Artifact Artifact
	Err      error
}

func (r Result) OK() bool {
	return r.Err == nil
}

type Summary struct {
	Total     int
	Processed int
	Errors    int
	Bytes     int64
}

// Summarize tallies results the same way Run does.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, res := range results {
		if !res.OK() {
			s.Errors++
			continue
		}
		s.Processed++
		s.Bytes += int64(len(res.Artifact.Data))
	}
	return s
}

type ProgressUpdate struct {
	TotalDelta     int
	ProcessedDelta int
	ErrorDelta     int
	BytesDelta     int64
}
