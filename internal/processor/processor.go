package processor

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"

	"rehash/internal/perturb"
)

// Run processes every image on a pool of workers. Results come back in
// input order, one per image; a failing image only fails its own Result.
// Workers never touch caller state: artifacts are returned by value.
func Run(ctx context.Context, images []perturb.SourceImage, opts Options, updates chan<- ProgressUpdate) (Summary, []Result, error) {
	summary := Summary{}
	results := make([]Result, len(images))
	if len(images) == 0 {
		return summary, results, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(images) {
		workers = len(images)
	}

	jobs := make(chan Job)
	out := make(chan Result)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			worker(ctx, jobs, out, opts)
		}()
	}

	done := make([]bool, len(images))
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range out {
			results[res.Index] = res
			done[res.Index] = true
			if res.Err != nil {
				summary.Errors++
				send(updates, ProgressUpdate{ErrorDelta: 1})
				continue
			}
			summary.Processed++
			summary.Bytes += int64(len(res.Artifact.Data))
			send(updates, ProgressUpdate{ProcessedDelta: 1, BytesDelta: int64(len(res.Artifact.Data))})
		}
	}()

	summary.Total = len(images)
	send(updates, ProgressUpdate{TotalDelta: len(images)})

	var producerErr error
produce:
	for i, img := range images {
		select {
		case jobs <- Job{Index: i, Image: img}:
		case <-ctx.Done():
			producerErr = ctx.Err()
			break produce
		}
	}
	close(jobs)

	wg.Wait()
	close(out)
	<-collectorDone

	if producerErr == nil {
		producerErr = ctx.Err()
	}
	missing := 0
	for i := range results {
		if !done[i] {
			results[i] = Result{Index: i, Name: images[i].Name, Err: producerErr}
			summary.Errors++
			missing++
		}
	}
	if missing > 0 {
		return summary, results, producerErr
	}

	return summary, results, nil
}

func worker(ctx context.Context, jobs <-chan Job, results chan<- Result, opts Options) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			return
		}

		env := Env{Encoder: opts.Encoder, Rand: newRand(opts, job.Index), Now: opts.Now}
		art, err := Process(job.Image, opts.Params, env)
		res := Result{Index: job.Index, Name: job.Image.Name, Artifact: art, Err: err}
		if err != nil {
			slog.Warn("image failed", "image", job.Image.Name, "error", err)
		} else {
			slog.Debug("image processed", "image", job.Image.Name, "bytes", len(art.Data), "width", art.Width, "height", art.Height)
		}
		results <- res
	}
}

func newRand(opts Options, index int) *rand.Rand {
	if opts.NewRand != nil {
		if rng := opts.NewRand(index); rng != nil {
			return rng
		}
	}
	return perturb.NewRand()
}

func send(updates chan<- ProgressUpdate, u ProgressUpdate) {
	if updates != nil {
		updates <- u
	}
}
