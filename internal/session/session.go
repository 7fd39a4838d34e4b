// Package session holds the current upload batch and regenerates its
// artifacts whenever the parameters change.
//
// A Session is owned by one goroutine. Decoding and processing fan out to
// workers, but only Commit and Reset change what the session holds.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rehash/internal/encode"
	"rehash/internal/perturb"
	"rehash/internal/processor"
)

type State int

const (
	StateEmpty State = iota
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	default:
		return "empty"
	}
}

// Ticket identifies one upload batch.
type Ticket struct {
	ID string
}

// Warning reports a file that was skipped while decoding a batch.
type Warning struct {
	Index int
	Name  string
	Err   error
}

// Batch is the decoded form of one upload, not yet committed.
type Batch struct {
	Ticket   Ticket
	Images   []perturb.SourceImage
	Warnings []Warning
}

type Options struct {
	Encoder encode.Options
	// Workers bounds both decoding and processing; defaults to runtime.NumCPU().
	Workers int
	NewRand func(index int) *rand.Rand
	Now     func() time.Time
}

type Session struct {
	opts    Options
	images  []perturb.SourceImage
	batchID string
	latest  string
}

func New(opts Options) *Session {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Session{opts: opts}
}

func (s *Session) State() State {
	if len(s.images) == 0 {
		return StateEmpty
	}
	return StateLoaded
}

// Images returns the held images in upload order.
func (s *Session) Images() []perturb.SourceImage {
	out := make([]perturb.SourceImage, len(s.images))
	copy(out, s.images)
	return out
}

func (s *Session) Len() int {
	return len(s.images)
}

// BatchID identifies the committed batch; empty while nothing was committed.
func (s *Session) BatchID() string {
	return s.batchID
}

// Begin starts a new upload. Batches decoded under any earlier ticket will
// be rejected by Commit.
func (s *Session) Begin() Ticket {
	t := Ticket{ID: uuid.NewString()}
	s.latest = t.ID
	return t
}

// Decode decodes files for ticket without touching the session, so it can
// run on any goroutine. Files that are not images or fail to decode become
// warnings; the rest keep their relative order.
func (s *Session) Decode(ctx context.Context, ticket Ticket, files []File) (Batch, error) {
	decoded := make([]perturb.SourceImage, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decoded[i], errs[i] = DecodeFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{Ticket: ticket}, err
	}

	batch := Batch{Ticket: ticket}
	for i, f := range files {
		if err := errs[i]; err != nil {
			var unsupported *UnsupportedFileError
			if errors.As(err, &unsupported) {
				slog.Warn("skipping non-image file", "file", f.Name, "media_type", unsupported.MediaType)
			} else {
				slog.Warn("skipping undecodable image", "file", f.Name, "error", err)
			}
			batch.Warnings = append(batch.Warnings, Warning{Index: i, Name: f.Name, Err: err})
			continue
		}
		batch.Images = append(batch.Images, decoded[i])
	}
	return batch, nil
}

// Commit replaces the held images with batch. A batch whose ticket is not
// the latest one is discarded with ErrStaleBatch. A batch without images
// still replaces the previous one and leaves the session empty.
func (s *Session) Commit(batch Batch) error {
	if batch.Ticket.ID == "" || batch.Ticket.ID != s.latest {
		slog.Debug("discarding stale batch", "batch", batch.Ticket.ID, "latest", s.latest)
		return ErrStaleBatch
	}
	s.images = append([]perturb.SourceImage(nil), batch.Images...)
	s.batchID = batch.Ticket.ID
	slog.Info("batch loaded", "batch", s.batchID, "images", len(s.images), "skipped", len(batch.Warnings))
	return nil
}

// Upload is Begin, Decode and Commit in one call.
func (s *Session) Upload(ctx context.Context, files []File) (Batch, error) {
	ticket := s.Begin()
	batch, err := s.Decode(ctx, ticket, files)
	if err != nil {
		return batch, err
	}
	return batch, s.Commit(batch)
}

// Reset drops every image and invalidates outstanding tickets.
func (s *Session) Reset() {
	s.images = nil
	s.batchID = ""
	s.latest = ""
}

// Refresh regenerates one artifact per held image with params. Failures are
// reported per image in the results; the error is only set when ctx ends
// the run early. An empty session yields no results.
func (s *Session) Refresh(ctx context.Context, params perturb.Params, updates chan<- processor.ProgressUpdate) ([]processor.Result, error) {
	if s.State() == StateEmpty {
		return nil, nil
	}
	_, results, err := processor.Run(ctx, s.Images(), s.runOptions(params), updates)
	return results, err
}

// Export produces the artifacts for packaging. Images that fail are left
// out of the artifacts and reported in the results.
func (s *Session) Export(ctx context.Context, params perturb.Params, updates chan<- processor.ProgressUpdate) ([]processor.Artifact, []processor.Result, error) {
	if s.State() == StateEmpty {
		return nil, nil, ErrNoImages
	}
	results, err := s.Refresh(ctx, params, updates)
	if err != nil {
		return nil, results, err
	}

	artifacts := make([]processor.Artifact, 0, len(results))
	for _, res := range results {
		if res.OK() {
			artifacts = append(artifacts, res.Artifact)
		}
	}
	return artifacts, results, nil
}

// RefreshFunc returns a closure that refreshes the currently held images
// with no further access to the session, for use off the owning goroutine.
func (s *Session) RefreshFunc(params perturb.Params) func(ctx context.Context) ([]processor.Result, error) {
	images := s.Images()
	opts := s.runOptions(params)
	return func(ctx context.Context) ([]processor.Result, error) {
		if len(images) == 0 {
			return nil, nil
		}
		_, results, err := processor.Run(ctx, images, opts, nil)
		return results, err
	}
}

func (s *Session) runOptions(params perturb.Params) processor.Options {
	return processor.Options{
		Params:  params,
		Encoder: s.opts.Encoder,
		Workers: s.opts.Workers,
		NewRand: s.opts.NewRand,
		Now:     s.opts.Now,
	}
}
