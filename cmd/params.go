package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"rehash/internal/config"
	"rehash/internal/perturb"
	"rehash/internal/session"
	"rehash/internal/upload"
)

// runFlags are the parameter flags shared by process, preview and tune.
// Only flags set on the command line override the config file and env.
type runFlags struct {
	configPath     string
	brightness     float64
	contrast       float64
	pixelShift     int
	noise          int
	watermark      bool
	modifyMetadata bool
	profile        string
	quality        float64
	encoder        string
	workers        int
	seed           uint64
}

func addRunFlags(cmd *cobra.Command) *runFlags {
	f := &runFlags{}
	def := config.Default()
	flags := cmd.Flags()

	flags.StringVarP(&f.configPath, "config", "c", "", "YAML preset with parameters")
	flags.Float64Var(&f.brightness, "brightness", def.Params.Brightness, "brightness in [-100,100]")
	flags.Float64Var(&f.contrast, "contrast", def.Params.Contrast, "contrast in [-100,100]")
	flags.IntVar(&f.pixelShift, "pixel-shift", def.Params.PixelShift, "pixels added to width and height")
	flags.IntVar(&f.noise, "noise", def.Params.NoiseLevel, "noise amplitude per channel")
	flags.BoolVar(&f.watermark, "watermark", def.Params.Watermark, "draw a faint random watermark")
	flags.BoolVar(&f.modifyMetadata, "modify-metadata", def.Params.ModifyMetadata, "append a unique comment after the image data")
	flags.StringVar(&f.profile, "profile", def.Params.Profile, fmt.Sprintf("parameter scaling profile %v", perturb.ProfileNames()))
	flags.Float64Var(&f.quality, "quality", def.Quality, "JPEG quality in (0,1]")
	flags.StringVar(&f.encoder, "encoder", def.Encoder, "JPEG encoder (std or jpegli)")
	flags.IntVarP(&f.workers, "workers", "w", def.Workers, "parallel workers (0 = number of CPUs)")
	flags.Uint64Var(&f.seed, "seed", 0, "fixed random seed for reproducible output")

	return f
}

// resolve layers defaults, the YAML preset, REHASH_* variables and finally
// the flags the user actually set.
func (f *runFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("brightness") {
		cfg.Params.Brightness = f.brightness
	}
	if flags.Changed("contrast") {
		cfg.Params.Contrast = f.contrast
	}
	if flags.Changed("pixel-shift") {
		cfg.Params.PixelShift = f.pixelShift
	}
	if flags.Changed("noise") {
		cfg.Params.NoiseLevel = f.noise
	}
	if flags.Changed("watermark") {
		cfg.Params.Watermark = f.watermark
	}
	if flags.Changed("modify-metadata") {
		cfg.Params.ModifyMetadata = f.modifyMetadata
	}
	if flags.Changed("profile") {
		cfg.Params.Profile = f.profile
	}
	if flags.Changed("quality") {
		cfg.Quality = f.quality
	}
	if flags.Changed("encoder") {
		cfg.Encoder = f.encoder
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if flags.Changed("seed") {
		seed := f.seed
		cfg.Seed = &seed
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	slog.Debug("resolved parameters", "params", cfg.Params.String(), "quality", cfg.Quality, "encoder", cfg.Encoder)
	return cfg, nil
}

func newSession(cfg config.Config) (*session.Session, error) {
	enc, err := cfg.EncoderOptions()
	if err != nil {
		return nil, err
	}
	return session.New(session.Options{
		Encoder: enc,
		Workers: cfg.Workers,
		NewRand: cfg.RandSource(),
	}), nil
}

// loadSession collects path and commits it as the first batch.
func loadSession(ctx context.Context, cfg config.Config, path string, opts upload.Options) (*session.Session, session.Batch, error) {
	sess, err := newSession(cfg)
	if err != nil {
		return nil, session.Batch{}, err
	}
	files, err := upload.Collect(ctx, path, opts)
	if err != nil {
		return nil, session.Batch{}, err
	}
	batch, err := sess.Upload(ctx, files)
	if err != nil {
		return nil, batch, err
	}
	if sess.State() == session.StateEmpty {
		return sess, batch, fmt.Errorf("no images found in %s", path)
	}
	return sess, batch, nil
}
