package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestResolvePrecedence(t *testing.T) {
	preset := filepath.Join(t.TempDir(), "preset.yaml")
	data := "params:\n  brightness: 5\n  contrast: 6\n  noise_level: 7\nquality: 0.5\n"
	if err := os.WriteFile(preset, []byte(data), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	t.Setenv("REHASH_CONTRAST", "-8")
	t.Setenv("REHASH_NOISE", "9")

	cmd := &cobra.Command{Use: "test"}
	flags := addRunFlags(cmd)
	for name, value := range map[string]string{
		"config": preset,
		"noise":  "11",
		"seed":   "42",
	} {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}

	cfg, err := flags.resolve(cmd)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// default < YAML < env < flags
	if cfg.Params.PixelShift != 1 {
		t.Errorf("pixel shift = %d, want default 1", cfg.Params.PixelShift)
	}
	if cfg.Params.Brightness != 5 || cfg.Quality != 0.5 {
		t.Errorf("brightness = %v, quality = %v, want YAML values", cfg.Params.Brightness, cfg.Quality)
	}
	if cfg.Params.Contrast != -8 {
		t.Errorf("contrast = %v, want env value", cfg.Params.Contrast)
	}
	if cfg.Params.NoiseLevel != 11 {
		t.Errorf("noise = %d, want flag value", cfg.Params.NoiseLevel)
	}
	if cfg.Seed == nil || *cfg.Seed != 42 {
		t.Errorf("seed = %v", cfg.Seed)
	}
	if !cfg.Params.ModifyMetadata {
		t.Error("metadata modification should default to on")
	}
}

func TestResolveRejectsInvalidFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	flags := addRunFlags(cmd)
	if err := cmd.Flags().Set("encoder", "bmp"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := flags.resolve(cmd); err == nil {
		t.Fatal("expected an error for an unknown encoder")
	}
}
