package perturb

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	// MaxAdjustment bounds Brightness and Contrast in slider units.
	MaxAdjustment = 100.0
	// MaxPixelShift bounds the canvas growth so a typo cannot allocate gigabytes.
	MaxPixelShift = 1024
	// MaxNoiseLevel is the widest noise amplitude that still changes anything.
	MaxNoiseLevel = 510
)

// Profile maps slider units onto channel values.
type Profile struct {
	Name            string
	BrightnessScale float64
	ContrastScale   float64
}

var (
	// ProfileStandard spans [-255,255] over the [-100,100] slider range.
	ProfileStandard = Profile{Name: "standard", BrightnessScale: 2.55, ContrastScale: 2.55}
	// ProfileCoarse applies ten times the brightness per slider unit.
	ProfileCoarse = Profile{Name: "coarse", BrightnessScale: 25.5, ContrastScale: 2.55}
)

var profiles = map[string]Profile{
	ProfileStandard.Name: ProfileStandard,
	ProfileCoarse.Name:   ProfileCoarse,
}

// LookupProfile resolves a profile by name. The empty name is the standard profile.
func LookupProfile(name string) (Profile, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProfileStandard, true
	}
	p, ok := profiles[name]
	return p, ok
}

// ProfileNames lists the known profile names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Params is the full set of user controls read for one transform.
type Params struct {
	Brightness     float64 `yaml:"brightness"`
	Contrast       float64 `yaml:"contrast"`
	PixelShift     int     `yaml:"pixel_shift"`
	NoiseLevel     int     `yaml:"noise_level"`
	Watermark      bool    `yaml:"watermark"`
	ModifyMetadata bool    `yaml:"modify_metadata"`
	Profile        string  `yaml:"profile"`
}

// Neutral returns parameters that leave pixel values unchanged.
func Neutral() Params {
	return Params{Profile: ProfileStandard.Name}
}

// Validate rejects values Transform cannot apply. Brightness and Contrast
// outside the slider range are clamped rather than rejected.
func (p Params) Validate() error {
	if math.IsNaN(p.Brightness) || math.IsInf(p.Brightness, 0) {
		return fmt.Errorf("%w: brightness %v", ErrInvalidParams, p.Brightness)
	}
	if math.IsNaN(p.Contrast) || math.IsInf(p.Contrast, 0) {
		return fmt.Errorf("%w: contrast %v", ErrInvalidParams, p.Contrast)
	}
	if p.PixelShift < 0 || p.PixelShift > MaxPixelShift {
		return fmt.Errorf("%w: pixel shift %d outside [0,%d]", ErrInvalidParams, p.PixelShift, MaxPixelShift)
	}
	if p.NoiseLevel < 0 || p.NoiseLevel > MaxNoiseLevel {
		return fmt.Errorf("%w: noise level %d outside [0,%d]", ErrInvalidParams, p.NoiseLevel, MaxNoiseLevel)
	}
	if _, ok := LookupProfile(p.Profile); !ok {
		return fmt.Errorf("%w: unknown profile %q (want one of %s)", ErrInvalidParams, p.Profile, strings.Join(ProfileNames(), ", "))
	}
	return nil
}

func (p Params) normalized() (Params, Profile) {
	p.Brightness = clampRange(p.Brightness, -MaxAdjustment, MaxAdjustment)
	p.Contrast = clampRange(p.Contrast, -MaxAdjustment, MaxAdjustment)
	prof, _ := LookupProfile(p.Profile)
	p.Profile = prof.Name
	return p, prof
}

func (p Params) String() string {
	return fmt.Sprintf("brightness=%g contrast=%g shift=%d noise=%d watermark=%t metadata=%t profile=%s",
		p.Brightness, p.Contrast, p.PixelShift, p.NoiseLevel, p.Watermark, p.ModifyMetadata, p.Profile)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
