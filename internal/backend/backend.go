package backend

import (
	"errors"
	"fmt"
	"image"

	"github.com/microscopy-io/slidekit/internal/resample"
)

// Spacing is the physical pixel pitch in microns per pixel.
type Spacing struct {
	X float64
	Y float64
}

// Avg returns the average of the two axes.
func (s Spacing) Avg() float64 { return (s.X + s.Y) / 2 }

// Bounds identifies the tissue-containing sub-rectangle of a slide at
// level zero. It can be smaller than the full image dimensions.
type Bounds struct {
	Offset image.Point
	Size   image.Point
}

// ErrUnknownBackend is returned by Open for backend names outside the
// closed set of variants.
var ErrUnknownBackend = errors.New("unknown backend")

// ErrUnsupportedFormat is returned when no backend recognizes a path.
var ErrUnsupportedFormat = errors.New("unsupported slide format")

// Backend is the contract a pyramidal image decoder must satisfy.
//
// ReadRegion addresses the window start in level-zero pixel coordinates but
// sizes it in the target level's own pixels. Implementations may deliver
// fewer pixels than requested where the window touches a level border;
// callers clip their crop boxes against the decoded extent.
//
// Implementations must tolerate concurrent ReadRegion calls.
type Backend interface {
	// Dimensions returns the level-zero size in pixels (width, height).
	Dimensions() image.Point

	// LevelCount returns the number of natively stored levels.
	LevelCount() int

	// LevelDimensions returns the per-level sizes, finest first.
	LevelDimensions() []image.Point

	// LevelDownsamples returns the per-level downsample factors relative
	// to level zero, ascending from 1.
	LevelDownsamples() []float64

	// LevelSpacings returns the per-level physical pixel pitch. The
	// second return of Spacing decides whether these are meaningful.
	LevelSpacings() []Spacing

	// Spacing returns the level-zero pixel pitch, if known.
	Spacing() (Spacing, bool)

	// SetSpacing overrides the level-zero pixel pitch, e.g. when sourcing
	// it from an external database.
	SetSpacing(Spacing)

	// Vendor returns the scanner vendor, or "" when unknown.
	Vendor() string

	// Properties returns extra metadata associated with the image.
	Properties() map[string]string

	// Magnification returns the objective power, or 0 when unknown.
	Magnification() float64

	// SlideBounds returns the tissue-containing sub-rectangle at level
	// zero. Backends without bounds report the full image.
	SlideBounds() Bounds

	// BestLevelForDownsample returns the level best suited for the given
	// downsample factor: the level with the largest downsample that does
	// not exceed it, or level 0 when the factor is finer than every level.
	BestLevelForDownsample(factor float64) int

	// ReadRegion decodes a native window. levelZeroLoc is the window start
	// at level zero; size is in level pixels.
	ReadRegion(levelZeroLoc image.Point, level int, size image.Point) (*image.NRGBA, error)

	// Thumbnail returns an image fitting within the bounding size while
	// preserving the aspect ratio.
	Thumbnail(bounding image.Point) (*image.NRGBA, error)

	// ColorSpace declares how decoded samples are encoded.
	ColorSpace() resample.ColorSpace

	// Close releases the backend's resources. Safe to call once; further
	// reads after Close fail.
	Close() error
}

// BestLevelForDownsample implements the standard level selection over a
// slice of ascending downsample factors.
func BestLevelForDownsample(downsamples []float64, factor float64) int {
	best := 0
	for i, ds := range downsamples {
		if ds <= factor {
			best = i
		}
	}
	return best
}

// Open opens the slide at path with the backend selected by name. An empty
// name auto-detects from the closed set of variants.
func Open(path, name string) (Backend, error) {
	switch name {
	case "", "store":
		b, err := OpenStore(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}
