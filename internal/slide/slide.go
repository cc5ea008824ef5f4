package slide

import (
	"fmt"
	"image"
	"math"

	"github.com/microscopy-io/slidekit/internal/backend"
	"github.com/microscopy-io/slidekit/internal/resample"
)

// mppRelTolerance bounds how anisotropic a slide's spacing may be before
// the slide is rejected.
const mppRelTolerance = 0.015

// Options configures a Slide at construction. The zero value selects
// backend auto-detection, Lanczos interpolation and the box pipeline.
type Options struct {
	// Identifier names the slide in errors and diagnostics.
	Identifier string

	// Backend selects the backend by name when opening from a path; empty
	// auto-detects.
	Backend string

	// Kernel is the interpolation kernel used when reading regions.
	// Lanczos suits images; Nearest suits masks.
	Kernel resample.Kernel

	// Pipeline selects the crop/resize strategy. The two pipelines differ
	// in rounding; see package resample.
	Pipeline resample.Pipeline

	// OverwriteMPP overrides the backend's spacing, e.g. when the file
	// lacks one or it is sourced from an external database.
	OverwriteMPP *backend.Spacing

	// ApplyColorProfile requests normalizing regions to sRGB. Only the
	// crop pipeline supports it; the box pipeline downgrades the request
	// with a warning.
	ApplyColorProfile bool
}

// Slide reads a pyramidal image at any scaling factor, interpolating from
// the closest higher-resolution native level. It owns exactly one backend
// handle, which Close releases.
type Slide struct {
	wsi        backend.Backend
	identifier string
	kernel     resample.Kernel
	pipeline   resample.Pipeline
	applyColor bool
	avgMPP     float64
}

// New wraps an already-open backend and validates its properties.
func New(b backend.Backend, opts Options) (*Slide, error) {
	if opts.OverwriteMPP != nil {
		b.SetSpacing(*opts.OverwriteMPP)
	}

	spacing, ok := b.Spacing()
	if !ok {
		return nil, &UnsupportedSlideError{
			Identifier: opts.Identifier,
			Reason:     "spacing cannot be derived from the image and is not set via OverwriteMPP",
		}
	}
	if err := checkSpacing(spacing); err != nil {
		return nil, &UnsupportedSlideError{Identifier: opts.Identifier, Reason: err.Error()}
	}

	return &Slide{
		wsi:        b,
		identifier: opts.Identifier,
		kernel:     opts.Kernel,
		pipeline:   opts.Pipeline,
		applyColor: opts.ApplyColorProfile,
		avgMPP:     spacing.Avg(),
	}, nil
}

// Open opens the slide at path with the backend named in opts.
func Open(path string, opts Options) (*Slide, error) {
	b, err := backend.Open(path, opts.Backend)
	if err != nil {
		return nil, err
	}
	if opts.Identifier == "" {
		opts.Identifier = path
	}
	s, err := New(b, opts)
	if err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}

// With opens the slide at path, passes it to fn and closes it on every
// exit path.
func With(path string, opts Options, fn func(*Slide) error) error {
	s, err := Open(path, opts)
	if err != nil {
		return err
	}
	err = fn(s)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func checkSpacing(sp backend.Spacing) error {
	if sp.X <= 0 || sp.Y <= 0 {
		return fmt.Errorf("spacing must be positive, got (%g, %g)", sp.X, sp.Y)
	}
	if math.Abs(sp.X-sp.Y) > mppRelTolerance*math.Max(sp.X, sp.Y) {
		return fmt.Errorf("spacing (%g, %g) is too anisotropic", sp.X, sp.Y)
	}
	return nil
}

// Close releases the underlying backend.
func (s *Slide) Close() error {
	return s.wsi.Close()
}

// ReadRegion returns a region at a specific scaling level of the pyramid.
//
// The location is given in pixels at the requested scaling; the returned
// image has exactly the requested size. Interior pixels are interpolated
// with the configured kernel; pixels at slide edges use only in-bounds
// native samples. Validation happens before any backend I/O, and a backend
// decode failure propagates unchanged.
func (s *Slide) ReadRegion(x, y, scaling float64, width, height int) (*image.NRGBA, error) {
	plan, err := planRegion(x, y, scaling, width, height,
		s.ScaledSize(scaling, false), s.wsi.LevelDimensions(), s.wsi.LevelDownsamples())
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return image.NewNRGBA(image.Rect(0, 0, width, height)), nil
	}

	window, err := s.wsi.ReadRegion(plan.LevelZeroLocation, plan.Level, plan.WindowSize)
	if err != nil {
		return nil, err
	}

	return resample.Resample(window, plan.CropBox, width, height,
		s.pipeline, s.kernel, s.wsi.ColorSpace(), s.applyColor)
}

// ScaledSize computes the slide size at a specific scaling. With
// limitBounds the size derives from the tissue-containing slide bounds
// instead of the full image.
func (s *Slide) ScaledSize(scaling float64, limitBounds bool) image.Point {
	base := s.Size()
	if limitBounds {
		base = s.wsi.SlideBounds().Size
	}
	return image.Pt(int(float64(base.X)*scaling), int(float64(base.Y)*scaling))
}

// MPPAt returns the effective microns per pixel at a scaling.
func (s *Slide) MPPAt(scaling float64) float64 {
	return s.avgMPP / scaling
}

// ScalingForMPP is the inverse of MPPAt. A non-positive mpp means "native
// resolution" and maps to 1.0 by convention.
func (s *Slide) ScalingForMPP(mpp float64) float64 {
	if mpp <= 0 {
		return 1.0
	}
	return s.avgMPP / mpp
}

// ClosestNativeLevel returns the stored level whose average spacing is
// closest to mpp.
func (s *Slide) ClosestNativeLevel(mpp float64) int {
	closest := 0
	best := math.Inf(1)
	for i, sp := range s.wsi.LevelSpacings() {
		if d := math.Abs(sp.Avg() - mpp); d < best {
			best = d
			closest = i
		}
	}
	return closest
}

// ClosestNativeMPP returns the spacing of the level closest to mpp.
func (s *Slide) ClosestNativeMPP(mpp float64) backend.Spacing {
	return s.wsi.LevelSpacings()[s.ClosestNativeLevel(mpp)]
}

// ScaledView returns a lazy view presenting one scaling level of the
// pyramid as an independently addressable image.
func (s *Slide) ScaledView(scaling float64) *View {
	return &View{slide: s, scaling: scaling}
}

// Thumbnail returns the slide fitted within the bounding size.
func (s *Slide) Thumbnail(bounding image.Point) (*image.NRGBA, error) {
	return s.wsi.Thumbnail(bounding)
}

// SlideBounds returns the tissue-containing sub-rectangle at level zero.
func (s *Slide) SlideBounds() backend.Bounds {
	return s.wsi.SlideBounds()
}

// ScaledSlideBounds returns the slide bounds projected to a scaling.
func (s *Slide) ScaledSlideBounds(scaling float64) backend.Bounds {
	b := s.SlideBounds()
	return backend.Bounds{
		Offset: image.Pt(int(scaling*float64(b.Offset.X)), int(scaling*float64(b.Offset.Y))),
		Size:   image.Pt(int(scaling*float64(b.Size.X)), int(scaling*float64(b.Size.Y))),
	}
}

// Identifier returns the user-defined identifier.
func (s *Slide) Identifier() string { return s.identifier }

// Vendor returns the scanner vendor.
func (s *Slide) Vendor() string { return s.wsi.Vendor() }

// Properties returns any extra metadata associated with the image.
func (s *Slide) Properties() map[string]string { return s.wsi.Properties() }

// Size returns the level-zero size in pixels.
func (s *Slide) Size() image.Point { return s.wsi.Dimensions() }

// MPP returns the average microns per pixel at level zero.
func (s *Slide) MPP() float64 { return s.avgMPP }

// LevelCount returns the number of stored pyramid levels.
func (s *Slide) LevelCount() int { return s.wsi.LevelCount() }

// LevelDimensions returns the stored level sizes, highest resolution first.
func (s *Slide) LevelDimensions() []image.Point { return s.wsi.LevelDimensions() }

// LevelDownsamples returns the downsample factor of each stored level.
func (s *Slide) LevelDownsamples() []float64 { return s.wsi.LevelDownsamples() }

// Magnification returns the objective power, or 0 when unknown.
func (s *Slide) Magnification() float64 { return s.wsi.Magnification() }

// AspectRatio returns width / height at level zero.
func (s *Slide) AspectRatio() float64 {
	size := s.Size()
	return float64(size.X) / float64(size.Y)
}

// Kernel returns the configured interpolation kernel.
func (s *Slide) Kernel() resample.Kernel { return s.kernel }

// Pipeline returns the configured crop/resize pipeline.
func (s *Slide) Pipeline() resample.Pipeline { return s.pipeline }

func (s *Slide) String() string {
	size := s.Size()
	return fmt.Sprintf("Slide(identifier=%s, vendor=%s, mpp=%g, magnification=%g, size=%dx%d, kernel=%s, pipeline=%s)",
		s.identifier, s.Vendor(), s.avgMPP, s.Magnification(), size.X, size.Y, s.kernel, s.pipeline)
}
