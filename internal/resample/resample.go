package resample

import (
	"fmt"
	"image"
	"log"
	"math"
)

// Kernel selects the interpolation kernel used when resampling a region.
type Kernel int

const (
	// Nearest picks the closest native sample. Appropriate for masks and
	// label images where values must not be mixed.
	Nearest Kernel = iota

	// Lanczos is a Lanczos-family kernel with a support of 3 samples.
	// Appropriate for photographic content.
	Lanczos
)

// Support is the number of neighboring native samples the widest kernel
// needs beyond the exact target footprint to compute correct border values.
const Support = 3

// ParseKernel converts a kernel name ("nearest", "lanczos") to a Kernel.
func ParseKernel(name string) (Kernel, error) {
	switch name {
	case "nearest":
		return Nearest, nil
	case "lanczos":
		return Lanczos, nil
	default:
		return 0, fmt.Errorf("unknown kernel: %q", name)
	}
}

// String returns the kernel name.
func (k Kernel) String() string {
	switch k {
	case Nearest:
		return "nearest"
	case Lanczos:
		return "lanczos"
	default:
		return fmt.Sprintf("Kernel(%d)", int(k))
	}
}

// Pipeline selects one of the two crop/resize strategies.
type Pipeline int

const (
	// PipelineBox resamples with a continuous source box in one pass.
	PipelineBox Pipeline = iota

	// PipelineCrop crops to an integer rectangle first, then resizes.
	PipelineCrop
)

// ParsePipeline converts a pipeline name ("box", "crop") to a Pipeline.
func ParsePipeline(name string) (Pipeline, error) {
	switch name {
	case "box":
		return PipelineBox, nil
	case "crop":
		return PipelineCrop, nil
	default:
		return 0, fmt.Errorf("unknown pipeline: %q", name)
	}
}

// String returns the pipeline name.
func (p Pipeline) String() string {
	switch p {
	case PipelineBox:
		return "box"
	case PipelineCrop:
		return "crop"
	default:
		return fmt.Sprintf("Pipeline(%d)", int(p))
	}
}

// Box is a sub-pixel crop rectangle relative to the top-left corner of a
// decoded window. X1/Y1 are exclusive.
type Box struct {
	X0, Y0, X1, Y1 float64
}

// Width returns X1 - X0.
func (b Box) Width() float64 { return b.X1 - b.X0 }

// Height returns Y1 - Y0.
func (b Box) Height() float64 { return b.Y1 - b.Y0 }

// Clip bounds the box to [0, w] x [0, h]. Some backends deliver one pixel
// less than requested at slide borders, so the decoded window's actual
// extent wins over the computed one.
func (b Box) Clip(w, h int) Box {
	return Box{
		X0: clampFloat(b.X0, 0, float64(w)),
		Y0: clampFloat(b.Y0, 0, float64(h)),
		X1: clampFloat(b.X1, 0, float64(w)),
		Y1: clampFloat(b.Y1, 0, float64(h)),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Resample crops src to box and resizes the result to exactly
// (width, height) using the given pipeline and kernel. When normalize is
// set and space declares a non-sRGB buffer, the cropped samples are mapped
// to sRGB before resizing; only PipelineCrop supports this, and PipelineBox
// downgrades the request with a warning instead of failing.
func Resample(src image.Image, box Box, width, height int, p Pipeline, k Kernel, space ColorSpace, normalize bool) (*image.NRGBA, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("target size must be non-negative, got %dx%d", width, height)
	}
	if width == 0 || height == 0 {
		return image.NewNRGBA(image.Rect(0, 0, width, height)), nil
	}

	bounds := src.Bounds()
	box = box.Clip(bounds.Dx(), bounds.Dy())
	if box.Width() <= 0 || box.Height() <= 0 {
		return nil, fmt.Errorf("empty crop box %+v for %dx%d window", box, bounds.Dx(), bounds.Dy())
	}

	switch p {
	case PipelineBox:
		if normalize && space.NeedsNormalization() {
			log.Printf("warning: color-space normalization is not supported by the box pipeline; returning %s samples", space)
		}
		return resampleBox(src, box, width, height, k), nil
	case PipelineCrop:
		return cropResize(src, box, width, height, k, space, normalize)
	default:
		return nil, fmt.Errorf("unknown pipeline: %d", int(p))
	}
}
