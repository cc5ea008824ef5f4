package slide

import "image"

// BoundaryMode is the policy a view consumer applies to reads that extend
// past the image edges. The core never fills pixels itself; the mode is
// carried on the view for the consumer layer to honor.
type BoundaryMode int

const (
	// BoundaryReject fails reads that extend past the edge.
	BoundaryReject BoundaryMode = iota

	// BoundaryClamp clamps coordinates to the edge.
	BoundaryClamp

	// BoundaryFill pads missing pixels with a constant fill value.
	BoundaryFill
)

// RegionReader is the hook through which generic view consumers pull pixel
// data without knowing about the pyramid's discrete levels.
type RegionReader interface {
	MPP() float64
	Size() image.Point
	ReadRegion(x, y float64, width, height int) (*image.NRGBA, error)
}

// View presents one scaling level of a slide as an independently
// addressable 2-D image. It holds no backend resources of its own: it is
// trivially constructed, safe to discard, and multiple views over the same
// slide may be used concurrently read-only.
type View struct {
	slide   *Slide
	scaling float64

	// Boundary is the edge-fill policy inherited by view consumers.
	Boundary BoundaryMode
}

var _ RegionReader = (*View)(nil)

// MPP returns the view's effective microns per pixel.
func (v *View) MPP() float64 { return v.slide.MPPAt(v.scaling) }

// Scaling returns the view's fixed scaling factor.
func (v *View) Scaling() float64 { return v.scaling }

// Size returns the view's dimensions.
func (v *View) Size() image.Point { return v.slide.ScaledSize(v.scaling, false) }

// ReadRegion returns a region of the level associated to the view.
func (v *View) ReadRegion(x, y float64, width, height int) (*image.NRGBA, error) {
	return v.slide.ReadRegion(x, y, v.scaling, width, height)
}
