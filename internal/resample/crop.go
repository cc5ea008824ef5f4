package resample

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

func (k Kernel) filter() imaging.ResampleFilter {
	if k == Nearest {
		return imaging.NearestNeighbor
	}
	return imaging.Lanczos
}

// cropResize rounds the crop box to an integer rectangle (floor on the
// left/top edge, round on the right/bottom edge), crops, optionally
// normalizes the cropped samples to sRGB, and resizes to the target size.
func cropResize(src image.Image, box Box, width, height int, k Kernel, space ColorSpace, normalize bool) (*image.NRGBA, error) {
	bounds := src.Bounds()
	x0 := int(math.Floor(box.X0))
	y0 := int(math.Floor(box.Y0))
	x1 := int(math.Round(box.X1))
	y1 := int(math.Round(box.Y1))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}

	rect := image.Rect(x0, y0, x1, y1).Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("crop box %+v lies outside the %dx%d window", box, bounds.Dx(), bounds.Dy())
	}

	cropped := imaging.Crop(src, rect)
	if normalize {
		cropped = Normalize(cropped, space)
	}

	// Resize expresses the scale as independent horizontal and vertical
	// factors target/crop, matching the box pipeline's nominal contract.
	return imaging.Resize(cropped, width, height, k.filter()), nil
}
