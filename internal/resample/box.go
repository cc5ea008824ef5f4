package resample

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// lanczos3 is a Lanczos kernel with a support of 3 samples:
// sinc(t) * sinc(t/3) for |t| < 3.
var lanczos3 = &draw.Kernel{
	Support: Support,
	At: func(t float64) float64 {
		t = math.Abs(t)
		if t >= Support {
			return 0
		}
		if t == 0 {
			return 1
		}
		pt := math.Pi * t
		return Support * math.Sin(pt) * math.Sin(pt/Support) / (pt * pt)
	},
}

func (k Kernel) interpolator() draw.Interpolator {
	if k == Nearest {
		return draw.NearestNeighbor
	}
	return lanczos3
}

// resampleBox maps the continuous crop box onto the target size in a single
// transform pass, so sub-pixel offsets shift the sample grid rather than
// being rounded away.
func resampleBox(src image.Image, box Box, width, height int, k Kernel) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	sr := src.Bounds()
	sx := float64(width) / box.Width()
	sy := float64(height) / box.Height()
	x0 := box.X0 + float64(sr.Min.X)
	y0 := box.Y0 + float64(sr.Min.Y)

	// Affine mapping source coordinates to destination coordinates.
	m := f64.Aff3{
		sx, 0, -x0 * sx,
		0, sy, -y0 * sy,
	}
	k.interpolator().Transform(dst, m, src, sr, draw.Src, nil)
	return dst
}
