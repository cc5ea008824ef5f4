package resample

import (
	"image"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ColorSpace declares how a backend's decoded samples are encoded.
type ColorSpace string

const (
	// ColorSpaceUnknown means the backend carries no color information.
	ColorSpaceUnknown ColorSpace = ""

	// ColorSpaceSRGB is the standard display space; no transform needed.
	ColorSpaceSRGB ColorSpace = "srgb"

	// ColorSpaceLinearRGB marks scanners that store linear-light samples.
	ColorSpaceLinearRGB ColorSpace = "linear-rgb"
)

// NeedsNormalization reports whether samples in this space must be
// transformed before they can be treated as sRGB.
func (c ColorSpace) NeedsNormalization() bool {
	return c == ColorSpaceLinearRGB
}

// Normalize maps src into sRGB. Buffers already in sRGB (or with no
// declared space) are returned unchanged. Alpha is carried through as-is.
func Normalize(src *image.NRGBA, space ColorSpace) *image.NRGBA {
	if !space.NeedsNormalization() {
		return src
	}

	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := src.PixOffset(x, y)
			c := colorful.LinearRgb(
				float64(src.Pix[i])/255,
				float64(src.Pix[i+1])/255,
				float64(src.Pix[i+2])/255,
			).Clamped()
			r, g, b := c.RGB255()
			j := dst.PixOffset(x, y)
			dst.Pix[j] = r
			dst.Pix[j+1] = g
			dst.Pix[j+2] = b
			dst.Pix[j+3] = src.Pix[i+3]
		}
	}
	return dst
}
