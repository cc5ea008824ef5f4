package slide

import (
	"fmt"
	"image"
	"math"

	"github.com/microscopy-io/slidekit/internal/backend"
	"github.com/microscopy-io/slidekit/internal/resample"
)

// RegionPlan is the coordinate mapper's output: one backend-addressable
// read plus the fractional crop box that corrects its rounding.
type RegionPlan struct {
	// Level is the native pyramid level to read from.
	Level int

	// LevelZeroLocation is the padded window's start in level-zero pixels,
	// since backends only accept integer level-zero coordinates.
	LevelZeroLocation image.Point

	// WindowSize is the padded window's size in native level pixels.
	WindowSize image.Point

	// CropBox identifies the exact samples of the requested region inside
	// the decoded window, in (possibly fractional) window pixels.
	CropBox resample.Box

	// NativeScaling is the requested scaling expressed relative to the
	// chosen level: scaling * downsample(level).
	NativeScaling float64
}

// planRegion maps a (location, scaling, size) request onto a native level.
//
// The steps, in order:
//
//  1. Validate the size and the location against the scaled level size.
//  2. Pick the finest level whose downsample does not exceed 1/scaling.
//  3. Project location and size into that level's pixels.
//  4. Pad by the kernel support: 3 native pixels when the level is being
//     downscaled, ceil(3/nativeScaling) when it is being upscaled, because
//     a wider output window maps to fewer native samples.
//  5. Floor the padded start, clamp it into the level, and round-trip it
//     through integer level-zero coordinates — the backend indexes level
//     zero, not the native level, and the round trip may shift the start
//     by a fraction of a native pixel.
//  6. Ceil the padded end, clamp, and re-ceil the resulting size: the
//     intermediate float subtraction can leave the window one pixel short
//     of covering the request.
//  7. Express the requested region relative to the window start as the
//     fractional crop box.
//
// planRegion is pure: it performs no I/O and never plans a read outside
// the level's bounds.
func planRegion(x, y, scaling float64, width, height int, levelSize image.Point, levelDims []image.Point, downsamples []float64) (RegionPlan, error) {
	if scaling <= 0 || math.IsNaN(scaling) || math.IsInf(scaling, 0) {
		return RegionPlan{}, fmt.Errorf("scaling must be a positive finite number, got %g", scaling)
	}
	if width < 0 || height < 0 {
		return RegionPlan{}, &BoundsError{X: x, Y: y, Width: width, Height: height}
	}
	if x < 0 || y < 0 || x+float64(width) > float64(levelSize.X) || y+float64(height) > float64(levelSize.Y) {
		return RegionPlan{}, &BoundsError{
			X: x, Y: y, Width: width, Height: height,
			LevelWidth: levelSize.X, LevelHeight: levelSize.Y,
		}
	}

	level := backend.BestLevelForDownsample(downsamples, 1/scaling)
	nativeLevelSize := levelDims[level]
	downsample := downsamples[level]

	nativeScaling := scaling * downsample
	nativeX := x / nativeScaling
	nativeY := y / nativeScaling
	nativeW := float64(width) / nativeScaling
	nativeH := float64(height) / nativeScaling

	support := float64(resample.Support)
	if nativeScaling <= 1 {
		support = math.Ceil(float64(resample.Support) / nativeScaling)
	}

	startX := clamp(math.Floor(nativeX-support), 0, float64(nativeLevelSize.X))
	startY := clamp(math.Floor(nativeY-support), 0, float64(nativeLevelSize.Y))

	levelZeroX := int(math.Floor(startX * downsample))
	levelZeroY := int(math.Floor(startY * downsample))
	startX = float64(levelZeroX) / downsample
	startY = float64(levelZeroY) / downsample

	windowW := clamp(math.Ceil(nativeX+nativeW+support), 0, float64(nativeLevelSize.X)) - startX
	windowH := clamp(math.Ceil(nativeY+nativeH+support), 0, float64(nativeLevelSize.Y)) - startY

	fracX := nativeX - startX
	fracY := nativeY - startY

	return RegionPlan{
		Level:             level,
		LevelZeroLocation: image.Pt(levelZeroX, levelZeroY),
		// The final ceil must never be omitted: the subtraction above can
		// produce a window one pixel short of covering the request.
		WindowSize:    image.Pt(int(math.Ceil(windowW)), int(math.Ceil(windowH))),
		CropBox:       resample.Box{X0: fracX, Y0: fracY, X1: fracX + nativeW, Y1: fracY + nativeH},
		NativeScaling: nativeScaling,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
