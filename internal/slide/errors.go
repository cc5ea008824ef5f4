package slide

import "fmt"

// UnsupportedSlideError marks a slide that cannot be used at all: its
// spacing is missing and not overridden, or the spacing is too anisotropic
// to trust. Raised at construction and fatal to that slide instance.
type UnsupportedSlideError struct {
	Identifier string
	Reason     string
}

func (e *UnsupportedSlideError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("unsupported slide: %s", e.Reason)
	}
	return fmt.Sprintf("unsupported slide %q: %s", e.Identifier, e.Reason)
}

// BoundsError reports a region request with a negative size or a location
// outside a level's boundaries. It is raised before any backend I/O, so
// the caller can correct the inputs and retry.
type BoundsError struct {
	X, Y          float64
	Width, Height int
	LevelWidth    int
	LevelHeight   int
}

func (e *BoundsError) Error() string {
	if e.Width < 0 || e.Height < 0 {
		return fmt.Sprintf("size values must be non-negative, got (%d, %d)", e.Width, e.Height)
	}
	return fmt.Sprintf("requested region is outside level boundaries: (%g, %g) + (%d, %d) > (%d, %d)",
		e.X, e.Y, e.Width, e.Height, e.LevelWidth, e.LevelHeight)
}
