package backend

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zstd"

	"github.com/microscopy-io/slidekit/internal/resample"
)

// BuildOptions controls pyramid store generation.
type BuildOptions struct {
	// Spacing records the level-zero pixel pitch, if known.
	Spacing *Spacing

	// Vendor, Magnification, Properties and Bounds are copied into the
	// index verbatim.
	Vendor        string
	Magnification float64
	Properties    map[string]string
	Bounds        *Bounds

	// ColorSpace declares how the source samples are encoded.
	ColorSpace resample.ColorSpace

	// MinLevelSize stops level generation once both axes fit within it.
	// Defaults to 256.
	MinLevelSize int

	// RawLevels stores levels as zstd-compressed raw NRGBA planes instead
	// of PNG files. Raw planes decode faster but take more disk.
	RawLevels bool
}

// BuildStore writes a pyramid directory for src, halving the resolution per
// level until both axes fit within MinLevelSize.
func BuildStore(src image.Image, dir string, opts BuildOptions) error {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("source image is empty")
	}
	minSize := opts.MinLevelSize
	if minSize <= 0 {
		minSize = 256
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	meta := storeMetadata{
		FormatVersion: "1",
		Dimensions:    [2]int{w, h},
		Vendor:        opts.Vendor,
		Magnification: opts.Magnification,
		ColorSpace:    string(opts.ColorSpace),
		Properties:    opts.Properties,
	}
	if opts.Spacing != nil {
		meta.SpacingUM = &[2]float64{opts.Spacing.X, opts.Spacing.Y}
	}
	if opts.Bounds != nil {
		meta.Bounds = &storeBounds{
			Offset: [2]int{opts.Bounds.Offset.X, opts.Bounds.Offset.Y},
			Size:   [2]int{opts.Bounds.Size.X, opts.Bounds.Size.Y},
		}
	}

	var encoder *zstd.Encoder
	if opts.RawLevels {
		var err error
		encoder, err = zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		defer encoder.Close()
	}

	level := imaging.Clone(src)
	for i := 0; ; i++ {
		lw := level.Bounds().Dx()
		lh := level.Bounds().Dy()

		name := fmt.Sprintf("level_%d", i)
		if opts.RawLevels {
			name += RawLevelExt
		} else {
			name += ".png"
		}
		if err := writeLevel(filepath.Join(dir, name), level, encoder); err != nil {
			return fmt.Errorf("write level %d: %w", i, err)
		}
		// Derive the downsample from the actual dimensions; halving odd
		// sizes drifts away from exact powers of two.
		meta.Levels = append(meta.Levels, storeLevel{
			Path:       name,
			Width:      lw,
			Height:     lh,
			Downsample: (float64(w)/float64(lw) + float64(h)/float64(lh)) / 2,
		})

		if lw/2 < 1 || lh/2 < 1 || (lw <= minSize && lh <= minSize) {
			break
		}
		level = imaging.Clone(transform.Resize(level, lw/2, lh/2, transform.Lanczos))
	}

	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", MetadataFile, err)
	}
	return nil
}

func writeLevel(path string, img *image.NRGBA, encoder *zstd.Encoder) error {
	if encoder != nil {
		raw := make([]byte, 0, len(img.Pix))
		// NRGBA buffers from imaging are tightly packed at the origin, so
		// Pix can be compressed as one plane.
		raw = encoder.EncodeAll(img.Pix, raw)
		return os.WriteFile(path, raw, 0o644)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
