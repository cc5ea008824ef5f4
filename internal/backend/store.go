package backend

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zstd"
	_ "golang.org/x/image/tiff" // Register TIFF format decoder

	"github.com/microscopy-io/slidekit/internal/resample"
)

// MetadataFile is the index file a pyramid directory must contain.
const MetadataFile = "metadata.json"

// RawLevelExt marks a level stored as a zstd-compressed raw NRGBA plane
// instead of an encoded image file.
const RawLevelExt = ".nrgba.zst"

type storeLevel struct {
	Path       string  `json:"path"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Downsample float64 `json:"downsample"`
}

type storeBounds struct {
	Offset [2]int `json:"offset"`
	Size   [2]int `json:"size"`
}

type storeMetadata struct {
	FormatVersion string            `json:"format_version"`
	Dimensions    [2]int            `json:"dimensions"`
	SpacingUM     *[2]float64       `json:"spacing_um,omitempty"`
	Vendor        string            `json:"vendor,omitempty"`
	Magnification float64           `json:"magnification,omitempty"`
	ColorSpace    string            `json:"color_space,omitempty"`
	Bounds        *storeBounds      `json:"bounds,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
	Levels        []storeLevel      `json:"levels"`
}

// Store reads a pyramid directory: metadata.json plus one image file per
// level. Levels decode lazily and stay cached until Close.
type Store struct {
	dir     string
	meta    storeMetadata
	spacing *Spacing
	decoder *zstd.Decoder

	mu     sync.RWMutex
	levels map[int]*image.NRGBA
	closed bool

	closeOnce sync.Once
}

// OpenStore opens a pyramid directory and validates its index.
func OpenStore(dir string) (*Store, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("read %s: %w", MetadataFile, err)
	}

	var meta storeMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MetadataFile, err)
	}
	if err := validateMetadata(&meta); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", MetadataFile, err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	s := &Store{
		dir:     dir,
		meta:    meta,
		decoder: decoder,
		levels:  make(map[int]*image.NRGBA),
	}
	if meta.SpacingUM != nil {
		s.spacing = &Spacing{X: meta.SpacingUM[0], Y: meta.SpacingUM[1]}
	}
	return s, nil
}

func validateMetadata(meta *storeMetadata) error {
	if len(meta.Levels) == 0 {
		return fmt.Errorf("no levels")
	}
	if meta.Levels[0].Width != meta.Dimensions[0] || meta.Levels[0].Height != meta.Dimensions[1] {
		return fmt.Errorf("level 0 is %dx%d but dimensions declare %dx%d",
			meta.Levels[0].Width, meta.Levels[0].Height, meta.Dimensions[0], meta.Dimensions[1])
	}
	prev := 0.0
	for i, lvl := range meta.Levels {
		if lvl.Width <= 0 || lvl.Height <= 0 {
			return fmt.Errorf("level %d has empty dimensions", i)
		}
		if lvl.Downsample < 1 || lvl.Downsample <= prev {
			return fmt.Errorf("level %d downsample %g is not ascending from 1", i, lvl.Downsample)
		}
		prev = lvl.Downsample
	}
	return nil
}

// Dimensions returns the level-zero size.
func (s *Store) Dimensions() image.Point {
	return image.Pt(s.meta.Dimensions[0], s.meta.Dimensions[1])
}

// LevelCount returns the number of stored levels.
func (s *Store) LevelCount() int { return len(s.meta.Levels) }

// LevelDimensions returns per-level sizes, finest first.
func (s *Store) LevelDimensions() []image.Point {
	dims := make([]image.Point, len(s.meta.Levels))
	for i, lvl := range s.meta.Levels {
		dims[i] = image.Pt(lvl.Width, lvl.Height)
	}
	return dims
}

// LevelDownsamples returns per-level downsample factors.
func (s *Store) LevelDownsamples() []float64 {
	ds := make([]float64, len(s.meta.Levels))
	for i, lvl := range s.meta.Levels {
		ds[i] = lvl.Downsample
	}
	return ds
}

// LevelSpacings returns the per-level pixel pitch derived from the
// level-zero spacing and each level's downsample.
func (s *Store) LevelSpacings() []Spacing {
	spacings := make([]Spacing, len(s.meta.Levels))
	base, ok := s.Spacing()
	if !ok {
		return spacings
	}
	for i, lvl := range s.meta.Levels {
		spacings[i] = Spacing{X: base.X * lvl.Downsample, Y: base.Y * lvl.Downsample}
	}
	return spacings
}

// Spacing returns the level-zero pixel pitch, if known.
func (s *Store) Spacing() (Spacing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.spacing == nil {
		return Spacing{}, false
	}
	return *s.spacing, true
}

// SetSpacing overrides the level-zero pixel pitch.
func (s *Store) SetSpacing(sp Spacing) {
	s.mu.Lock()
	s.spacing = &sp
	s.mu.Unlock()
}

// Vendor returns the scanner vendor recorded in the index.
func (s *Store) Vendor() string { return s.meta.Vendor }

// Properties returns extra metadata recorded in the index.
func (s *Store) Properties() map[string]string { return s.meta.Properties }

// Magnification returns the objective power, or 0 when unknown.
func (s *Store) Magnification() float64 { return s.meta.Magnification }

// SlideBounds returns the recorded bounds, or the full image when absent.
func (s *Store) SlideBounds() Bounds {
	if s.meta.Bounds == nil {
		return Bounds{Size: s.Dimensions()}
	}
	return Bounds{
		Offset: image.Pt(s.meta.Bounds.Offset[0], s.meta.Bounds.Offset[1]),
		Size:   image.Pt(s.meta.Bounds.Size[0], s.meta.Bounds.Size[1]),
	}
}

// BestLevelForDownsample returns the level best suited for the factor.
func (s *Store) BestLevelForDownsample(factor float64) int {
	return BestLevelForDownsample(s.LevelDownsamples(), factor)
}

// ColorSpace declares how the stored samples are encoded.
func (s *Store) ColorSpace() resample.ColorSpace {
	return resample.ColorSpace(s.meta.ColorSpace)
}

// ReadRegion decodes a native window addressed by level-zero coordinates.
// Windows touching a level border are clipped to the stored pixels.
func (s *Store) ReadRegion(levelZeroLoc image.Point, level int, size image.Point) (*image.NRGBA, error) {
	if level < 0 || level >= len(s.meta.Levels) {
		return nil, fmt.Errorf("level %d out of range [0, %d)", level, len(s.meta.Levels))
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("read window must be positive, got %dx%d", size.X, size.Y)
	}

	img, err := s.levelImage(level)
	if err != nil {
		return nil, err
	}

	ds := s.meta.Levels[level].Downsample
	loc := image.Pt(
		int(math.Floor(float64(levelZeroLoc.X)/ds)),
		int(math.Floor(float64(levelZeroLoc.Y)/ds)),
	)
	rect := image.Rectangle{Min: loc, Max: loc.Add(size)}.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("window %v+%v lies outside level %d (%dx%d)",
			levelZeroLoc, size, level, s.meta.Levels[level].Width, s.meta.Levels[level].Height)
	}

	return imaging.Crop(img, rect), nil
}

// Thumbnail returns the slide fitted into the bounding size.
func (s *Store) Thumbnail(bounding image.Point) (*image.NRGBA, error) {
	if bounding.X <= 0 || bounding.Y <= 0 {
		return nil, fmt.Errorf("thumbnail bounds must be positive, got %dx%d", bounding.X, bounding.Y)
	}

	dims := s.Dimensions()
	factor := math.Max(float64(dims.X)/float64(bounding.X), float64(dims.Y)/float64(bounding.Y))
	level := s.BestLevelForDownsample(factor)

	img, err := s.levelImage(level)
	if err != nil {
		return nil, err
	}
	return imaging.Fit(img, bounding.X, bounding.Y, imaging.Lanczos), nil
}

// Close releases the level cache and the zstd decoder. Idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.levels = nil
		s.mu.Unlock()
		s.decoder.Close()
	})
	return nil
}

// levelImage returns the decoded buffer for a level, reading it from disk
// on first use.
func (s *Store) levelImage(level int) (*image.NRGBA, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("store is closed")
	}
	if img, ok := s.levels[level]; ok {
		s.mu.RUnlock()
		return img, nil
	}
	s.mu.RUnlock()

	lvl := s.meta.Levels[level]
	img, err := s.decodeLevel(lvl)
	if err != nil {
		return nil, fmt.Errorf("decode level %d: %w", level, err)
	}
	if img.Bounds().Dx() != lvl.Width || img.Bounds().Dy() != lvl.Height {
		return nil, fmt.Errorf("level %d file is %dx%d but index declares %dx%d",
			level, img.Bounds().Dx(), img.Bounds().Dy(), lvl.Width, lvl.Height)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	s.levels[level] = img
	return img, nil
}

func (s *Store) decodeLevel(lvl storeLevel) (*image.NRGBA, error) {
	path := filepath.Join(s.dir, lvl.Path)

	if strings.HasSuffix(lvl.Path, RawLevelExt) {
		compressed, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw, err := s.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		want := lvl.Width * lvl.Height * 4
		if len(raw) != want {
			return nil, fmt.Errorf("raw plane is %d bytes, expected %d", len(raw), want)
		}
		return &image.NRGBA{
			Pix:    raw,
			Stride: lvl.Width * 4,
			Rect:   image.Rect(0, 0, lvl.Width, lvl.Height),
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return imaging.Clone(img), nil
}
