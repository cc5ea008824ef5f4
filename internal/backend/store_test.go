package backend

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
)

// quadrantImage returns an image split into four solid quadrants:
// red, green, blue, white clockwise from the top-left.
func quadrantImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var c color.NRGBA
			switch {
			case x < w/2 && y < h/2:
				c = color.NRGBA{255, 0, 0, 255}
			case x >= w/2 && y < h/2:
				c = color.NRGBA{0, 255, 0, 255}
			case x < w/2:
				c = color.NRGBA{0, 0, 255, 255}
			default:
				c = color.NRGBA{255, 255, 255, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func buildTestStore(t *testing.T, w, h int, opts BuildOptions) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "slide.pyr")
	if err := BuildStore(quadrantImage(w, h), dir, opts); err != nil {
		t.Fatalf("BuildStore failed: %v", err)
	}
	s, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBestLevelForDownsample(t *testing.T) {
	downsamples := []float64{1, 2, 4, 8}

	tests := []struct {
		factor float64
		want   int
	}{
		{0.5, 0},
		{1, 0},
		{1.9, 0},
		{2, 1},
		{3, 1},
		{4, 2},
		{100, 3},
	}

	for _, tt := range tests {
		if got := BestLevelForDownsample(downsamples, tt.factor); got != tt.want {
			t.Errorf("BestLevelForDownsample(%v) = %d, want %d", tt.factor, got, tt.want)
		}
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(t.TempDir(), "openslide")
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open with unknown backend name: got %v, want ErrUnknownBackend", err)
	}
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	_, err := Open(t.TempDir(), "")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Open on an empty directory: got %v, want ErrUnsupportedFormat", err)
	}
}

func TestStore_BuildAndOpen(t *testing.T) {
	sp := Spacing{X: 0.25, Y: 0.25}
	s := buildTestStore(t, 512, 512, BuildOptions{
		Spacing:       &sp,
		Vendor:        "synthetic",
		Magnification: 40,
		MinLevelSize:  128,
		Properties:    map[string]string{"scanner.id": "test-1"},
	})

	if got := s.Dimensions(); got != image.Pt(512, 512) {
		t.Errorf("Dimensions = %v, want (512, 512)", got)
	}
	if got := s.LevelCount(); got != 3 {
		t.Fatalf("LevelCount = %d, want 3 (512, 256, 128)", got)
	}

	wantDims := []image.Point{image.Pt(512, 512), image.Pt(256, 256), image.Pt(128, 128)}
	for i, want := range wantDims {
		if got := s.LevelDimensions()[i]; got != want {
			t.Errorf("level %d dimensions = %v, want %v", i, got, want)
		}
	}
	wantDs := []float64{1, 2, 4}
	for i, want := range wantDs {
		if got := s.LevelDownsamples()[i]; got != want {
			t.Errorf("level %d downsample = %v, want %v", i, got, want)
		}
	}

	if got, ok := s.Spacing(); !ok || got != sp {
		t.Errorf("Spacing = %v, %v, want %v, true", got, ok, sp)
	}
	if got := s.LevelSpacings()[2]; got != (Spacing{X: 1, Y: 1}) {
		t.Errorf("level 2 spacing = %v, want (1, 1)", got)
	}
	if s.Vendor() != "synthetic" || s.Magnification() != 40 {
		t.Errorf("metadata: vendor=%q magnification=%v", s.Vendor(), s.Magnification())
	}
	if got := s.Properties()["scanner.id"]; got != "test-1" {
		t.Errorf("Properties[scanner.id] = %q, want test-1", got)
	}
	if got := s.SlideBounds(); got.Offset != image.Pt(0, 0) || got.Size != image.Pt(512, 512) {
		t.Errorf("SlideBounds without recorded bounds = %+v, want full image", got)
	}
}

func TestStore_ReadRegion(t *testing.T) {
	s := buildTestStore(t, 512, 512, BuildOptions{MinLevelSize: 128})

	tests := []struct {
		name         string
		levelZeroLoc image.Point
		level        int
		size         image.Point
		want         color.NRGBA
	}{
		{"level 0 top-left", image.Pt(10, 10), 0, image.Pt(20, 20), color.NRGBA{255, 0, 0, 255}},
		{"level 0 bottom-right", image.Pt(400, 400), 0, image.Pt(20, 20), color.NRGBA{255, 255, 255, 255}},
		{"level 1 top-right", image.Pt(300, 40), 1, image.Pt(10, 10), color.NRGBA{0, 255, 0, 255}},
		{"level 2 bottom-left", image.Pt(40, 300), 2, image.Pt(10, 10), color.NRGBA{0, 0, 255, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := s.ReadRegion(tt.levelZeroLoc, tt.level, tt.size)
			if err != nil {
				t.Fatalf("ReadRegion failed: %v", err)
			}
			if img.Bounds().Dx() != tt.size.X || img.Bounds().Dy() != tt.size.Y {
				t.Fatalf("window size: got %v, want %v", img.Bounds().Size(), tt.size)
			}
			if got := img.NRGBAAt(img.Bounds().Min.X+tt.size.X/2, img.Bounds().Min.Y+tt.size.Y/2); got != tt.want {
				t.Errorf("center pixel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_ReadRegionClipsAtBorder(t *testing.T) {
	s := buildTestStore(t, 100, 100, BuildOptions{MinLevelSize: 100})

	// A window overlapping the level edge delivers only the stored pixels.
	img, err := s.ReadRegion(image.Pt(95, 95), 0, image.Pt(10, 10))
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	if img.Bounds().Dx() != 5 || img.Bounds().Dy() != 5 {
		t.Errorf("clipped window: got %v, want 5x5", img.Bounds().Size())
	}
}

func TestStore_ReadRegionErrors(t *testing.T) {
	s := buildTestStore(t, 100, 100, BuildOptions{MinLevelSize: 100})

	if _, err := s.ReadRegion(image.Pt(0, 0), 5, image.Pt(10, 10)); err == nil {
		t.Error("ReadRegion should fail for an out-of-range level")
	}
	if _, err := s.ReadRegion(image.Pt(0, 0), 0, image.Pt(0, 10)); err == nil {
		t.Error("ReadRegion should fail for an empty window")
	}
	if _, err := s.ReadRegion(image.Pt(200, 200), 0, image.Pt(10, 10)); err == nil {
		t.Error("ReadRegion should fail for a window outside the level")
	}
}

func TestStore_RawLevels(t *testing.T) {
	s := buildTestStore(t, 64, 64, BuildOptions{MinLevelSize: 64, RawLevels: true})

	img, err := s.ReadRegion(image.Pt(0, 0), 0, image.Pt(64, 64))
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	if got := img.NRGBAAt(img.Bounds().Min.X+8, img.Bounds().Min.Y+8); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("raw level pixel = %v, want red", got)
	}
}

func TestStore_Thumbnail(t *testing.T) {
	s := buildTestStore(t, 512, 256, BuildOptions{MinLevelSize: 64})

	thumb, err := s.Thumbnail(image.Pt(128, 128))
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	// Aspect ratio preserved within the bounding box.
	if thumb.Bounds().Dx() != 128 || thumb.Bounds().Dy() != 64 {
		t.Errorf("thumbnail: got %v, want 128x64", thumb.Bounds().Size())
	}
}

func TestStore_SetSpacing(t *testing.T) {
	s := buildTestStore(t, 64, 64, BuildOptions{MinLevelSize: 64})

	if _, ok := s.Spacing(); ok {
		t.Fatal("store built without spacing should report none")
	}
	s.SetSpacing(Spacing{X: 0.5, Y: 0.5})
	if got, ok := s.Spacing(); !ok || got.Avg() != 0.5 {
		t.Errorf("Spacing after override = %v, %v", got, ok)
	}
}

func TestStore_CloseStopsReads(t *testing.T) {
	s := buildTestStore(t, 64, 64, BuildOptions{MinLevelSize: 64})

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := s.ReadRegion(image.Pt(0, 0), 0, image.Pt(10, 10)); err == nil {
		t.Error("ReadRegion should fail after Close")
	}
}

func TestStore_ConcurrentReads(t *testing.T) {
	s := buildTestStore(t, 256, 256, BuildOptions{MinLevelSize: 64})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			level := i % s.LevelCount()
			_, err := s.ReadRegion(image.Pt(8*i, 8*i), level, image.Pt(8, 8))
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent ReadRegion failed: %v", err)
	}
}
