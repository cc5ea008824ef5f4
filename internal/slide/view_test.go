package slide

import (
	"image"
	"sync"
	"testing"

	"github.com/microscopy-io/slidekit/internal/backend"
)

func TestView_MPPAndSize(t *testing.T) {
	stub := newStubBackend(1000, 500, &backend.Spacing{X: 0.25, Y: 0.25})
	s := mustSlide(t, stub, Options{})

	v := s.ScaledView(0.5)
	if got := v.MPP(); got != 0.5 {
		t.Errorf("view MPP = %g, want 0.5", got)
	}
	if got := v.Size(); got != image.Pt(500, 250) {
		t.Errorf("view Size = %v, want (500, 250)", got)
	}
	if got := v.Scaling(); got != 0.5 {
		t.Errorf("view Scaling = %g, want 0.5", got)
	}
}

func TestView_ReadRegionDelegates(t *testing.T) {
	stub := newStubBackend(1000, 1000, &backend.Spacing{X: 0.25, Y: 0.25})
	s := mustSlide(t, stub, Options{})

	v := s.ScaledView(0.5)
	img, err := v.ReadRegion(100, 100, 50, 50)
	if err != nil {
		t.Fatalf("view ReadRegion failed: %v", err)
	}
	if img.Bounds().Dx() != 50 || img.Bounds().Dy() != 50 {
		t.Errorf("dimensions: got %v, want (50, 50)", img.Bounds().Size())
	}
	if stub.readCalls != 1 {
		t.Errorf("backend reads = %d, want 1", stub.readCalls)
	}

	// Out-of-bounds reads at the view's scaling fail before backend I/O.
	if _, err := v.ReadRegion(495, 0, 10, 10); err == nil {
		t.Error("view ReadRegion past the scaled edge should fail")
	}
	if stub.readCalls != 1 {
		t.Errorf("backend reads after rejected request = %d, want 1", stub.readCalls)
	}
}

func TestView_ConcurrentReads(t *testing.T) {
	stub := newStubBackend(1000, 1000, &backend.Spacing{X: 0.25, Y: 0.25})
	s := mustSlide(t, stub, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		v := s.ScaledView(0.5)
		wg.Add(1)
		go func(v *View, off float64) {
			defer wg.Done()
			if _, err := v.ReadRegion(off, off, 16, 16); err != nil {
				errs <- err
			}
		}(v, float64(i*8))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent view read failed: %v", err)
	}
}
