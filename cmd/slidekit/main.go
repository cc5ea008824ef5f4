package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/disintegration/imaging"

	"github.com/microscopy-io/slidekit/internal/backend"
	"github.com/microscopy-io/slidekit/internal/config"
	"github.com/microscopy-io/slidekit/internal/resample"
	"github.com/microscopy-io/slidekit/internal/server"
	"github.com/microscopy-io/slidekit/internal/slide"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `slidekit - whole-slide image toolkit

Usage: slidekit <command> [options]

Commands:
  info       Print slide metadata and pyramid layout
  region     Extract a region at an arbitrary scaling
  thumbnail  Generate a slide thumbnail
  build      Build a pyramid store from a plain image
  serve      Run the MCP tool server over stdin/stdout

Options:
  --version, -v    Print version information
  --help, -h       Print this help message

Run 'slidekit <command> -h' for command-specific options.
`

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("slidekit %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		fmt.Print(usage)
		return
	}

	var err error
	switch os.Args[1] {
	case "info":
		err = runInfo(os.Args[2:])
	case "region":
		err = runRegion(os.Args[2:])
	case "thumbnail":
		err = runThumbnail(os.Args[2:])
	case "build":
		err = runBuild(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		fmt.Print(usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// slideFlags holds the open options shared by the slide-reading commands.
type slideFlags struct {
	backend string
	mppX    float64
	mppY    float64
	kernel  string
	pipe    string
	color   bool
}

func (f *slideFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.backend, "backend", "", "backend name (empty auto-detects)")
	fs.Float64Var(&f.mppX, "mpp-x", 0, "override spacing X in microns per pixel")
	fs.Float64Var(&f.mppY, "mpp-y", 0, "override spacing Y in microns per pixel")
	fs.StringVar(&f.kernel, "kernel", "lanczos", "interpolation kernel: lanczos or nearest")
	fs.StringVar(&f.pipe, "pipeline", "box", "resampling pipeline: box or crop")
	fs.BoolVar(&f.color, "srgb", false, "normalize output regions to sRGB")
}

func (f *slideFlags) options() (slide.Options, error) {
	kernel, err := resample.ParseKernel(f.kernel)
	if err != nil {
		return slide.Options{}, err
	}
	pipeline, err := resample.ParsePipeline(f.pipe)
	if err != nil {
		return slide.Options{}, err
	}
	opts := slide.Options{
		Backend:           f.backend,
		Kernel:            kernel,
		Pipeline:          pipeline,
		ApplyColorProfile: f.color,
	}
	if f.mppX > 0 && f.mppY > 0 {
		opts.OverwriteMPP = &backend.Spacing{X: f.mppX, Y: f.mppY}
	}
	return opts, nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	var sf slideFlags
	sf.register(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: slidekit info [options] <slide>")
	}

	opts, err := sf.options()
	if err != nil {
		return err
	}
	return slide.With(fs.Arg(0), opts, func(s *slide.Slide) error {
		size := s.Size()
		fmt.Printf("identifier:    %s\n", s.Identifier())
		fmt.Printf("dimensions:    %d x %d\n", size.X, size.Y)
		fmt.Printf("mpp:           %g\n", s.MPP())
		if mag := s.Magnification(); mag > 0 {
			fmt.Printf("magnification: %g\n", mag)
		}
		if vendor := s.Vendor(); vendor != "" {
			fmt.Printf("vendor:        %s\n", vendor)
		}
		dims := s.LevelDimensions()
		downs := s.LevelDownsamples()
		fmt.Printf("levels:        %d\n", s.LevelCount())
		for i, d := range dims {
			fmt.Printf("  level %d: %d x %d (downsample %g)\n", i, d.X, d.Y, downs[i])
		}
		for k, v := range s.Properties() {
			fmt.Printf("property %s: %s\n", k, v)
		}
		return nil
	})
}

func runRegion(args []string) error {
	fs := flag.NewFlagSet("region", flag.ExitOnError)
	var sf slideFlags
	sf.register(fs)
	x := fs.Float64("x", 0, "left edge at the requested scaling (may be fractional)")
	y := fs.Float64("y", 0, "top edge at the requested scaling (may be fractional)")
	scaling := fs.Float64("scaling", 1.0, "scaling relative to level zero")
	mpp := fs.Float64("mpp", 0, "target microns per pixel; overrides -scaling when set")
	width := fs.Int("width", 0, "output width in pixels")
	height := fs.Int("height", 0, "output height in pixels")
	out := fs.String("out", "region.png", "output image path")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: slidekit region [options] <slide>")
	}
	if *width <= 0 || *height <= 0 {
		return fmt.Errorf("-width and -height must be positive")
	}

	opts, err := sf.options()
	if err != nil {
		return err
	}
	return slide.With(fs.Arg(0), opts, func(s *slide.Slide) error {
		sc := *scaling
		if *mpp > 0 {
			sc = s.ScalingForMPP(*mpp)
		}
		img, err := s.ReadRegion(*x, *y, sc, *width, *height)
		if err != nil {
			return err
		}
		if err := imaging.Save(img, *out); err != nil {
			return err
		}
		log.Printf("wrote %dx%d region at scaling %g (%.4g um/px) to %s",
			*width, *height, sc, s.MPPAt(sc), *out)
		return nil
	})
}

func runThumbnail(args []string) error {
	fs := flag.NewFlagSet("thumbnail", flag.ExitOnError)
	var sf slideFlags
	sf.register(fs)
	width := fs.Int("width", 512, "maximum thumbnail width")
	height := fs.Int("height", 512, "maximum thumbnail height")
	out := fs.String("out", "thumbnail.png", "output image path")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: slidekit thumbnail [options] <slide>")
	}

	opts, err := sf.options()
	if err != nil {
		return err
	}
	return slide.With(fs.Arg(0), opts, func(s *slide.Slide) error {
		img, err := s.Thumbnail(image.Pt(*width, *height))
		if err != nil {
			return err
		}
		if err := imaging.Save(img, *out); err != nil {
			return err
		}
		log.Printf("wrote %dx%d thumbnail to %s", img.Bounds().Dx(), img.Bounds().Dy(), *out)
		return nil
	})
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	mppX := fs.Float64("mpp-x", 0, "spacing X in microns per pixel")
	mppY := fs.Float64("mpp-y", 0, "spacing Y in microns per pixel")
	vendor := fs.String("vendor", "", "scanner vendor recorded in the store")
	mag := fs.Float64("magnification", 0, "objective power recorded in the store")
	minLevel := fs.Int("min-level", 256, "stop the pyramid when a level fits within this size")
	raw := fs.Bool("raw", false, "store levels as zstd-compressed raw pixels instead of PNG")
	out := fs.String("out", "", "output store directory (required)")
	fs.Parse(args)
	if fs.NArg() != 1 || *out == "" {
		return fmt.Errorf("usage: slidekit build -out <dir> [options] <image>")
	}

	src, err := imaging.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("open source image: %w", err)
	}

	buildOpts := backend.BuildOptions{
		Vendor:        *vendor,
		Magnification: *mag,
		MinLevelSize:  *minLevel,
		RawLevels:     *raw,
	}
	if *mppX > 0 && *mppY > 0 {
		buildOpts.Spacing = &backend.Spacing{X: *mppX, Y: *mppY}
	}
	if err := backend.BuildStore(src, *out, buildOpts); err != nil {
		return err
	}
	b := src.Bounds()
	log.Printf("built pyramid store for %dx%d image at %s", b.Dx(), b.Dy(), *out)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "slidekit.yaml", "configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol; logging already goes to stderr.
	srv := server.New(cfg)
	return srv.Run()
}
