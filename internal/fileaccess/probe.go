package fileaccess

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"

	"tinyme-go/internal/dimension"
)

// ImageInfo describes a source image without decoding its pixels.
type ImageInfo struct {
	Path   string         `json:"path"`
	Format string         `json:"format"`
	Stored dimension.Size `json:"stored"`
	// Display is Stored with axes swapped for EXIF orientations 5-8.
	Display     dimension.Size `json:"display"`
	Orientation int            `json:"orientation,omitempty"`
	Size        int64          `json:"size"`
}

// Prober reads image headers and caches results by path, size and mtime.
type Prober struct {
	cache sync.Map
}

// NewProber creates a Prober.
func NewProber() *Prober {
	return &Prober{}
}

// Probe returns header information for path.
func (p *Prober) Probe(path string) (ImageInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	key := fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())
	if v, ok := p.cache.Load(key); ok {
		return v.(ImageInfo), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode header: %w", err)
	}

	out := ImageInfo{
		Path:        path,
		Format:      format,
		Stored:      dimension.Size{Width: cfg.Width, Height: cfg.Height},
		Orientation: 1,
		Size:        info.Size(),
	}
	if format == "jpeg" {
		if o, err := readOrientation(f); err == nil {
			out.Orientation = o
		}
	}
	out.Display = out.Stored
	if out.Orientation >= 5 && out.Orientation <= 8 {
		out.Display = dimension.Size{Width: cfg.Height, Height: cfg.Width}
	}

	p.cache.Store(key, out)
	return out, nil
}

// readOrientation reads the EXIF orientation tag from the start of f.
func readOrientation(f *os.File) (int, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return 0, err
	}
	x, err := exif.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("failed to decode EXIF: %w", err)
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0, err
	}
	return tag.Int(0)
}
