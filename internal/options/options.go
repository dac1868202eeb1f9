// Package options defines the effective compression options and the resolver
// that merges presets and user overrides into them.
package options

import (
	"errors"
	"fmt"
	"strings"

	"tinyme-go/internal/preset"
)

// ErrInvalidOption is returned when a field value is out of range.
var ErrInvalidOption = errors.New("invalid option")

// Format is the requested output encoding. The empty Format preserves the
// source format.
type Format string

const (
	FormatPreserve Format = ""
	FormatJPG      Format = "jpg"
	FormatPNG      Format = "png"
	FormatWebP     Format = "webp"
)

// ParseFormat accepts jpg, jpeg, png, webp (any case) or an empty string.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "":
		return FormatPreserve, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidOption, s)
	}
}

// Options is the value handed to the compression backend.
// MaxWidth and MaxHeight of 0 mean "no constraint on that axis".
// PresetID is set only while the options are exactly a preset's values.
type Options struct {
	Quality             int       `json:"quality" mapstructure:"quality"`
	MaxWidth            int       `json:"max_width,omitempty" mapstructure:"max_width"`
	MaxHeight           int       `json:"max_height,omitempty" mapstructure:"max_height"`
	Format              Format    `json:"format,omitempty" mapstructure:"format"`
	MaintainAspectRatio bool      `json:"maintain_aspect_ratio" mapstructure:"maintain_aspect_ratio"`
	PresetID            preset.ID `json:"preset_id,omitempty" mapstructure:"preset"`
}

// Default returns quality 80, no resize, source format, aspect ratio kept.
func Default() Options {
	return Options{
		Quality:             80,
		MaintainAspectRatio: true,
	}
}

// Validate checks field ranges.
func (o Options) Validate() error {
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("%w: quality %d out of range 1-100", ErrInvalidOption, o.Quality)
	}
	if o.MaxWidth < 0 {
		return fmt.Errorf("%w: max width %d must be positive", ErrInvalidOption, o.MaxWidth)
	}
	if o.MaxHeight < 0 {
		return fmt.Errorf("%w: max height %d must be positive", ErrInvalidOption, o.MaxHeight)
	}
	if _, err := ParseFormat(string(o.Format)); err != nil {
		return err
	}
	return nil
}

// String renders the options for log lines and CLI output.
func (o Options) String() string {
	dim := func(v int) string {
		if v <= 0 {
			return "-"
		}
		return fmt.Sprintf("%d", v)
	}
	format := string(o.Format)
	if format == "" {
		format = "source"
	}
	s := fmt.Sprintf("quality=%d max=%sx%s format=%s keep-aspect=%t",
		o.Quality, dim(o.MaxWidth), dim(o.MaxHeight), format, o.MaintainAspectRatio)
	if o.PresetID != "" {
		s += " preset=" + string(o.PresetID)
	}
	return s
}
