package options

import (
	"fmt"

	"tinyme-go/internal/preset"
)

// Field names an individually editable option.
type Field string

const (
	FieldQuality             Field = "quality"
	FieldMaxWidth            Field = "max_width"
	FieldMaxHeight           Field = "max_height"
	FieldFormat              Field = "format"
	FieldMaintainAspectRatio Field = "maintain_aspect_ratio"
)

// Override replaces exactly one field. Build one with Quality, MaxWidth,
// MaxHeight, WithFormat or MaintainAspectRatio.
type Override struct {
	Field Field
	apply func(*Options) error
}

// Quality overrides the encoder quality (1-100).
func Quality(q int) Override {
	return Override{Field: FieldQuality, apply: func(o *Options) error {
		if q < 1 || q > 100 {
			return fmt.Errorf("%w: quality %d out of range 1-100", ErrInvalidOption, q)
		}
		o.Quality = q
		return nil
	}}
}

// MaxWidth overrides the width bound; 0 removes it.
func MaxWidth(w int) Override {
	return Override{Field: FieldMaxWidth, apply: func(o *Options) error {
		if w < 0 {
			return fmt.Errorf("%w: max width %d must be positive", ErrInvalidOption, w)
		}
		o.MaxWidth = w
		return nil
	}}
}

// MaxHeight overrides the height bound; 0 removes it.
func MaxHeight(h int) Override {
	return Override{Field: FieldMaxHeight, apply: func(o *Options) error {
		if h < 0 {
			return fmt.Errorf("%w: max height %d must be positive", ErrInvalidOption, h)
		}
		o.MaxHeight = h
		return nil
	}}
}

// WithFormat overrides the output format; FormatPreserve keeps the source format.
func WithFormat(f Format) Override {
	return Override{Field: FieldFormat, apply: func(o *Options) error {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return err
		}
		o.Format = parsed
		return nil
	}}
}

// MaintainAspectRatio overrides the aspect ratio policy.
func MaintainAspectRatio(keep bool) Override {
	return Override{Field: FieldMaintainAspectRatio, apply: func(o *Options) error {
		o.MaintainAspectRatio = keep
		return nil
	}}
}

// ApplyPreset returns a copy of current with every preset field copied in and
// PresetID set.
func ApplyPreset(current Options, id preset.ID) (Options, error) {
	p, err := preset.Resolve(id)
	if err != nil {
		return current, err
	}
	next := current
	next.Quality = p.Quality
	next.MaxWidth = p.MaxWidth
	next.MaxHeight = p.MaxHeight
	next.Format = Format(p.Format)
	next.MaintainAspectRatio = p.MaintainAspectRatio
	next.PresetID = p.ID
	return next, nil
}

// ApplyOverride returns a copy of current with one field replaced and the
// preset detached. Detachment happens even when the value equals the preset's.
func ApplyOverride(current Options, ov Override) (Options, error) {
	if ov.apply == nil {
		return current, fmt.Errorf("%w: empty override", ErrInvalidOption)
	}
	next := current
	if err := ov.apply(&next); err != nil {
		return current, err
	}
	next.PresetID = ""
	return next, nil
}

// Resolve merges base, an optional preset and explicit overrides, in that order.
func Resolve(base Options, id preset.ID, overrides ...Override) (Options, error) {
	out := base
	if id != "" {
		var err error
		if out, err = ApplyPreset(out, id); err != nil {
			return base, err
		}
	}
	for _, ov := range overrides {
		var err error
		if out, err = ApplyOverride(out, ov); err != nil {
			return base, fmt.Errorf("override %s: %w", ov.Field, err)
		}
	}
	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}
