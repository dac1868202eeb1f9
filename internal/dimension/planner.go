// Package dimension computes the output size requested from the backend.
package dimension

import "math"

// Size is a pixel size. A zero axis means "unknown" for a source and
// "unconstrained" for a target.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Known reports whether both axes are positive.
func (s Size) Known() bool {
	return s.Width > 0 && s.Height > 0
}

// Plan is the outcome of Compute.
//
// When Deferred is set the source size was unknown: Width and Height carry the
// raw bounds and the backend applies the aspect policy itself.
type Plan struct {
	Resize              bool `json:"resize"`
	Width               int  `json:"width,omitempty"`
	Height              int  `json:"height,omitempty"`
	Deferred            bool `json:"deferred,omitempty"`
	MaintainAspectRatio bool `json:"maintain_aspect_ratio"`
}

// Target returns the planned size as a Size.
func (p Plan) Target() Size {
	return Size{Width: p.Width, Height: p.Height}
}

// Compute plans the output dimensions for src under the maxWidth/maxHeight
// bounds (0 = unconstrained). src may be the zero Size when unknown.
//
// With keepAspect the bounds are maxima and the image is never upscaled.
// Without it each bounded axis is an exact target, larger than src or not.
func Compute(src Size, maxWidth, maxHeight int, keepAspect bool) Plan {
	maxWidth, maxHeight = max(maxWidth, 0), max(maxHeight, 0)
	if maxWidth == 0 && maxHeight == 0 {
		return Plan{MaintainAspectRatio: keepAspect}
	}

	if !keepAspect {
		w, h := maxWidth, maxHeight
		if src.Known() {
			if w == 0 {
				w = src.Width
			}
			if h == 0 {
				h = src.Height
			}
		}
		return Plan{
			Resize:   !src.Known() || w != src.Width || h != src.Height,
			Width:    w,
			Height:   h,
			Deferred: !src.Known() && (w == 0 || h == 0),
		}
	}

	if !src.Known() {
		return Plan{
			Resize:              true,
			Width:               maxWidth,
			Height:              maxHeight,
			Deferred:            true,
			MaintainAspectRatio: true,
		}
	}

	scale := math.Inf(1)
	if maxWidth > 0 {
		scale = math.Min(scale, float64(maxWidth)/float64(src.Width))
	}
	if maxHeight > 0 {
		scale = math.Min(scale, float64(maxHeight)/float64(src.Height))
	}
	// bounds are maxima; never upscale
	scale = math.Min(scale, 1)

	w := clamp(int(math.Round(float64(src.Width) * scale)))
	h := clamp(int(math.Round(float64(src.Height) * scale)))
	return Plan{
		Resize:              w != src.Width || h != src.Height,
		Width:               w,
		Height:              h,
		MaintainAspectRatio: true,
	}
}

func clamp(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
