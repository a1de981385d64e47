package chart

import "fmt"

// Linear is an affine map from a numeric domain onto a pixel range.
// It is a value type: deriving a rescaled copy never mutates the base scale.
type Linear struct {
	d0, d1 float64 // domain bounds
	r0, r1 float64 // range bounds (pixel space; may be inverted for Y)
}

// NewLinear builds a linear scale mapping [d0,d1] onto [r0,r1].
func NewLinear(d0, d1, r0, r1 float64) Linear {
	return Linear{d0: d0, d1: d1, r0: r0, r1: r1}
}

// Apply maps a domain value to pixel space.
func (s Linear) Apply(v float64) float64 {
	span := s.d1 - s.d0
	if span == 0 {
		return s.r0
	}
	return s.r0 + (v-s.d0)/span*(s.r1-s.r0)
}

// Invert maps a pixel value back to the domain.
func (s Linear) Invert(p float64) float64 {
	span := s.r1 - s.r0
	if span == 0 {
		return s.d0
	}
	return s.d0 + (p-s.r0)/span*(s.d1-s.d0)
}

// Domain returns the scale's domain bounds.
func (s Linear) Domain() (float64, float64) { return s.d0, s.d1 }

// Range returns the scale's range bounds.
func (s Linear) Range() (float64, float64) { return s.r0, s.r1 }

// RescaleX returns a copy of the scale whose domain is shifted and stretched
// by the transform's horizontal pan and zoom, leaving the pixel range fixed.
// A pixel p on the rescaled scale shows what (p - translateX) / scale showed
// on the base scale.
func (s Linear) RescaleX(t Transform) Linear {
	k := t.Scale
	if k == 0 {
		k = 1
	}
	return Linear{
		d0: s.Invert((s.r0 - t.TranslateX) / k),
		d1: s.Invert((s.r1 - t.TranslateX) / k),
		r0: s.r0,
		r1: s.r1,
	}
}

// RescaleY is the vertical counterpart of RescaleX.
func (s Linear) RescaleY(t Transform) Linear {
	k := t.Scale
	if k == 0 {
		k = 1
	}
	return Linear{
		d0: s.Invert((s.r0 - t.TranslateY) / k),
		d1: s.Invert((s.r1 - t.TranslateY) / k),
		r0: s.r0,
		r1: s.r1,
	}
}

// Transform is the pan/zoom gesture state relative to a 1:1 base mapping.
type Transform struct {
	TranslateX float64
	TranslateY float64
	Scale      float64
}

// Identity returns the no-pan, no-zoom transform.
func Identity() Transform {
	return Transform{Scale: 1}
}

// IsIdentity reports whether the transform leaves the base mapping unchanged.
func (t Transform) IsIdentity() bool {
	return t.TranslateX == 0 && t.TranslateY == 0 && t.Scale == 1
}

// String renders the transform in SVG attribute form, which is what the
// browser surface applies to its mark group.
func (t Transform) String() string {
	k := t.Scale
	if k == 0 {
		k = 1
	}
	return fmt.Sprintf("translate(%.2f,%.2f) scale(%.2f)", t.TranslateX, t.TranslateY, k)
}
