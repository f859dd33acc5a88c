package volume

import "math"

// AngleSet is the ordered sequence of rotation angles, one per
// projection index.
//
// Units are inferred on first use: if the maximum value exceeds 90 the
// values are taken to be degrees and converted to radians; otherwise
// they are treated as already being radians. The conversion happens at
// most once per AngleSet, so repeated Radians calls are safe.
type AngleSet struct {
	values    []float64
	converted bool
}

// NewAngles copies vals into a new angle set.
func NewAngles(vals []float64) *AngleSet {
	v := make([]float64, len(vals))
	copy(v, vals)
	return &AngleSet{values: v}
}

// UniformAngles returns n angles evenly spaced over [0, 180) degrees,
// the usual acquisition pattern for parallel-beam scans.
func UniformAngles(n int) *AngleSet {
	v := make([]float64, n)
	for i := range v {
		v[i] = 180 * float64(i) / float64(n)
	}
	return &AngleSet{values: v}
}

// Len returns the number of angles.
func (a *AngleSet) Len() int {
	return len(a.values)
}

// Radians returns the angles in radians, converting from degrees
// exactly once if the maximum raw value exceeds 90.
//
// The returned slice is the set's backing storage and must be treated
// as read-only.
func (a *AngleSet) Radians() []float64 {
	if a.converted {
		return a.values
	}
	maxVal := math.Inf(-1)
	for _, v := range a.values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal > 90 {
		for i := range a.values {
			a.values[i] *= math.Pi / 180
		}
	}
	a.converted = true
	return a.values
}

// Values returns a copy of the angles in their current unit.
func (a *AngleSet) Values() []float64 {
	v := make([]float64, len(a.values))
	copy(v, a.values)
	return v
}
