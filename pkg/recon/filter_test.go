package recon

import (
	"errors"
	"math"
	"testing"
)

// TestRampFilterShape checks the band-limited ramp: symmetric across
// the Nyquist fold, positive DC term, and close to |omega| away from
// the origin.
func TestRampFilterShape(t *testing.T) {
	const n = 64
	filt, err := rampFilter(n, FilterRamp)
	if err != nil {
		t.Fatalf("rampFilter failed: %v", err)
	}

	if filt[0] <= 0 {
		t.Errorf("Expected a positive DC term, got %v", filt[0])
	}
	for k := 1; k < n/2; k++ {
		if math.Abs(filt[k]-filt[n-k]) > 1e-12 {
			t.Errorf("Bin %d: expected symmetry, got %v vs %v", k, filt[k], filt[n-k])
		}
	}
	// Away from DC the band-limited kernel tracks the ideal ramp.
	for k := 4; k <= n/2; k++ {
		want := float64(k) / float64(n)
		if math.Abs(filt[k]-want) > 0.02 {
			t.Errorf("Bin %d: ramp value %v too far from |omega| = %v", k, filt[k], want)
		}
	}
}

// TestFilterWindows checks the windowed variants attenuate relative
// to the plain ramp and that None is flat unity.
func TestFilterWindows(t *testing.T) {
	const n = 32
	ramp, _ := rampFilter(n, FilterRamp)

	for _, f := range []Filter{FilterShepp, FilterCosine, FilterHamming, FilterHann} {
		filt, err := rampFilter(n, f)
		if err != nil {
			t.Fatalf("Filter %q failed: %v", f, err)
		}
		for k := 1; k <= n/2; k++ {
			if filt[k] > ramp[k]+1e-12 {
				t.Errorf("Filter %q bin %d: %v exceeds the plain ramp %v", f, k, filt[k], ramp[k])
			}
		}
	}

	// Hann closes the band entirely at Nyquist.
	hann, _ := rampFilter(n, FilterHann)
	if math.Abs(hann[n/2]) > 1e-12 {
		t.Errorf("Expected the hann filter to vanish at Nyquist, got %v", hann[n/2])
	}

	none, _ := rampFilter(n, FilterNone)
	for k, v := range none {
		if v != 1 {
			t.Fatalf("Bin %d: expected unity for FilterNone, got %v", k, v)
		}
	}

	if _, err := rampFilter(n, Filter("parzen")); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("Expected ErrUnknownFilter, got %v", err)
	}
}

// TestBesselI0 spot-checks the polynomial fit against reference
// values of the modified Bessel function.
func TestBesselI0(t *testing.T) {
	cases := []struct{ x, want float64 }{
		{0, 1},
		{1, 1.2660658777520084},
		{2.5, 3.2898391440501231},
		{5, 27.239871823604442},
	}
	for _, c := range cases {
		if got := besselI0(c.x); math.Abs(got-c.want) > 1e-6*c.want {
			t.Errorf("besselI0(%g) = %.10f, want %.10f", c.x, got, c.want)
		}
	}
}

// TestKBKernelProperties checks support, symmetry and unit mass of the
// gridding kernel.
func TestKBKernelProperties(t *testing.T) {
	k := newKBKernel(4, 2.0)

	if k.At(2.0) != 0 || k.At(-2.0) != 0 {
		t.Errorf("Kernel must vanish at the support edge, got %v and %v", k.At(2.0), k.At(-2.0))
	}
	for _, x := range []float64{0.3, 0.9, 1.7} {
		if math.Abs(k.At(x)-k.At(-x)) > 1e-12 {
			t.Errorf("Kernel asymmetric at %g: %v vs %v", x, k.At(x), k.At(-x))
		}
	}

	mass := 0.0
	for j := -2; j <= 2; j++ {
		mass += k.At(float64(j))
	}
	if math.Abs(mass-1) > 1e-12 {
		t.Errorf("Expected unit integer-sampled mass, got %v", mass)
	}

	// Deapodization at the image center is the reciprocal of the
	// kernel's DC response, which is the (unit) mass.
	d := k.Deapodization([]float64{0}, 128)
	if math.Abs(d[0]-1) > 1e-12 {
		t.Errorf("Expected unit deapodization at the center, got %v", d[0])
	}
}
