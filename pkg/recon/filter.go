package recon

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Filter names the radial apodization applied to each frequency spoke
// before gridding. All variants sit on top of the band-limited ramp
// that compensates the polar sampling density; None skips filtering
// entirely and is only useful for diagnostics.
type Filter string

const (
	FilterRamp    Filter = "ramp"
	FilterShepp   Filter = "shepp"
	FilterCosine  Filter = "cosine"
	FilterHamming Filter = "hamming"
	FilterHann    Filter = "hann"
	FilterNone    Filter = "none"
)

// rampFilter returns the n-point radial filter sampled at DFT bin k,
// indexed 0..n-1 with the usual wrap-around frequency layout.
//
// The ramp values come from the DFT of the band-limited spatial ramp
// kernel (h[0]=1/4, h[odd n]=-1/(pi*n)^2, h[even n]=0) rather than
// from |k|/n directly, which keeps the DC term positive and the
// reconstruction mean intact.
func rampFilter(n int, f Filter) ([]float64, error) {
	switch f {
	case FilterRamp, FilterShepp, FilterCosine, FilterHamming, FilterHann, FilterNone:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, f)
	}

	h := make([]float64, n)
	h[0] = 0.25
	for i := 1; i <= n/2; i++ {
		if i%2 == 1 {
			v := -1 / (math.Pi * math.Pi * float64(i) * float64(i))
			h[i] = v
			h[n-i] = v
		}
	}
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, h)

	filt := make([]float64, n)
	for k := range filt {
		kk := k
		if kk > n/2 {
			kk = n - kk
		}
		// Symmetric real kernel: coefficients are real to rounding.
		ramp := real(coeffs[kk])
		if f == FilterNone {
			filt[k] = 1
			continue
		}
		// Fractional frequency in [0, 1] of the Nyquist band.
		x := 2 * float64(kk) / float64(n)
		filt[k] = ramp * window(f, x)
	}
	return filt, nil
}

// window evaluates the apodization factor at fractional frequency
// x in [0, 1] (1 = Nyquist).
func window(f Filter, x float64) float64 {
	switch f {
	case FilterShepp:
		if x == 0 {
			return 1
		}
		a := math.Pi * x / 2
		return math.Sin(a) / a
	case FilterCosine:
		return math.Cos(math.Pi * x / 2)
	case FilterHamming:
		return 0.54 + 0.46*math.Cos(math.Pi*x)
	case FilterHann:
		return 0.5 * (1 + math.Cos(math.Pi*x))
	default:
		return 1
	}
}

// kbKernel is the compact-support Kaiser-Bessel interpolation kernel
// used to spread polar frequency samples onto the Cartesian grid.
type kbKernel struct {
	width float64
	beta  float64
	i0b   float64
	mass  float64
}

// newKBKernel builds a kernel of the given support width (in grid
// cells) for the given oversampling ratio. Beta follows the Beatty
// formula, the standard choice for gridding kernels.
func newKBKernel(width int, oversample float64) kbKernel {
	w := float64(width)
	arg := w*w/(oversample*oversample)*(oversample-0.5)*(oversample-0.5) - 0.8
	if arg < 0 {
		arg = 0
	}
	k := kbKernel{width: w, beta: math.Pi * math.Sqrt(arg)}
	k.i0b = besselI0(k.beta)

	half := int(w / 2)
	for t := -half; t <= half; t++ {
		k.mass += k.raw(float64(t))
	}
	return k
}

// raw evaluates the unnormalized kernel at offset x (grid cells).
func (k kbKernel) raw(x float64) float64 {
	u := 2 * x / k.width
	if u <= -1 || u >= 1 {
		return 0
	}
	return besselI0(k.beta*math.Sqrt(1-u*u)) / k.i0b
}

// At evaluates the unit-mass kernel at offset x.
func (k kbKernel) At(x float64) float64 {
	return k.raw(x) / k.mass
}

// Deapodization returns the multiplicative spatial correction for the
// smoothing the kernel introduced, sampled at the given spatial
// offsets (pixels from the image center) for a frequency grid of m
// points. It is the reciprocal of the kernel's sampled frequency
// response, which keeps it exactly consistent with the discrete
// convolution performed during gridding.
func (k kbKernel) Deapodization(offsets []float64, m int) []float64 {
	half := int(k.width / 2)
	out := make([]float64, len(offsets))
	for i, xi := range offsets {
		c := 0.0
		for t := -half; t <= half; t++ {
			c += k.At(float64(t)) * math.Cos(2*math.Pi*float64(t)*xi/float64(m))
		}
		out[i] = 1 / c
	}
	return out
}

// besselI0 is the modified Bessel function of the first kind, order
// zero, via the Abramowitz & Stegun 9.8.1/9.8.2 polynomial fits.
func besselI0(x float64) float64 {
	ax := math.Abs(x)
	if ax < 3.75 {
		t := x / 3.75
		t *= t
		return 1 + t*(3.5156229+t*(3.0899424+t*(1.2067492+
			t*(0.2659732+t*(0.0360768+t*0.0045813)))))
	}
	t := 3.75 / ax
	return math.Exp(ax) / math.Sqrt(ax) *
		(0.39894228 + t*(0.01328592+t*(0.00225319+t*(-0.00157565+
			t*(0.00916281+t*(-0.02057706+t*(0.02635537+
				t*(-0.01647633+t*0.00392377))))))))
}
