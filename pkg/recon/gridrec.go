package recon

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"tomogo/pkg/volume"
)

// gridParams carries the configuration of the direct Fourier solver.
type gridParams struct {
	kernelWidth int
	oversample  float64
	filter      Filter
}

// gridrecWorker reconstructs slices with the direct Fourier (gridding)
// method. One worker serves one distributed partition; the FFT plans
// and filter tables are reused across the partition's slices.
//
// Per slice the pipeline is: 1-D FFT of every projection row, radial
// ramp/apodization filtering and rotation-center phase shift on each
// spoke, Kaiser-Bessel gridding of the polar samples onto an
// oversampled Cartesian frequency grid, inverse 2-D FFT, and
// deapodization by the kernel's own frequency response.
type gridrecWorker struct {
	theta   []float64
	center  float64
	pixels  int
	numGrid int

	m      int // oversampled Cartesian grid side
	kernel kbKernel
	filt   []float64
	deapod []float64

	// Output samples sit at the grid cell centers i - numGrid/2 + 0.5.
	// ifloor is the integer part of that offset and frac the leftover
	// sub-pixel shift realized as a frequency-domain phase ramp.
	ifloor int
	frac   float64

	rowFFT *fourier.FFT
	gloFFT *fourier.CmplxFFT

	spec []complex128 // full spectrum of one projection row
	grid []complex128 // m*m Cartesian frequency samples
	col  []complex128 // one column during the 2-D inverse pass
	tmp  []complex128 // FFT scratch
}

func newGridrecWorker(theta []float64, center float64, pixels, numGrid int, p gridParams) (*gridrecWorker, error) {
	filt, err := rampFilter(pixels, p.filter)
	if err != nil {
		return nil, err
	}
	m := int(math.Ceil(p.oversample * float64(pixels)))
	if m%2 == 1 {
		m++
	}

	w := &gridrecWorker{
		theta:   theta,
		center:  center,
		pixels:  pixels,
		numGrid: numGrid,
		m:       m,
		kernel:  newKBKernel(p.kernelWidth, p.oversample),
		filt:    filt,
		rowFFT:  fourier.NewFFT(pixels),
		gloFFT:  fourier.NewCmplxFFT(m),
		spec:    make([]complex128, pixels),
		grid:    make([]complex128, m*m),
		col:     make([]complex128, m),
		tmp:     make([]complex128, m),
	}

	// Output samples sit at cell centers, matching the iterative
	// solvers' grid convention. Split the offset into an integer
	// extraction index and a sub-pixel phase shift; for odd grid
	// sizes the centers are whole pixels and the phase vanishes.
	shift := 0.5 - float64(numGrid)/2
	w.ifloor = int(math.Floor(shift))
	w.frac = shift - float64(w.ifloor)

	offsets := make([]float64, numGrid)
	for i := range offsets {
		offsets[i] = float64(i) + shift
	}
	w.deapod = w.kernel.Deapodization(offsets, m)
	return w, nil
}

// reconSlice reconstructs one sinogram into a numGrid*numGrid image.
func (w *gridrecWorker) reconSlice(sino *volume.Sinogram) []float64 {
	n := w.pixels
	m := w.m
	for i := range w.grid {
		w.grid[i] = 0
	}

	// Polar measure of one spoke sample: dOmega*dTheta. The radial
	// |omega| part lives in the ramp filter.
	weight := math.Pi / (float64(n) * float64(len(w.theta)))
	half := int(w.kernel.width / 2)

	coeffs := make([]complex128, n/2+1)
	for k := range w.theta {
		row := sino.Row(k)
		w.rowFFT.Coefficients(coeffs, row)

		// Expand the real-input coefficients to the full spectrum via
		// conjugate symmetry.
		for j := 0; j < len(coeffs) && j < n; j++ {
			w.spec[j] = coeffs[j]
		}
		for j := len(coeffs); j < n; j++ {
			w.spec[j] = cmplx.Conj(coeffs[n-j])
		}

		dirX, dirY := -math.Sin(w.theta[k]), math.Cos(w.theta[k])
		for j := 0; j < n; j++ {
			kk := j
			if kk >= n/2 {
				kk -= n
			}
			omega := float64(kk) / float64(n)

			// Shift the spectrum so the rotation axis sits at the
			// detector origin. An off-by-half-pixel error here blurs
			// the whole image, so the shift is exactly the center.
			phase := cmplx.Exp(complex(0, 2*math.Pi*omega*w.center))
			v := w.spec[j] * phase * complex(w.filt[j]*weight, 0)

			px := float64(m)/2 + omega*dirX*float64(m)
			py := float64(m)/2 + omega*dirY*float64(m)
			iy0, iy1 := int(math.Ceil(py-float64(half))), int(math.Floor(py+float64(half)))
			ix0, ix1 := int(math.Ceil(px-float64(half))), int(math.Floor(px+float64(half)))
			for iy := iy0; iy <= iy1; iy++ {
				wy := w.kernel.At(float64(iy) - py)
				if wy == 0 {
					continue
				}
				gy := ((iy % m) + m) % m
				for ix := ix0; ix <= ix1; ix++ {
					wx := w.kernel.At(float64(ix) - px)
					if wx == 0 {
						continue
					}
					gx := ((ix % m) + m) % m
					w.grid[gy*m+gx] += v * complex(wx*wy, 0)
				}
			}
		}
	}

	// The grid is stored in centered layout (DC at m/2). Sub-pixel
	// phase so spatial samples land on cell centers, using the stored
	// bin's true frequency.
	if w.frac != 0 {
		for iy := 0; iy < m; iy++ {
			uy := float64(iy-m/2) / float64(m)
			for ix := 0; ix < m; ix++ {
				ux := float64(ix-m/2) / float64(m)
				w.grid[iy*m+ix] *= cmplx.Exp(complex(0, 2*math.Pi*w.frac*(ux+uy)))
			}
		}
	}

	w.inverse2D()

	// Extract the central numGrid window (spatial fftshift) and
	// deapodize. The inverse pass ran on the centered layout, which
	// shows up as an alternating sign in the spatial domain.
	ng := w.numGrid
	out := make([]float64, ng*ng)
	for r := 0; r < ng; r++ {
		sy := (((r + w.ifloor) % m) + m) % m
		for c := 0; c < ng; c++ {
			sx := (((c + w.ifloor) % m) + m) % m
			sign := 1.0
			if (sy+sx)%2 == 1 {
				sign = -1
			}
			out[r*ng+c] = sign * real(w.grid[sy*m+sx]) * w.deapod[r] * w.deapod[c]
		}
	}
	return out
}

// inverse2D applies the unnormalized inverse DFT to w.grid rows then
// columns. The polar sample measure already carries the 1/N scaling,
// so no further normalization is wanted here.
func (w *gridrecWorker) inverse2D() {
	m := w.m
	for r := 0; r < m; r++ {
		row := w.grid[r*m : (r+1)*m]
		w.gloFFT.Sequence(w.tmp, row)
		copy(row, w.tmp)
	}
	for c := 0; c < m; c++ {
		for r := 0; r < m; r++ {
			w.col[r] = w.grid[r*m+c]
		}
		w.gloFFT.Sequence(w.tmp, w.col)
		for r := 0; r < m; r++ {
			w.grid[r*m+c] = w.tmp[r]
		}
	}
}
