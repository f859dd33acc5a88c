// Package preprocess holds the per-slice and per-projection transforms
// that condition raw projection data for reconstruction: flat-field
// normalization, median filtering, zinger removal, Paganin phase
// retrieval, detector padding, drift correction and resolution
// changes.
//
// Every transform that touches independent planes runs through the job
// distributor, sharded along the axis the transform leaves untouched.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"

	"tomogo/pkg/distributor"
	"tomogo/pkg/volume"
)

var (
	// ErrFieldShape is returned when white/dark reference volumes do
	// not share the data's slice and pixel extents.
	ErrFieldShape = errors.New("reference field extents do not match data")

	// ErrBadParam is returned for out-of-range transform parameters.
	ErrBadParam = errors.New("invalid preprocessing parameter")
)

// MinusLog converts transmission data to absorption line integrals,
// |−ln(v)|, the form the iterative solvers expect. Non-positive inputs
// produce non-finite outputs; filtering those is the caller's job.
func MinusLog(data *volume.Volume, cfg distributor.JobConfig, opts ...distributor.Option) (*volume.Volume, error) {
	cfg.Axis = volume.AxisProjection
	return distributor.Distribute(data, func(chunk *volume.Volume, _ int) (*volume.Volume, error) {
		for i, v := range chunk.Data {
			chunk.Data[i] = math.Abs(-math.Log(v))
		}
		return chunk, nil
	}, cfg, opts...)
}

// Normalize applies flat-field correction (data−dark)/(white−dark).
// White and dark references are averaged over their own projection
// extents first; they may carry any number of reference shots but must
// match the data's slice and pixel extents. A positive cutoff clamps
// the corrected transmission from above. Zero denominators yield zero
// rather than a division blow-up.
func Normalize(data, white, dark *volume.Volume, cutoff float64, cfg distributor.JobConfig, opts ...distributor.Option) (*volume.Volume, error) {
	for name, f := range map[string]*volume.Volume{"white": white, "dark": dark} {
		if f == nil {
			return nil, fmt.Errorf("%w: %s field is nil", ErrFieldShape, name)
		}
		if f.Slices != data.Slices || f.Pixels != data.Pixels {
			return nil, fmt.Errorf("%w: %s is (%d, %d, %d), data is (%d, %d, %d)",
				ErrFieldShape, name, f.Projs, f.Slices, f.Pixels,
				data.Projs, data.Slices, data.Pixels)
		}
	}

	avgWhite := meanOverProjections(white)
	avgDark := meanOverProjections(dark)
	plane := data.Slices * data.Pixels

	cfg.Axis = volume.AxisProjection
	return distributor.Distribute(data, func(chunk *volume.Volume, _ int) (*volume.Volume, error) {
		for p := 0; p < chunk.Projs; p++ {
			base := p * plane
			for i := 0; i < plane; i++ {
				denom := avgWhite[i] - avgDark[i]
				v := 0.0
				if denom != 0 {
					v = (chunk.Data[base+i] - avgDark[i]) / denom
				}
				if cutoff > 0 && v > cutoff {
					v = cutoff
				}
				chunk.Data[base+i] = v
			}
		}
		return chunk, nil
	}, cfg, opts...)
}

// meanOverProjections collapses the projection axis, returning one
// (slice, pixel) plane of per-position means.
func meanOverProjections(v *volume.Volume) []float64 {
	plane := v.Slices * v.Pixels
	out := make([]float64, plane)
	for p := 0; p < v.Projs; p++ {
		base := p * plane
		for i := 0; i < plane; i++ {
			out[i] += v.Data[base+i]
		}
	}
	if v.Projs > 0 {
		inv := 1 / float64(v.Projs)
		for i := range out {
			out[i] *= inv
		}
	}
	return out
}

// MedianFilter smooths each slice's sinogram plane with a size×size
// median window (borders clamped). size must be odd and at least 3.
func MedianFilter(data *volume.Volume, size int, cfg distributor.JobConfig, opts ...distributor.Option) (*volume.Volume, error) {
	if size < 3 || size%2 == 0 {
		return nil, fmt.Errorf("%w: median window %d (want odd >= 3)", ErrBadParam, size)
	}
	half := size / 2

	cfg.Axis = volume.AxisSlice
	return distributor.Distribute(data, func(chunk *volume.Volume, _ int) (*volume.Volume, error) {
		out := volume.Zeros(chunk.Projs, chunk.Slices, chunk.Pixels)
		win := make([]float64, 0, size*size)
		for s := 0; s < chunk.Slices; s++ {
			for p := 0; p < chunk.Projs; p++ {
				for x := 0; x < chunk.Pixels; x++ {
					win = win[:0]
					for dp := -half; dp <= half; dp++ {
						pp := clampInt(p+dp, 0, chunk.Projs-1)
						for dx := -half; dx <= half; dx++ {
							xx := clampInt(x+dx, 0, chunk.Pixels-1)
							win = append(win, chunk.At(pp, s, xx))
						}
					}
					sort.Float64s(win)
					out.Set(p, s, x, win[len(win)/2])
				}
			}
		}
		return out, nil
	}, cfg, opts...)
}

// ZingerRemoval replaces isolated hot pixels (zingers) in every
// projection plane. A pixel exceeding the median of its size×size
// neighborhood by at least zingerLevel is replaced with that median;
// everything else passes through untouched. Apply it to the white and
// dark reference volumes too, before Normalize.
func ZingerRemoval(data *volume.Volume, zingerLevel float64, size int, cfg distributor.JobConfig, opts ...distributor.Option) (*volume.Volume, error) {
	if size < 3 || size%2 == 0 {
		return nil, fmt.Errorf("%w: zinger window %d (want odd >= 3)", ErrBadParam, size)
	}
	if zingerLevel <= 0 {
		return nil, fmt.Errorf("%w: zinger level %g (want > 0)", ErrBadParam, zingerLevel)
	}
	half := size / 2

	cfg.Axis = volume.AxisProjection
	return distributor.Distribute(data, func(chunk *volume.Volume, _ int) (*volume.Volume, error) {
		out := volume.Zeros(chunk.Projs, chunk.Slices, chunk.Pixels)
		win := make([]float64, 0, size*size)
		for p := 0; p < chunk.Projs; p++ {
			for s := 0; s < chunk.Slices; s++ {
				for x := 0; x < chunk.Pixels; x++ {
					win = win[:0]
					for ds := -half; ds <= half; ds++ {
						ss := clampInt(s+ds, 0, chunk.Slices-1)
						for dx := -half; dx <= half; dx++ {
							xx := clampInt(x+dx, 0, chunk.Pixels-1)
							win = append(win, chunk.At(p, ss, xx))
						}
					}
					sort.Float64s(win)
					med := win[len(win)/2]
					v := chunk.At(p, s, x)
					if v-med >= zingerLevel {
						v = med
					}
					out.Set(p, s, x, v)
				}
			}
		}
		return out, nil
	}, cfg, opts...)
}

// PhaseRetrieval applies the single-material Paganin phase filter to
// every projection plane: a low-pass in the (slice, pixel) frequency
// domain whose rolloff is set by the propagation distance, X-ray
// wavelength and regularization alpha. The filter has unit gain at DC,
// so overall intensity is preserved.
//
// pixelSize and dist are in cm, energy in keV; all must be positive.
// With pad set, each plane is edge-replicated by a quarter of its
// extent per side before filtering to suppress wrap-around artifacts.
func PhaseRetrieval(data *volume.Volume, pixelSize, dist, energy, alpha float64, pad bool, cfg distributor.JobConfig, opts ...distributor.Option) (*volume.Volume, error) {
	if pixelSize <= 0 || dist <= 0 || energy <= 0 || alpha <= 0 {
		return nil, fmt.Errorf("%w: pixelSize=%g dist=%g energy=%g alpha=%g (all must be > 0)",
			ErrBadParam, pixelSize, dist, energy, alpha)
	}

	// hc in keV*cm.
	const hc = 1.23984193e-7
	wavelength := hc / energy

	rows, cols := data.Slices, data.Pixels
	offR, offC := 0, 0
	if pad {
		offR, offC = rows/4, cols/4
	}
	pr, pc := rows+2*offR, cols+2*offC
	h := paganinFilter(pr, pc, pixelSize, dist, wavelength, alpha)

	cfg.Axis = volume.AxisProjection
	return distributor.Distribute(data, func(chunk *volume.Volume, _ int) (*volume.Volume, error) {
		rowFFT := fourier.NewCmplxFFT(pc)
		colFFT := fourier.NewCmplxFFT(pr)
		plane := make([]complex128, pr*pc)
		rbuf := make([]complex128, pc)
		rout := make([]complex128, pc)
		cbuf := make([]complex128, pr)
		cout := make([]complex128, pr)
		inv := 1 / float64(pr*pc)

		for p := 0; p < chunk.Projs; p++ {
			for rr := 0; rr < pr; rr++ {
				sr := clampInt(rr-offR, 0, rows-1)
				for cc := 0; cc < pc; cc++ {
					sc := clampInt(cc-offC, 0, cols-1)
					plane[rr*pc+cc] = complex(chunk.At(p, sr, sc), 0)
				}
			}

			for rr := 0; rr < pr; rr++ {
				copy(rbuf, plane[rr*pc:(rr+1)*pc])
				rowFFT.Coefficients(rout, rbuf)
				copy(plane[rr*pc:(rr+1)*pc], rout)
			}
			for cc := 0; cc < pc; cc++ {
				for rr := 0; rr < pr; rr++ {
					cbuf[rr] = plane[rr*pc+cc]
				}
				colFFT.Coefficients(cout, cbuf)
				for rr := 0; rr < pr; rr++ {
					plane[rr*pc+cc] = cout[rr]
				}
			}

			for i := range plane {
				plane[i] *= complex(h[i], 0)
			}

			for cc := 0; cc < pc; cc++ {
				for rr := 0; rr < pr; rr++ {
					cbuf[rr] = plane[rr*pc+cc]
				}
				colFFT.Sequence(cout, cbuf)
				for rr := 0; rr < pr; rr++ {
					plane[rr*pc+cc] = cout[rr]
				}
			}
			for rr := 0; rr < pr; rr++ {
				copy(rbuf, plane[rr*pc:(rr+1)*pc])
				rowFFT.Sequence(rout, rbuf)
				copy(plane[rr*pc:(rr+1)*pc], rout)
			}

			for s := 0; s < rows; s++ {
				for x := 0; x < cols; x++ {
					chunk.Set(p, s, x, real(plane[(s+offR)*pc+(x+offC)])*inv)
				}
			}
		}
		return chunk, nil
	}, cfg, opts...)
}

// paganinFilter samples the Paganin low-pass over a rows×cols DFT
// grid in the standard wrap-around frequency layout, normalized to
// unit DC gain.
func paganinFilter(rows, cols int, pixelSize, dist, wavelength, alpha float64) []float64 {
	h := make([]float64, rows*cols)
	scale := wavelength * dist / (4 * math.Pi)
	for r := 0; r < rows; r++ {
		ky := 2 * math.Pi * fftFreq(r, rows) / pixelSize
		for c := 0; c < cols; c++ {
			kx := 2 * math.Pi * fftFreq(c, cols) / pixelSize
			h[r*cols+c] = alpha / (alpha + scale*(kx*kx+ky*ky))
		}
	}
	return h
}

// fftFreq is the fractional DFT bin frequency in cycles per sample,
// negative past the Nyquist fold.
func fftFreq(i, n int) float64 {
	if i > n/2 {
		return float64(i-n) / float64(n)
	}
	return float64(i) / float64(n)
}

// CorrectDrift rescales every projection row so the mean of its
// airPixels outermost columns on each side equals one, compensating
// beam intensity drift between projections.
func CorrectDrift(data *volume.Volume, airPixels int, cfg distributor.JobConfig, opts ...distributor.Option) (*volume.Volume, error) {
	if airPixels < 1 || 2*airPixels > data.Pixels {
		return nil, fmt.Errorf("%w: airPixels %d for %d-pixel rows", ErrBadParam, airPixels, data.Pixels)
	}

	cfg.Axis = volume.AxisProjection
	return distributor.Distribute(data, func(chunk *volume.Volume, _ int) (*volume.Volume, error) {
		for p := 0; p < chunk.Projs; p++ {
			for s := 0; s < chunk.Slices; s++ {
				base := chunk.Index(p, s, 0)
				row := chunk.Data[base : base+chunk.Pixels]
				air := 0.0
				for i := 0; i < airPixels; i++ {
					air += row[i] + row[len(row)-1-i]
				}
				air /= float64(2 * airPixels)
				if air != 0 {
					for i := range row {
						row[i] /= air
					}
				}
			}
		}
		return chunk, nil
	}, cfg, opts...)
}

// PadWidth is the default padded detector width: ceil(pixels*sqrt(2))
// rounded up to even, so the half-pad center shift stays on a
// half-pixel boundary.
func PadWidth(pixels int) int {
	n := int(math.Ceil(float64(pixels) * math.Sqrt2))
	if n%2 == 1 {
		n++
	}
	return n
}

// PadCenter is the rotation center after the pixel axis grew from
// oldPixels to newPixels with the data centered: the center shifts by
// half the padding added.
func PadCenter(center float64, oldPixels, newPixels int) float64 {
	return center + float64(newPixels-oldPixels)/2
}

// ApplyPadding centers the data on a wider pixel axis, replicating the
// edge values into the new margins. numPad zero selects PadWidth.
func ApplyPadding(data *volume.Volume, numPad int) (*volume.Volume, error) {
	if numPad == 0 {
		numPad = PadWidth(data.Pixels)
	}
	if numPad < data.Pixels {
		return nil, fmt.Errorf("%w: pad width %d < %d pixels", ErrBadParam, numPad, data.Pixels)
	}
	left := (numPad - data.Pixels) / 2

	out := volume.Zeros(data.Projs, data.Slices, numPad)
	for p := 0; p < data.Projs; p++ {
		for s := 0; s < data.Slices; s++ {
			src := data.Data[data.Index(p, s, 0) : data.Index(p, s, 0)+data.Pixels]
			dst := out.Data[out.Index(p, s, 0) : out.Index(p, s, 0)+numPad]
			for i := 0; i < left; i++ {
				dst[i] = src[0]
			}
			copy(dst[left:left+data.Pixels], src)
			for i := left + data.Pixels; i < numPad; i++ {
				dst[i] = src[data.Pixels-1]
			}
		}
	}
	return out, nil
}

// Downsample2D bins the slice and pixel axes of every projection plane
// by 2^level, averaging each block. Trailing samples that do not fill
// a block are dropped.
func Downsample2D(data *volume.Volume, level int, cfg distributor.JobConfig, opts ...distributor.Option) (*volume.Volume, error) {
	f, err := binFactor(level)
	if err != nil {
		return nil, err
	}
	cfg.Axis = volume.AxisProjection
	return distributor.Distribute(data, func(chunk *volume.Volume, _ int) (*volume.Volume, error) {
		ns, nx := chunk.Slices/f, chunk.Pixels/f
		out := volume.Zeros(chunk.Projs, ns, nx)
		inv := 1 / float64(f*f)
		for p := 0; p < chunk.Projs; p++ {
			for s := 0; s < ns; s++ {
				for x := 0; x < nx; x++ {
					sum := 0.0
					for ds := 0; ds < f; ds++ {
						for dx := 0; dx < f; dx++ {
							sum += chunk.At(p, s*f+ds, x*f+dx)
						}
					}
					out.Set(p, s, x, sum*inv)
				}
			}
		}
		return out, nil
	}, cfg, opts...)
}

// Downsample3D bins all three axes by 2^level. The projection axis is
// binned too, so this one runs in place of, not on top of, the
// distributor.
func Downsample3D(data *volume.Volume, level int) (*volume.Volume, error) {
	f, err := binFactor(level)
	if err != nil {
		return nil, err
	}
	np, ns, nx := data.Projs/f, data.Slices/f, data.Pixels/f
	out := volume.Zeros(np, ns, nx)
	inv := 1 / float64(f*f*f)
	for p := 0; p < np; p++ {
		for s := 0; s < ns; s++ {
			for x := 0; x < nx; x++ {
				sum := 0.0
				for dp := 0; dp < f; dp++ {
					for ds := 0; ds < f; ds++ {
						for dx := 0; dx < f; dx++ {
							sum += data.At(p*f+dp, s*f+ds, x*f+dx)
						}
					}
				}
				out.Set(p, s, x, sum*inv)
			}
		}
	}
	return out, nil
}

// Upsample2D replicates each sample 2^level times along the slice and
// pixel axes, the inverse of Downsample2D on block-constant data.
func Upsample2D(data *volume.Volume, level int, cfg distributor.JobConfig, opts ...distributor.Option) (*volume.Volume, error) {
	f, err := binFactor(level)
	if err != nil {
		return nil, err
	}
	cfg.Axis = volume.AxisProjection
	return distributor.Distribute(data, func(chunk *volume.Volume, _ int) (*volume.Volume, error) {
		out := volume.Zeros(chunk.Projs, chunk.Slices*f, chunk.Pixels*f)
		for p := 0; p < chunk.Projs; p++ {
			for s := 0; s < out.Slices; s++ {
				for x := 0; x < out.Pixels; x++ {
					out.Set(p, s, x, chunk.At(p, s/f, x/f))
				}
			}
		}
		return out, nil
	}, cfg, opts...)
}

// Upsample3D replicates each sample 2^level times along all three
// axes.
func Upsample3D(data *volume.Volume, level int) (*volume.Volume, error) {
	f, err := binFactor(level)
	if err != nil {
		return nil, err
	}
	out := volume.Zeros(data.Projs*f, data.Slices*f, data.Pixels*f)
	for p := 0; p < out.Projs; p++ {
		for s := 0; s < out.Slices; s++ {
			for x := 0; x < out.Pixels; x++ {
				out.Set(p, s, x, data.At(p/f, s/f, x/f))
			}
		}
	}
	return out, nil
}

func binFactor(level int) (int, error) {
	if level < 1 || level > 8 {
		return 0, fmt.Errorf("%w: resample level %d (want 1..8)", ErrBadParam, level)
	}
	return 1 << level, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
