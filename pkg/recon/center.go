package recon

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"tomogo/pkg/volume"
)

// DiagnoseResult pairs one candidate rotation center with the slice
// image reconstructed under it.
type DiagnoseResult struct {
	Center float64
	Image  []float64 // numGrid*numGrid, row-major
}

// DiagnoseCenter reconstructs one slice repeatedly across a range of
// candidate centers and returns one image per candidate for visual
// inspection. No automatic decision is made.
//
// Negative sliceNo selects the middle slice. start >= end or a
// non-positive step is rejected.
func DiagnoseCenter(data *volume.Volume, theta *volume.AngleSet, sliceNo int, start, end, step float64, opts ...Option) ([]DiagnoseResult, error) {
	if data == nil || len(data.Data) == 0 {
		return nil, ErrEmptyVolume
	}
	if step <= 0 || start > end {
		return nil, fmt.Errorf("%w: center sweep [%g, %g] step %g",
			ErrCenterRange, start, end, step)
	}
	if sliceNo < 0 {
		sliceNo = data.Slices / 2
	}
	one := data.Slab(volume.AxisSlice, sliceNo, sliceNo+1)

	// Index the candidates instead of accumulating the step, so a
	// fractional step cannot lose the final candidate to rounding.
	n := int(math.Floor((end-start)/step+1e-9)) + 1
	out := make([]DiagnoseResult, 0, n)
	for i := 0; i < n; i++ {
		c := start + float64(i)*step
		rec, err := Reconstruct(Gridrec, one, theta, c, opts...)
		if err != nil {
			return nil, fmt.Errorf("center %.3f: %w", c, err)
		}
		img := make([]float64, len(rec.Data))
		copy(img, rec.Data)
		out = append(out, DiagnoseResult{Center: c, Image: img})
	}
	return out, nil
}

// OptimizeCenter searches for the rotation center that minimizes the
// entropy of the reconstructed slice. A sharp reconstruction
// concentrates its intensity histogram; center errors smear mass into
// intermediate bins and raise the entropy.
//
// The search is a coarse one-pixel scan over init±10 followed by a
// derivative-free Nelder-Mead refinement bounded to the winning
// bracket. The result is the best center found to within tol pixels;
// it is a local optimum, not guaranteed global.
func OptimizeCenter(data *volume.Volume, theta *volume.AngleSet, sliceNo int, init, tol float64, opts ...Option) (float64, error) {
	if data == nil || len(data.Data) == 0 {
		return 0, ErrEmptyVolume
	}
	if tol <= 0 {
		tol = 0.5
	}
	if sliceNo < 0 {
		sliceNo = data.Slices / 2
	}
	one := data.Slab(volume.AxisSlice, sliceNo, sliceNo+1)

	maxC := float64(one.Pixels) - 1
	clamp := func(c float64) float64 {
		return math.Min(math.Max(c, 0), maxC)
	}

	cost := func(c float64) (float64, error) {
		rec, err := Reconstruct(Gridrec, one, theta, c, opts...)
		if err != nil {
			return 0, err
		}
		return histogramEntropy(rec.Data), nil
	}

	// Coarse scan locates the basin.
	best, bestCost := clamp(init), math.Inf(1)
	for d := -10.0; d <= 10; d++ {
		c := clamp(init + d)
		v, err := cost(c)
		if err != nil {
			return 0, fmt.Errorf("center scan at %.3f: %w", c, err)
		}
		if v < bestCost {
			best, bestCost = c, v
		}
	}

	// Sub-pixel refinement inside the winning bracket. Out-of-bracket
	// probes get a stiff penalty so the simplex stays bounded.
	lo, hi := clamp(best-1.5), clamp(best+1.5)
	var evalErr error
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			c := x[0]
			if c < lo || c > hi {
				return bestCost + 1e6*(1+math.Abs(c-best))
			}
			v, err := cost(c)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return v
		},
	}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-6,
			Iterations: 10,
		},
		MajorIterations: 60,
	}
	res, err := optimize.Minimize(problem, []float64{best}, settings, &optimize.NelderMead{})
	if evalErr != nil {
		return 0, evalErr
	}
	if err != nil {
		// Nelder-Mead can report convergence-related errors even when
		// a usable minimizer was found; fall back to the scan result.
		return best, nil
	}
	refined := clamp(res.X[0])
	if res.F <= bestCost && math.Abs(refined-best) <= 1.5 {
		return refined, nil
	}
	return best, nil
}

// histogramEntropy is the Shannon entropy of a 256-bin intensity
// histogram over the data's own range. Constant images score zero.
func histogramEntropy(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	minV, maxV := data[0], data[0]
	for _, v := range data {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if maxV <= minV {
		return 0
	}

	const numBins = 256
	hist := make([]float64, numBins)
	binWidth := (maxV - minV) / float64(numBins)
	for _, v := range data {
		idx := int((v - minV) / binWidth)
		if idx >= numBins {
			idx = numBins - 1
		} else if idx < 0 {
			idx = 0
		}
		hist[idx]++
	}

	entropy := 0.0
	n := float64(len(data))
	for _, count := range hist {
		if count > 0 {
			p := count / n
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}
