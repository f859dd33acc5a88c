package recon

import "tomogo/pkg/volume"

// mlemSlice runs iters maximum-likelihood expectation-maximization
// iterations on one slice, updating grid in place.
//
// The update is multiplicative, so the initial estimate must be
// strictly positive (the dispatcher seeds ones). Each iteration
// forward-projects the estimate, back-projects the measured/simulated
// ratio and scales by the precomputed sensitivity image. A cell no ray
// ever traverses has zero sensitivity and is left untouched; a ray
// whose simulated sum is zero contributes nothing to the correction.
func mlemSlice(p *Projector, sino *volume.Sinogram, iters int, grid []float64) {
	sens := p.Sensitivity()
	upd := make([]float64, len(grid))

	for it := 0; it < iters; it++ {
		for i := range upd {
			upd[i] = 0
		}
		for k := 0; k < sino.Projs; k++ {
			row := sino.Row(k)
			for d := 0; d < sino.Pixels; d++ {
				cells, lens := p.trace(k, d)
				sim := 0.0
				for i, c := range cells {
					sim += lens[i] * grid[c]
				}
				if sim == 0 {
					continue
				}
				ratio := row[d] / sim
				for i, c := range cells {
					upd[c] += lens[i] * ratio
				}
			}
		}
		for i := range grid {
			if sens[i] > 0 {
				grid[i] *= upd[i] / sens[i]
			}
		}
	}
}
