package recon

import "tomogo/pkg/volume"

// artSlice runs iters full angle sweeps of the algebraic
// reconstruction technique on one slice, updating grid in place.
//
// Each sweep walks the angles in acquisition order. For every ray the
// current estimate is forward-projected, the residual against the
// measured ray sum is normalized by the ray's total intersection
// length and immediately back-projected before the next ray is
// touched. The update is sequential by construction; batching the
// corrections would change the solver.
func artSlice(p *Projector, sino *volume.Sinogram, iters int, grid []float64) {
	for it := 0; it < iters; it++ {
		for k := 0; k < sino.Projs; k++ {
			row := sino.Row(k)
			for d := 0; d < sino.Pixels; d++ {
				cells, lens := p.trace(k, d)
				total := rayLength(lens)
				if total == 0 {
					// Ray misses the grid entirely; nothing to correct.
					continue
				}
				sim := 0.0
				for i, c := range cells {
					sim += lens[i] * grid[c]
				}
				upd := (row[d] - sim) / total
				for i, c := range cells {
					grid[c] += lens[i] * upd
				}
			}
		}
	}
}
