package recon

import (
	"math"

	"tomogo/pkg/volume"
)

// discPhantom fills an n*n grid with a centered disc of the given
// radius and value, a shape whose projections look the same from
// every angle.
func discPhantom(n int, radius, value float64) []float64 {
	g := make([]float64, n*n)
	h := float64(n) / 2
	for r := 0; r < n; r++ {
		y := float64(r) - h + 0.5
		for c := 0; c < n; c++ {
			x := float64(c) - h + 0.5
			if x*x+y*y <= radius*radius {
				g[r*n+c] = value
			}
		}
	}
	return g
}

// simulateScan forward-projects grid through the given geometry and
// returns the sinogram as a single-slice volume.
func simulateScan(grid []float64, theta []float64, center float64, pixels, numGrid int) (*volume.Volume, error) {
	p, err := NewProjector(theta, center, pixels, numGrid)
	if err != nil {
		return nil, err
	}
	sino := make([]float64, len(theta)*pixels)
	p.Forward(grid, sino)
	return volume.New(sino, len(theta), 1, pixels)
}

// l2 is the Euclidean norm of the elementwise difference; b may be nil
// to take the plain norm of a.
func l2(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i]
		if b != nil {
			d -= b[i]
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}

// uniformRadians returns n angles evenly covering [0, pi).
func uniformRadians(n int) []float64 {
	th := make([]float64, n)
	for i := range th {
		th[i] = math.Pi * float64(i) / float64(n)
	}
	return th
}
