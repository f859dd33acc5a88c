package recon

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Projector maps between a square image grid and sinogram space for a
// fixed angle set, rotation center and detector width.
//
// Rays are traced with an exact length-of-intersection discretization:
// the weight of each grid cell on a ray equals the length of the ray
// segment inside that cell. Forward projection and back-projection
// share the same traced weights, which makes the two operators exact
// adjoints of each other. The iterative solvers depend on that
// property for their convergence behaviour.
//
// A Projector keeps per-ray scratch buffers, so a single instance must
// not be used from multiple goroutines; each worker builds its own.
type Projector struct {
	numGrid int
	pixels  int
	center  float64
	theta   []float64
	sin     []float64
	cos     []float64

	// scratch reused across trace calls
	ts    []float64
	cells []int
	lens  []float64
}

// NewProjector builds a projector for the given angles (radians),
// rotation center and geometry. numGrid is the reconstruction grid
// side length; pixels is the detector width.
func NewProjector(theta []float64, center float64, pixels, numGrid int) (*Projector, error) {
	if numGrid <= 0 || pixels <= 0 {
		return nil, fmt.Errorf("%w: pixels=%d numGrid=%d", ErrBadGeometry, pixels, numGrid)
	}
	if center < 0 || center >= float64(pixels) {
		return nil, fmt.Errorf("%w: center %.3f not in [0, %d)", ErrCenterRange, center, pixels)
	}
	p := &Projector{
		numGrid: numGrid,
		pixels:  pixels,
		center:  center,
		theta:   theta,
		sin:     make([]float64, len(theta)),
		cos:     make([]float64, len(theta)),
		ts:      make([]float64, 0, 4*numGrid),
		cells:   make([]int, 0, 4*numGrid),
		lens:    make([]float64, 0, 4*numGrid),
	}
	for i, th := range theta {
		p.sin[i] = math.Sin(th)
		p.cos[i] = math.Cos(th)
	}
	return p, nil
}

// NumGrid returns the grid side length.
func (p *Projector) NumGrid() int { return p.numGrid }

// Pixels returns the detector width.
func (p *Projector) Pixels() int { return p.pixels }

// NumAngles returns the number of projection angles.
func (p *Projector) NumAngles() int { return len(p.theta) }

// trace walks the ray for angle index k and detector pixel d through
// the grid and returns the intersected cell indices and segment
// lengths. The returned slices are scratch buffers owned by the
// projector and are only valid until the next trace call.
func (p *Projector) trace(k, d int) (cells []int, lens []float64) {
	h := float64(p.numGrid) / 2
	s := float64(d) - p.center
	// Ray: P(t) = t*(cos, sin) + s*(-sin, cos)
	dx, dy := p.cos[k], p.sin[k]
	ox, oy := -s*p.sin[k], s*p.cos[k]

	// Clip the ray against the grid bounding box [-h, h]^2.
	tmin, tmax := math.Inf(-1), math.Inf(1)
	const eps = 1e-12
	if math.Abs(dx) > eps {
		t1, t2 := (-h-ox)/dx, (h-ox)/dx
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin, tmax = math.Max(tmin, t1), math.Min(tmax, t2)
	} else if ox <= -h || ox >= h {
		return nil, nil
	}
	if math.Abs(dy) > eps {
		t1, t2 := (-h-oy)/dy, (h-oy)/dy
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin, tmax = math.Max(tmin, t1), math.Min(tmax, t2)
	} else if oy <= -h || oy >= h {
		return nil, nil
	}
	if tmin >= tmax {
		return nil, nil
	}

	// Crossing parameters of every grid line strictly inside the clip
	// range, plus the entry and exit points.
	p.ts = p.ts[:0]
	p.ts = append(p.ts, tmin, tmax)
	if math.Abs(dx) > eps {
		for i := 0; i <= p.numGrid; i++ {
			t := (float64(i) - h - ox) / dx
			if t > tmin && t < tmax {
				p.ts = append(p.ts, t)
			}
		}
	}
	if math.Abs(dy) > eps {
		for i := 0; i <= p.numGrid; i++ {
			t := (float64(i) - h - oy) / dy
			if t > tmin && t < tmax {
				p.ts = append(p.ts, t)
			}
		}
	}
	sort.Float64s(p.ts)

	p.cells = p.cells[:0]
	p.lens = p.lens[:0]
	for i := 0; i+1 < len(p.ts); i++ {
		dt := p.ts[i+1] - p.ts[i]
		if dt <= eps {
			continue
		}
		tm := (p.ts[i] + p.ts[i+1]) / 2
		ix := int(math.Floor(ox + tm*dx + h))
		iy := int(math.Floor(oy + tm*dy + h))
		if ix < 0 || ix >= p.numGrid || iy < 0 || iy >= p.numGrid {
			continue
		}
		p.cells = append(p.cells, iy*p.numGrid+ix)
		p.lens = append(p.lens, dt)
	}
	return p.cells, p.lens
}

// ForwardAngle projects grid onto the detector for a single angle
// index, writing one sinogram row of length Pixels into row.
func (p *Projector) ForwardAngle(grid []float64, k int, row []float64) {
	for d := 0; d < p.pixels; d++ {
		cells, lens := p.trace(k, d)
		sum := 0.0
		for i, c := range cells {
			sum += lens[i] * grid[c]
		}
		row[d] = sum
	}
}

// Forward projects grid through every angle, writing a full sinogram
// of NumAngles*Pixels samples into sino.
func (p *Projector) Forward(grid, sino []float64) {
	for k := range p.theta {
		p.ForwardAngle(grid, k, sino[k*p.pixels:(k+1)*p.pixels])
	}
}

// BackAngle accumulates one sinogram row into grid using the same
// intersection weights as ForwardAngle.
func (p *Projector) BackAngle(row []float64, k int, grid []float64) {
	for d := 0; d < p.pixels; d++ {
		cells, lens := p.trace(k, d)
		v := row[d]
		for i, c := range cells {
			grid[c] += lens[i] * v
		}
	}
}

// Back accumulates a full sinogram into grid, the adjoint of Forward.
func (p *Projector) Back(sino, grid []float64) {
	for k := range p.theta {
		p.BackAngle(sino[k*p.pixels:(k+1)*p.pixels], k, grid)
	}
}

// Sensitivity returns the back-projection of an all-ones sinogram: the
// total ray weight seen by each grid cell. Cells no ray traverses have
// zero sensitivity.
func (p *Projector) Sensitivity() []float64 {
	sens := make([]float64, p.numGrid*p.numGrid)
	for k := range p.theta {
		for d := 0; d < p.pixels; d++ {
			cells, lens := p.trace(k, d)
			for i, c := range cells {
				sens[c] += lens[i]
			}
		}
	}
	return sens
}

// rayLength returns the total intersection length of one ray, used by
// the ART update normalization.
func rayLength(lens []float64) float64 {
	return floats.Sum(lens)
}
