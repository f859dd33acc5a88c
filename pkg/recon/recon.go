// Package recon is the reconstruction engine: it turns a 3-D volume of
// projection measurements (projection, slice, pixel) into a stack of
// reconstructed slice images.
//
// Three solvers are provided behind one dispatch surface: ART
// (sequential algebraic corrections), MLEM (multiplicative
// expectation-maximization) and Gridrec (direct Fourier gridding, the
// default production path). All three parallelize over the slice axis
// through the job distributor; within one slice the grid and sinogram
// are exclusively owned by that slice's computation.
//
// Iterative solvers expect pre-logged absorption data: the caller
// applies |−ln(transmission)| (and any padding) before invoking
// Reconstruct, and shifts the rotation center by half the padding
// added.
package recon

import (
	"fmt"
	"math"

	"tomogo/internal/logging"
	"tomogo/pkg/distributor"
	"tomogo/pkg/volume"
)

// Method selects a reconstruction algorithm.
type Method int

const (
	// ART is the algebraic reconstruction technique.
	ART Method = iota

	// MLEM is maximum-likelihood expectation-maximization.
	MLEM

	// Gridrec is the direct Fourier (gridding) method.
	Gridrec
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case ART:
		return "art"
	case MLEM:
		return "mlem"
	case Gridrec:
		return "gridrec"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod maps a method name to its Method value.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "art":
		return ART, nil
	case "mlem":
		return MLEM, nil
	case "gridrec":
		return Gridrec, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// DefaultGridSize derives the reconstruction grid side from the
// detector width: floor(pixels/sqrt(2)), so the inscribed circle of
// the square grid fits the detector footprint. Derived extents round
// down throughout the package.
func DefaultGridSize(pixels int) int {
	return int(math.Floor(float64(pixels) / math.Sqrt2))
}

type options struct {
	iters       int
	numGrid     int
	init        *volume.Volume
	job         distributor.JobConfig
	logger      logging.Logger
	kernelWidth int
	oversample  float64
	filter      Filter
}

// Option configures a reconstruction call.
type Option func(*options)

// WithIterations sets the sweep count for the iterative solvers.
func WithIterations(n int) Option {
	return func(o *options) { o.iters = n }
}

// WithGridSize requests a reconstruction grid side length. Requests
// larger than the detector width are clamped to the derived default
// with a warning.
func WithGridSize(n int) Option {
	return func(o *options) { o.numGrid = n }
}

// WithInit supplies the initial grid estimate, shaped
// (slices, numGrid, numGrid). ART defaults to zeros, MLEM to ones.
func WithInit(v *volume.Volume) Option {
	return func(o *options) { o.init = v }
}

// WithJobConfig sets worker count and chunk size for the slice-axis
// parallelization. The shard axis is always the slice axis.
func WithJobConfig(cfg distributor.JobConfig) Option {
	return func(o *options) { o.job = cfg }
}

// WithLogger sets the logging sink. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithKernelWidth sets the gridding kernel support in grid cells.
func WithKernelWidth(w int) Option {
	return func(o *options) { o.kernelWidth = w }
}

// WithOversampling sets the gridrec frequency-grid oversampling ratio.
func WithOversampling(r float64) Option {
	return func(o *options) { o.oversample = r }
}

// WithFilter sets the gridrec radial filter.
func WithFilter(f Filter) Option {
	return func(o *options) { o.filter = f }
}

func defaultOptions() options {
	return options{
		iters:       1,
		logger:      logging.Nop(),
		kernelWidth: 4,
		oversample:  2.0,
		filter:      FilterRamp,
	}
}

// Reconstruct applies the selected method to every slice of data and
// returns the reconstructed volume shaped (slices, numGrid, numGrid).
//
// theta must align 1:1 with the projection axis; degree inputs are
// converted to radians exactly once. center is the rotation-axis pixel
// column of data as passed in (already shifted if data was padded).
// Configuration problems are reported before any worker runs.
func Reconstruct(method Method, data *volume.Volume, theta *volume.AngleSet, center float64, opts ...Option) (*volume.Volume, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	if data == nil || len(data.Data) == 0 {
		return nil, ErrEmptyVolume
	}
	if theta.Len() != data.Projs {
		return nil, fmt.Errorf("%w: %d angles for %d projections",
			ErrAngleCount, theta.Len(), data.Projs)
	}
	if center < 0 || center >= float64(data.Pixels) {
		return nil, fmt.Errorf("%w: center %.3f not in [0, %d)",
			ErrCenterRange, center, data.Pixels)
	}
	if method != Gridrec && o.iters < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrIterations, o.iters)
	}

	numGrid := o.numGrid
	if numGrid == 0 {
		numGrid = DefaultGridSize(data.Pixels)
	} else if numGrid > data.Pixels {
		def := DefaultGridSize(data.Pixels)
		o.logger.Warn("requested grid exceeds detector width, clamping",
			"requested", numGrid, "pixels", data.Pixels, "numGrid", def)
		numGrid = def
	}
	if numGrid <= 0 {
		return nil, fmt.Errorf("%w: numGrid=%d from %d pixels",
			ErrBadGeometry, numGrid, data.Pixels)
	}
	if o.init != nil {
		want := [3]int{data.Slices, numGrid, numGrid}
		if o.init.Dims() != want {
			return nil, fmt.Errorf("%w: have %v, want %v",
				ErrInitShape, o.init.Dims(), want)
		}
	}

	th := theta.Radians()
	o.logger.Debug("reconstruct",
		"method", method.String(), "slices", data.Slices,
		"projections", data.Projs, "pixels", data.Pixels,
		"numGrid", numGrid, "center", center, "iters", o.iters)

	var fn distributor.ChunkFunc
	switch method {
	case ART, MLEM:
		fn = func(chunk *volume.Volume, start int) (*volume.Volume, error) {
			p, err := NewProjector(th, center, chunk.Pixels, numGrid)
			if err != nil {
				return nil, err
			}
			out := volume.Zeros(chunk.Slices, numGrid, numGrid)
			for s := 0; s < chunk.Slices; s++ {
				grid := out.Data[s*numGrid*numGrid : (s+1)*numGrid*numGrid]
				if o.init != nil {
					src := o.init.Slab(volume.AxisProjection, start+s, start+s+1)
					copy(grid, src.Data)
				} else if method == MLEM {
					for i := range grid {
						grid[i] = 1
					}
				}
				sg := chunk.Sinogram(s)
				if method == ART {
					artSlice(p, sg, o.iters, grid)
				} else {
					mlemSlice(p, sg, o.iters, grid)
				}
			}
			return out, nil
		}
	case Gridrec:
		params := gridParams{kernelWidth: o.kernelWidth, oversample: o.oversample, filter: o.filter}
		// Build one worker up front so a bad filter name fails before
		// dispatch.
		if _, err := rampFilter(data.Pixels, params.filter); err != nil {
			return nil, err
		}
		fn = func(chunk *volume.Volume, _ int) (*volume.Volume, error) {
			w, err := newGridrecWorker(th, center, chunk.Pixels, numGrid, params)
			if err != nil {
				return nil, err
			}
			out := volume.Zeros(chunk.Slices, numGrid, numGrid)
			for s := 0; s < chunk.Slices; s++ {
				img := w.reconSlice(chunk.Sinogram(s))
				copy(out.Data[s*numGrid*numGrid:(s+1)*numGrid*numGrid], img)
			}
			return out, nil
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, int(method))
	}

	cfg := o.job
	cfg.Axis = volume.AxisSlice
	return distributor.Distribute(data, fn, cfg,
		distributor.WithOutputAxis(volume.AxisProjection),
		distributor.WithLogger(o.logger))
}
