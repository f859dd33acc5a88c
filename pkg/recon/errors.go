package recon

import "errors"

// Sentinel errors returned by the reconstruction API. Configuration
// problems are detected before any worker is dispatched; numerical
// degeneracies (zero-length rays, zero-sensitivity cells) are absorbed
// inside the solvers and never surface as errors.
var (
	// ErrAngleCount is returned when the angle set length does not
	// match the volume's projection extent.
	ErrAngleCount = errors.New("angle count does not match projection count")

	// ErrCenterRange is returned when the rotation center falls
	// outside the detector pixel range.
	ErrCenterRange = errors.New("rotation center outside pixel range")

	// ErrBadGeometry is returned for non-positive grid or detector
	// extents.
	ErrBadGeometry = errors.New("invalid reconstruction geometry")

	// ErrIterations is returned when an iterative solver is asked for
	// fewer than one iteration.
	ErrIterations = errors.New("iteration count must be at least 1")

	// ErrInitShape is returned when a caller-supplied initial estimate
	// does not match (slices, numGrid, numGrid).
	ErrInitShape = errors.New("initial estimate has wrong shape")

	// ErrUnknownMethod is returned for a Method value outside the
	// defined set.
	ErrUnknownMethod = errors.New("unknown reconstruction method")

	// ErrUnknownFilter is returned for an unrecognized gridrec filter
	// name.
	ErrUnknownFilter = errors.New("unknown reconstruction filter")

	// ErrEmptyVolume is returned when the input volume has no data.
	ErrEmptyVolume = errors.New("empty input volume")
)
