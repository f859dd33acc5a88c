// Package volume defines the data model shared by all tomogo packages:
// a 3-D stack of X-ray projection measurements and the acquisition
// angles that accompany it.
//
// A Volume stores its samples row-major along (projection, slice,
// pixel). All volumes taking part in one reconstruction run share the
// slice and pixel extents; white-field and dark-field references may
// carry a different (typically singleton) projection extent.
package volume

import (
	"errors"
	"fmt"
)

// Axis identifies one of the three volume dimensions.
type Axis int

const (
	// AxisProjection is the rotation-angle dimension (axis 0).
	AxisProjection Axis = iota

	// AxisSlice is the vertical slice dimension (axis 1).
	AxisSlice

	// AxisPixel is the detector-pixel dimension (axis 2).
	AxisPixel
)

// String returns the axis name used in logs and error messages.
func (a Axis) String() string {
	switch a {
	case AxisProjection:
		return "projection"
	case AxisSlice:
		return "slice"
	case AxisPixel:
		return "pixel"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// ErrShapeMismatch is returned when the declared extents do not match
// the length of the backing data.
var ErrShapeMismatch = errors.New("volume shape does not match data length")

// Volume is a 3-D numeric array of projection data stored row-major
// as (projection, slice, pixel).
//
// The caller owns the backing slice; solvers borrow it read-only.
// Operations that rewrite data in place say so explicitly.
type Volume struct {
	// Data holds Projs*Slices*Pixels samples in row-major order.
	Data []float64

	// Projs, Slices and Pixels are the extents of the three axes.
	Projs, Slices, Pixels int
}

// New wraps data as a Volume after validating the declared extents.
// The slice is adopted, not copied; this is the single ingestion point
// at which shape and precision are fixed for the rest of the pipeline.
func New(data []float64, projs, slices, pixels int) (*Volume, error) {
	if projs < 0 || slices < 0 || pixels < 0 {
		return nil, fmt.Errorf("%w: negative extent (%d, %d, %d)",
			ErrShapeMismatch, projs, slices, pixels)
	}
	if len(data) != projs*slices*pixels {
		return nil, fmt.Errorf("%w: have %d samples, want %d*%d*%d=%d",
			ErrShapeMismatch, len(data), projs, slices, pixels, projs*slices*pixels)
	}
	return &Volume{Data: data, Projs: projs, Slices: slices, Pixels: pixels}, nil
}

// Zeros returns a zero-filled volume with the given extents.
func Zeros(projs, slices, pixels int) *Volume {
	return &Volume{
		Data:   make([]float64, projs*slices*pixels),
		Projs:  projs,
		Slices: slices,
		Pixels: pixels,
	}
}

// Full returns a volume with every sample set to v.
func Full(projs, slices, pixels int, v float64) *Volume {
	vol := Zeros(projs, slices, pixels)
	for i := range vol.Data {
		vol.Data[i] = v
	}
	return vol
}

// Extent returns the length of the given axis.
func (v *Volume) Extent(a Axis) int {
	switch a {
	case AxisProjection:
		return v.Projs
	case AxisSlice:
		return v.Slices
	case AxisPixel:
		return v.Pixels
	}
	return 0
}

// Dims returns the three extents in axis order.
func (v *Volume) Dims() [3]int {
	return [3]int{v.Projs, v.Slices, v.Pixels}
}

// Index converts (projection, slice, pixel) coordinates to a flat
// offset into Data.
func (v *Volume) Index(p, s, x int) int {
	return (p*v.Slices+s)*v.Pixels + x
}

// At returns the sample at (projection, slice, pixel).
func (v *Volume) At(p, s, x int) float64 {
	return v.Data[v.Index(p, s, x)]
}

// Set stores a sample at (projection, slice, pixel).
func (v *Volume) Set(p, s, x int, val float64) {
	v.Data[v.Index(p, s, x)] = val
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	data := make([]float64, len(v.Data))
	copy(data, v.Data)
	return &Volume{Data: data, Projs: v.Projs, Slices: v.Slices, Pixels: v.Pixels}
}

// Slab copies the half-open index range [start, end) along axis a into
// a new volume. The range must lie within the axis extent.
func (v *Volume) Slab(a Axis, start, end int) *Volume {
	dims := v.Dims()
	dims[int(a)] = end - start
	out := Zeros(dims[0], dims[1], dims[2])

	lo := [3]int{0, 0, 0}
	lo[int(a)] = start
	for p := 0; p < dims[0]; p++ {
		for s := 0; s < dims[1]; s++ {
			srcBase := v.Index(p+lo[0], s+lo[1], lo[2])
			dstBase := out.Index(p, s, 0)
			copy(out.Data[dstBase:dstBase+dims[2]], v.Data[srcBase:srcBase+dims[2]])
		}
	}
	return out
}

// SetSlab writes slab into the receiver along axis a beginning at
// index start. The slab's other two extents must match the receiver.
func (v *Volume) SetSlab(a Axis, start int, slab *Volume) error {
	want := v.Dims()
	want[int(a)] = slab.Extent(a)
	if got := slab.Dims(); got != want {
		return fmt.Errorf("%w: slab extents %v do not fit volume %v along %s axis",
			ErrShapeMismatch, got, v.Dims(), a)
	}

	lo := [3]int{0, 0, 0}
	lo[int(a)] = start
	dims := slab.Dims()
	for p := 0; p < dims[0]; p++ {
		for s := 0; s < dims[1]; s++ {
			srcBase := slab.Index(p, s, 0)
			dstBase := v.Index(p+lo[0], s+lo[1], lo[2])
			copy(v.Data[dstBase:dstBase+dims[2]], slab.Data[srcBase:srcBase+dims[2]])
		}
	}
	return nil
}

// Sinogram is a single slice's 2-D projection data, the unit of work
// for the projection operator and the iterative solvers.
type Sinogram struct {
	// Data holds Projs*Pixels samples in row-major order.
	Data []float64

	// Projs and Pixels are the two extents.
	Projs, Pixels int
}

// Sinogram copies slice s of the volume into a (projection, pixel)
// plane.
func (v *Volume) Sinogram(s int) *Sinogram {
	sg := &Sinogram{
		Data:   make([]float64, v.Projs*v.Pixels),
		Projs:  v.Projs,
		Pixels: v.Pixels,
	}
	for p := 0; p < v.Projs; p++ {
		src := v.Index(p, s, 0)
		copy(sg.Data[p*v.Pixels:(p+1)*v.Pixels], v.Data[src:src+v.Pixels])
	}
	return sg
}

// Row returns a view of one projection row of the sinogram.
func (sg *Sinogram) Row(p int) []float64 {
	return sg.Data[p*sg.Pixels : (p+1)*sg.Pixels]
}
