package distributor

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tomogo/pkg/volume"
)

func sequentialVolume(p, s, x int) *volume.Volume {
	v := volume.Zeros(p, s, x)
	for i := range v.Data {
		v.Data[i] = float64(i)
	}
	return v
}

func identity(chunk *volume.Volume, start int) (*volume.Volume, error) {
	return chunk, nil
}

// TestIdentityPreservesVolume runs the identity function over every
// axis with several worker and chunk settings; the result must equal
// the input exactly.
func TestIdentityPreservesVolume(t *testing.T) {
	src := sequentialVolume(5, 6, 7)
	cases := []JobConfig{
		{Axis: volume.AxisProjection, NumWorkers: 1},
		{Axis: volume.AxisProjection, NumWorkers: 3, ChunkSize: 2},
		{Axis: volume.AxisSlice, NumWorkers: 4},
		{Axis: volume.AxisSlice, NumWorkers: 2, ChunkSize: 5},
		{Axis: volume.AxisPixel, NumWorkers: 8, ChunkSize: 1},
		{Axis: volume.AxisPixel}, // workers default to NumCPU
	}

	for _, cfg := range cases {
		out, err := Distribute(src, identity, cfg)
		require.NoError(t, err, "cfg %+v", cfg)
		require.Equal(t, src.Dims(), out.Dims(), "cfg %+v", cfg)
		require.Equal(t, src.Data, out.Data, "cfg %+v", cfg)
	}
}

// TestDefaultChunking verifies the ceil-division split: a volume of
// extent 10 over 3 workers partitions into chunks of 4, 4 and 2.
func TestDefaultChunking(t *testing.T) {
	src := sequentialVolume(10, 4, 4)

	var mu sync.Mutex
	type part struct{ start, size int }
	var seen []part

	fn := func(chunk *volume.Volume, start int) (*volume.Volume, error) {
		mu.Lock()
		seen = append(seen, part{start, chunk.Extent(volume.AxisProjection)})
		mu.Unlock()
		return chunk, nil
	}

	_, err := Distribute(src, fn, JobConfig{Axis: volume.AxisProjection, NumWorkers: 3})
	require.NoError(t, err)

	sort.Slice(seen, func(i, j int) bool { return seen[i].start < seen[j].start })
	require.Equal(t, []part{{0, 4}, {4, 4}, {8, 2}}, seen)
}

// TestZeroExtent dispatches nothing for an empty shard axis.
func TestZeroExtent(t *testing.T) {
	src := volume.Zeros(0, 3, 3)
	called := false
	fn := func(chunk *volume.Volume, start int) (*volume.Volume, error) {
		called = true
		return chunk, nil
	}

	out, err := Distribute(src, fn, JobConfig{Axis: volume.AxisProjection, NumWorkers: 2})
	require.NoError(t, err)
	require.False(t, called, "chunk function ran on an empty volume")
	require.Equal(t, 0, out.Extent(volume.AxisProjection))
}

// TestWorkerFailureAborts checks that one failing partition fails the
// whole call and no partial volume escapes.
func TestWorkerFailureAborts(t *testing.T) {
	src := sequentialVolume(8, 2, 2)
	boom := errors.New("detector gap")

	fn := func(chunk *volume.Volume, start int) (*volume.Volume, error) {
		if start == 4 {
			return nil, boom
		}
		return chunk, nil
	}

	out, err := Distribute(src, fn, JobConfig{Axis: volume.AxisProjection, NumWorkers: 2, ChunkSize: 2})
	require.ErrorIs(t, err, boom)
	require.Nil(t, out)
}

// TestChunkShapeChecked rejects workers that return a chunk of the
// wrong extent along the output axis.
func TestChunkShapeChecked(t *testing.T) {
	src := sequentialVolume(6, 2, 2)
	fn := func(chunk *volume.Volume, start int) (*volume.Volume, error) {
		return volume.Zeros(1, 2, 2), nil // always too short
	}

	_, err := Distribute(src, fn, JobConfig{Axis: volume.AxisProjection, NumWorkers: 1, ChunkSize: 3})
	require.ErrorIs(t, err, ErrChunkShape)
}

// TestOutputAxis shards along the slice axis but concatenates results
// along the projection axis, the layout change a reconstruction makes.
func TestOutputAxis(t *testing.T) {
	src := sequentialVolume(9, 6, 5)

	// Each slice partition becomes a (slices, 3, 3) block tagged with
	// its start so reassembly order is observable.
	fn := func(chunk *volume.Volume, start int) (*volume.Volume, error) {
		n := chunk.Extent(volume.AxisSlice)
		out := volume.Zeros(n, 3, 3)
		for i := range out.Data {
			out.Data[i] = float64(start)
		}
		return out, nil
	}

	out, err := Distribute(src, fn,
		JobConfig{Axis: volume.AxisSlice, NumWorkers: 3, ChunkSize: 2},
		WithOutputAxis(volume.AxisProjection))
	require.NoError(t, err)
	require.Equal(t, [3]int{6, 3, 3}, out.Dims())

	for s := 0; s < 6; s++ {
		want := float64(s - s%2) // partition start for chunk size 2
		require.Equal(t, want, out.At(s, 0, 0), "slice %d", s)
	}
}

// TestConfigValidation covers the axis and count guards.
func TestConfigValidation(t *testing.T) {
	src := sequentialVolume(2, 2, 2)

	_, err := Distribute(src, identity, JobConfig{Axis: volume.Axis(7)})
	require.ErrorIs(t, err, ErrInvalidAxis)

	_, err = Distribute(src, identity, JobConfig{Axis: volume.AxisSlice, NumWorkers: -1})
	require.ErrorIs(t, err, ErrInvalidChunk)

	_, err = Distribute(src, identity, JobConfig{Axis: volume.AxisSlice, ChunkSize: -2})
	require.ErrorIs(t, err, ErrInvalidChunk)
}
