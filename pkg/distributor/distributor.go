// Package distributor applies a per-chunk function across a 3-D volume
// on multiple workers. It shards the volume along one axis into
// contiguous chunks, runs the function on each chunk independently and
// reassembles the outputs in original index order regardless of which
// worker finishes first.
//
// Workers never share mutable state: each receives a private copy of
// its partition plus whatever read-only arguments the caller closed
// over. If any worker fails the whole call fails; partial results are
// discarded.
package distributor

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tomogo/internal/logging"
	"tomogo/pkg/volume"
)

var (
	// ErrInvalidAxis is returned when the job config names an axis
	// outside the three volume dimensions.
	ErrInvalidAxis = errors.New("invalid shard axis")

	// ErrInvalidChunk is returned for a negative chunk size or worker
	// count.
	ErrInvalidChunk = errors.New("invalid chunk size or worker count")

	// ErrChunkShape is returned when a worker's output chunk does not
	// fit the reassembled volume.
	ErrChunkShape = errors.New("worker returned chunk with inconsistent shape")
)

// ChunkFunc transforms one contiguous partition of the input volume.
// start is the partition's first index along the sharded input axis.
//
// The returned volume must keep the partition's length along the
// output axis; the other two extents may differ from the input but
// must agree across all chunks of one call.
type ChunkFunc func(chunk *volume.Volume, start int) (*volume.Volume, error)

// JobConfig describes how a volume is partitioned for one distributed
// call. It carries no state between calls.
type JobConfig struct {
	// Axis is the input axis to shard along.
	Axis volume.Axis

	// NumWorkers caps concurrent workers. Zero means one worker per
	// available CPU.
	NumWorkers int

	// ChunkSize is the partition length along Axis. Zero divides the
	// extent evenly among the workers (ceil division, last chunk may
	// be shorter).
	ChunkSize int
}

type options struct {
	logger  logging.Logger
	outAxis volume.Axis
	outSet  bool
}

// Option adjusts optional distributor behaviour.
type Option func(*options)

// WithLogger sets the logging sink for the call. The default discards
// all messages.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOutputAxis sets the axis along which output chunks are
// concatenated when the chunk function changes the volume layout, for
// example a reconstruction that turns (projection, slice, pixel)
// chunks into (slice, row, column) chunks. Defaults to the shard axis.
func WithOutputAxis(a volume.Axis) Option {
	return func(o *options) {
		o.outAxis = a
		o.outSet = true
	}
}

// Distribute shards vol along cfg.Axis, applies fn to every partition
// on its own worker and returns the outputs concatenated in ascending
// partition order.
//
// The call blocks until all partitions complete or one fails. A zero
// extent along the shard axis yields an empty result without
// dispatching any worker.
func Distribute(vol *volume.Volume, fn ChunkFunc, cfg JobConfig, opts ...Option) (*volume.Volume, error) {
	opt := options{logger: logging.Nop(), outAxis: cfg.Axis}
	for _, o := range opts {
		o(&opt)
	}
	if !opt.outSet {
		opt.outAxis = cfg.Axis
	}

	if cfg.Axis < volume.AxisProjection || cfg.Axis > volume.AxisPixel {
		return nil, fmt.Errorf("%w: axis %d", ErrInvalidAxis, int(cfg.Axis))
	}
	if cfg.NumWorkers < 0 || cfg.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: workers=%d chunk=%d", ErrInvalidChunk, cfg.NumWorkers, cfg.ChunkSize)
	}

	extent := vol.Extent(cfg.Axis)
	if extent == 0 {
		return vol.Slab(cfg.Axis, 0, 0), nil
	}

	workers := cfg.NumWorkers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	chunk := cfg.ChunkSize
	if chunk == 0 {
		chunk = (extent + workers - 1) / workers
	}

	starts := make([]int, 0, (extent+chunk-1)/chunk)
	for s := 0; s < extent; s += chunk {
		starts = append(starts, s)
	}

	jobID := uuid.NewString()
	opt.logger.Debug("distributing job",
		"job", jobID, "axis", cfg.Axis.String(),
		"extent", extent, "workers", workers,
		"chunk", chunk, "partitions", len(starts))

	results := make([]*volume.Volume, len(starts))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for i, start := range starts {
		i, start := i, start
		end := start + chunk
		if end > extent {
			end = extent
		}
		part := vol.Slab(cfg.Axis, start, end)
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			out, err := fn(part, start)
			if err != nil {
				return fmt.Errorf("partition %d (%s %d:%d): %w", i, cfg.Axis, start, end, err)
			}
			if out.Extent(opt.outAxis) != end-start {
				return fmt.Errorf("%w: partition %d has %s extent %d, want %d",
					ErrChunkShape, i, opt.outAxis, out.Extent(opt.outAxis), end-start)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		opt.logger.Error("distributed job failed", "job", jobID, "error", err)
		return nil, err
	}

	// Output extents are fixed by the first chunk; only the
	// concatenation axis grows.
	dims := results[0].Dims()
	dims[int(opt.outAxis)] = extent
	out := volume.Zeros(dims[0], dims[1], dims[2])
	pos := 0
	for i, res := range results {
		if err := out.SetSlab(opt.outAxis, pos, res); err != nil {
			return nil, fmt.Errorf("partition %d: %w", i, err)
		}
		pos += res.Extent(opt.outAxis)
	}

	opt.logger.Debug("distributed job complete", "job", jobID, "partitions", len(starts))
	return out, nil
}
