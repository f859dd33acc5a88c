package recon

import (
	"errors"
	"math"
	"testing"

	"tomogo/pkg/volume"
)

// TestDiagnoseCenter sweeps four candidate centers over one slice and
// checks that each candidate yields its own image.
func TestDiagnoseCenter(t *testing.T) {
	const (
		pixels = 64
		angles = 45
		center = 31.5
	)
	numGrid := DefaultGridSize(pixels)
	th := uniformRadians(angles)
	phantom := discPhantom(numGrid, 10, 1.0)
	sino, err := simulateScan(phantom, th, center, pixels, numGrid)
	if err != nil {
		t.Fatalf("simulateScan failed: %v", err)
	}

	results, err := DiagnoseCenter(sino, volume.NewAngles(th), 0, 30, 33, 1)
	if err != nil {
		t.Fatalf("DiagnoseCenter failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 candidates, got %d", len(results))
	}
	for i, r := range results {
		if want := 30 + float64(i); r.Center != want {
			t.Errorf("Candidate %d: center %g, want %g", i, r.Center, want)
		}
		if len(r.Image) != numGrid*numGrid {
			t.Errorf("Candidate %d: image has %d samples, want %d", i, len(r.Image), numGrid*numGrid)
		}
	}
}

// TestDiagnoseCenterFractionalStep sweeps with a step that has no
// exact binary representation; the final candidate must not be lost
// to accumulated rounding.
func TestDiagnoseCenterFractionalStep(t *testing.T) {
	const (
		pixels = 32
		angles = 8
	)
	data := volume.Zeros(angles, 1, pixels)
	th := volume.NewAngles(uniformRadians(angles))

	results, err := DiagnoseCenter(data, th, 0, 15, 15.5, 0.1)
	if err != nil {
		t.Fatalf("DiagnoseCenter failed: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("Expected 6 candidates for [15, 15.5] step 0.1, got %d", len(results))
	}
	if last := results[5].Center; math.Abs(last-15.5) > 1e-9 {
		t.Errorf("Last candidate %.12f, want 15.5", last)
	}
	for i, r := range results {
		if want := 15 + 0.1*float64(i); math.Abs(r.Center-want) > 1e-9 {
			t.Errorf("Candidate %d: center %.12f, want %.1f", i, r.Center, want)
		}
	}
}

// TestDiagnoseCenterValidation rejects empty data and bad sweeps.
func TestDiagnoseCenterValidation(t *testing.T) {
	th := volume.NewAngles(uniformRadians(4))

	if _, err := DiagnoseCenter(volume.Zeros(0, 0, 0), th, 0, 10, 20, 1); !errors.Is(err, ErrEmptyVolume) {
		t.Errorf("Expected ErrEmptyVolume, got %v", err)
	}

	data := volume.Zeros(4, 1, 16)
	if _, err := DiagnoseCenter(data, th, 0, 10, 20, 0); !errors.Is(err, ErrCenterRange) {
		t.Errorf("Expected ErrCenterRange for zero step, got %v", err)
	}
	if _, err := DiagnoseCenter(data, th, 0, 20, 10, 1); !errors.Is(err, ErrCenterRange) {
		t.Errorf("Expected ErrCenterRange for a reversed sweep, got %v", err)
	}
}

// TestOptimizeCenterRecovers starts the search three pixels off the
// true rotation center and requires convergence to within half a
// pixel, the entropy minimum of a sharp reconstruction.
func TestOptimizeCenterRecovers(t *testing.T) {
	const (
		pixels = 64
		angles = 90
		center = 31.5
	)
	numGrid := DefaultGridSize(pixels)
	th := uniformRadians(angles)
	phantom := discPhantom(numGrid, 10, 1.0)
	sino, err := simulateScan(phantom, th, center, pixels, numGrid)
	if err != nil {
		t.Fatalf("simulateScan failed: %v", err)
	}

	found, err := OptimizeCenter(sino, volume.NewAngles(th), 0, center+3, 0.5)
	if err != nil {
		t.Fatalf("OptimizeCenter failed: %v", err)
	}
	if math.Abs(found-center) > 0.5 {
		t.Errorf("Found center %.3f, expected within 0.5 of %.1f", found, center)
	}
}

// TestOptimizeCenterValidation checks the empty-data guard.
func TestOptimizeCenterValidation(t *testing.T) {
	th := volume.NewAngles(uniformRadians(4))
	if _, err := OptimizeCenter(volume.Zeros(0, 0, 0), th, 0, 8, 0.5); !errors.Is(err, ErrEmptyVolume) {
		t.Errorf("Expected ErrEmptyVolume, got %v", err)
	}
}

// TestHistogramEntropy checks the two degenerate cases and that a
// spread image scores higher than a concentrated one.
func TestHistogramEntropy(t *testing.T) {
	if e := histogramEntropy(nil); e != 0 {
		t.Errorf("Expected zero entropy for empty data, got %v", e)
	}
	if e := histogramEntropy([]float64{3, 3, 3, 3}); e != 0 {
		t.Errorf("Expected zero entropy for constant data, got %v", e)
	}

	concentrated := make([]float64, 1024)
	spread := make([]float64, 1024)
	for i := range spread {
		spread[i] = float64(i % 97)
		if i%64 == 0 {
			concentrated[i] = 96
		}
	}
	if histogramEntropy(spread) <= histogramEntropy(concentrated) {
		t.Errorf("Expected spread data to score higher entropy: %v vs %v",
			histogramEntropy(spread), histogramEntropy(concentrated))
	}
}
