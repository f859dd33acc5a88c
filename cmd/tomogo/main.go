package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"tomogo/internal/logging"
	"tomogo/pkg/config"
	"tomogo/pkg/distributor"
	"tomogo/pkg/preprocess"
	"tomogo/pkg/recon"
	"tomogo/pkg/volume"
)

func main() {
	configPath := flag.String("config", "tomogo.yaml", "YAML configuration file")
	method := flag.String("method", "", "reconstruction method: art, mlem or gridrec (overrides config)")
	pixels := flag.Int("pixels", 128, "detector width of the synthetic scan")
	angles := flag.Int("angles", 180, "number of projection angles over 180 degrees")
	slices := flag.Int("slices", 4, "number of slices in the synthetic scan")
	iters := flag.Int("iters", 0, "iterations for art/mlem (overrides config)")
	outDir := flag.String("out", "reconstructed_slices", "directory for output PNG slices")
	findCenter := flag.Bool("optimize-center", false, "search for the rotation center instead of trusting the geometric one")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *method != "" {
		cfg.Reconstruction.Method = *method
	}
	if *iters > 0 {
		cfg.Reconstruction.Iterations = *iters
	}

	m, err := recon.ParseMethod(cfg.Reconstruction.Method)
	if err != nil {
		log.Fatalf("Bad method: %v", err)
	}

	zl, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()
	logger := logging.NewZap(zl)

	job := distributor.JobConfig{
		NumWorkers: cfg.Processing.NumWorkers,
		ChunkSize:  cfg.Processing.ChunkSize,
	}

	fmt.Println("================================")
	fmt.Println("TOMOGO - TOMOGRAPHIC RECONSTRUCTION DEMO")
	fmt.Println("================================")
	fmt.Printf("Method: %s, %d angles x %d slices x %d pixels\n",
		m, *angles, *slices, *pixels)

	// Step 1: synthesize a scan of a disc phantom.
	fmt.Println("Step 1: Simulating projections of a disc phantom...")
	theta := volume.UniformAngles(*angles)
	trueCenter := float64(*pixels) / 2
	trans, phantom, err := simulateScan(theta, trueCenter, *pixels, *slices)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	// Step 2: flat-field normalization against synthetic references.
	fmt.Println("Step 2: Normalizing against white/dark fields...")
	white := volume.Full(1, *slices, *pixels, 1.0)
	dark := volume.Zeros(1, *slices, *pixels)
	data, err := preprocess.Normalize(trans, white, dark, 0, job, distributor.WithLogger(logger))
	if err != nil {
		log.Fatalf("Normalization failed: %v", err)
	}

	// Step 3: convert transmission to absorption line integrals.
	fmt.Println("Step 3: Taking |-ln(transmission)|...")
	data, err = preprocess.MinusLog(data, job, distributor.WithLogger(logger))
	if err != nil {
		log.Fatalf("MinusLog failed: %v", err)
	}

	center := trueCenter
	if *findCenter {
		fmt.Println("Step 3b: Optimizing rotation center...")
		center, err = recon.OptimizeCenter(data, theta, -1, trueCenter+3,
			cfg.Center.Tolerance, recon.WithLogger(logger), recon.WithJobConfig(job))
		if err != nil {
			log.Fatalf("Center optimization failed: %v", err)
		}
		fmt.Printf("Optimized center: %.2f (geometric %.2f)\n", center, trueCenter)
	}

	// Step 4: pad the detector axis for the iterative solvers.
	if m == recon.ART || m == recon.MLEM {
		fmt.Println("Step 4: Padding detector axis...")
		padded, err := preprocess.ApplyPadding(data, 0)
		if err != nil {
			log.Fatalf("Padding failed: %v", err)
		}
		center = preprocess.PadCenter(center, data.Pixels, padded.Pixels)
		data = padded
	}

	// Step 5: reconstruct.
	fmt.Printf("Step 5: Reconstructing with %s...\n", m)
	opts := []recon.Option{
		recon.WithLogger(logger),
		recon.WithJobConfig(job),
		recon.WithIterations(cfg.Reconstruction.Iterations),
		recon.WithKernelWidth(cfg.Gridrec.KernelWidth),
		recon.WithOversampling(cfg.Gridrec.Oversampling),
		recon.WithFilter(recon.Filter(cfg.Gridrec.Filter)),
	}
	if cfg.Reconstruction.GridSize > 0 {
		opts = append(opts, recon.WithGridSize(cfg.Reconstruction.GridSize))
	}
	start := time.Now()
	rec, err := recon.Reconstruct(m, data, theta, center, opts...)
	if err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("\nReconstruction completed in %.2f seconds\n", elapsed.Seconds())
	fmt.Printf("Output volume: %d slices of %dx%d\n", rec.Projs, rec.Slices, rec.Pixels)
	fmt.Printf("Intensity mean: %.4f, stddev: %.4f\n",
		stat.Mean(rec.Data, nil), stat.StdDev(rec.Data, nil))
	fmt.Printf("Phantom mean for comparison: %.4f\n", stat.Mean(phantom, nil))

	// Step 6: save reconstructed slices as PNG images.
	fmt.Printf("Step 6: Writing slices to %s...\n", *outDir)
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	ng := rec.Slices
	for s := 0; s < rec.Projs; s++ {
		img := rec.Data[s*ng*ng : (s+1)*ng*ng]
		name := filepath.Join(*outDir, fmt.Sprintf("slice_%03d.png", s))
		if err := savePNG(name, img, ng, ng); err != nil {
			log.Printf("Warning: failed to save slice %d: %v", s, err)
		}
	}
	fmt.Println("Done.")
}

// simulateScan forward-projects a centered disc phantom and returns
// the transmission volume exp(-sinogram) plus the phantom image used,
// so the console summary can compare intensities.
func simulateScan(theta *volume.AngleSet, center float64, pixels, slices int) (*volume.Volume, []float64, error) {
	ng := recon.DefaultGridSize(pixels)
	phantom := discPhantom(ng, float64(ng)/4, 0.02)

	p, err := recon.NewProjector(theta.Radians(), center, pixels, ng)
	if err != nil {
		return nil, nil, err
	}
	sino := make([]float64, theta.Len()*pixels)
	p.Forward(phantom, sino)

	vol := volume.Zeros(theta.Len(), slices, pixels)
	for k := 0; k < theta.Len(); k++ {
		for s := 0; s < slices; s++ {
			for x := 0; x < pixels; x++ {
				vol.Set(k, s, x, math.Exp(-sino[k*pixels+x]))
			}
		}
	}
	return vol, phantom, nil
}

// discPhantom builds an n*n image of a centered disc with the given
// radius and attenuation per pixel.
func discPhantom(n int, radius, mu float64) []float64 {
	img := make([]float64, n*n)
	h := float64(n) / 2
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			dx := float64(x) - h + 0.5
			dy := float64(y) - h + 0.5
			if dx*dx+dy*dy < radius*radius {
				img[y*n+x] = mu
			}
		}
	}
	return img
}

// savePNG writes a float image as 16-bit grayscale, scaling its value
// range to the full bit depth.
func savePNG(path string, data []float64, width, height int) error {
	minV, maxV := data[0], data[0]
	for _, v := range data {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	scale := 0.0
	if maxV > minV {
		scale = 65535 / (maxV - minV)
	}

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := (data[y*width+x] - minV) * scale
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
