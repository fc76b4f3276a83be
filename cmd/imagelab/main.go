package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"imagelab/pkg/config"
	"imagelab/pkg/export"
	"imagelab/pkg/pipeline"
	"imagelab/pkg/server"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "imagelab.yaml", "Path to the YAML configuration file")
	serve := flag.Bool("serve", false, "Start the web interface instead of processing a single file")
	addr := flag.String("addr", "", "Listen address for the web interface (overrides config)")
	inputPath := flag.String("input", "", "JPEG or PNG image to process")
	outputDir := flag.String("output", "", "Directory for the generated artifacts (overrides config)")
	dump := flag.Bool("dump-coefficients", false, "Also write the raw coefficient grids")
	maxDim := flag.Int("max-dim", -1, "Downscale images whose longer side exceeds this (overrides config)")
	writeConfig := flag.Bool("write-config", false, "Write a default configuration file to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the file
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *dump {
		cfg.Output.DumpCoefficients = true
	}
	if *maxDim >= 0 {
		cfg.Pipeline.MaxDimension = *maxDim
	}

	p := pipeline.New(pipelineOptions(cfg, *serve))

	if *serve {
		runServer(cfg, p)
		return
	}

	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	runOnce(cfg, p, *inputPath)
}

// pipelineOptions maps the config onto pipeline options. Per-stage progress
// is only printed for one-shot runs; the server logs failures instead.
func pipelineOptions(cfg *config.Config, serve bool) pipeline.Options {
	return pipeline.Options{
		LogFloor:     cfg.Pipeline.LogFloor,
		JPEGQuality:  cfg.Pipeline.JPEGQuality,
		MaxPixels:    cfg.Pipeline.MaxPixels,
		MaxDimension: cfg.Pipeline.MaxDimension,
		Verbose:      cfg.Output.Verbose && !serve,
	}
}

func runServer(cfg *config.Config, p *pipeline.Pipeline) {
	srv, err := server.New(cfg, p)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	fmt.Println("Server stopped")
}

func runOnce(cfg *config.Config, p *pipeline.Pipeline, inputPath string) {
	f, err := os.Open(inputPath)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer f.Close()

	fmt.Println("================================")
	fmt.Println("IMAGE PROCESSING LAB: DCT AND FFT OF A GRAYSCALE IMAGE")
	fmt.Println("================================")

	res, err := p.Process(f)
	if err != nil {
		log.Fatalf("Processing failed: %v", err)
	}

	w := &export.Writer{
		Dir:              cfg.Output.Dir,
		PanelSize:        cfg.Figure.PanelSize,
		DumpCoefficients: cfg.Output.DumpCoefficients,
	}
	files, err := w.Save(res)
	if err != nil {
		log.Fatalf("Failed to save artifacts: %v", err)
	}

	m := res.Metrics
	fmt.Printf("\nProcessed %dx%d %s image in %s\n", res.Intensity.Width, res.Intensity.Height, res.Source.Format, m.Duration)
	fmt.Printf("\nRound trip metrics:\n")
	fmt.Printf("===================\n")
	fmt.Printf("Cosine RMSE: %.3e (max %.3e)\n", m.CosineRMSE, m.CosineMaxError)
	fmt.Printf("Fourier RMSE: %.3e (max %.3e)\n", m.FrequencyRMSE, m.FrequencyMaxError)
	fmt.Printf("Fourier imaginary residue: %.3e\n", m.MaxImaginary)
	fmt.Printf("Mean intensity: %.2f\n", m.MeanIntensity)
	fmt.Printf("DC energy share: %.4f\n", m.DCEnergyShare)

	fmt.Printf("\nArtifacts saved to %s:\n", cfg.Output.Dir)
	for _, name := range files {
		fmt.Printf("- %s\n", name)
	}
}
