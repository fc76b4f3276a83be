// Package pipeline runs an uploaded image through grayscale conversion,
// the forward and inverse cosine and Fourier transforms, and renders the
// six resulting panels as 8-bit images and JPEG artifacts.
package pipeline

import (
	"fmt"
	"image"
	"io"
	"log"
	"time"

	"imagelab/internal/models"
	"imagelab/pkg/imaging"
	"imagelab/pkg/transform"
	"imagelab/pkg/visualization"
)

// Artifact file names. The first, third and fifth are offered for download.
const (
	OriginalFile         = "original_image.jpeg"
	GrayscaleFile        = "grayscale_image.jpeg"
	CosineFile           = "dct_image.jpeg"
	CosineInverseFile    = "idct_image.jpeg"
	FrequencyFile        = "fft_image.jpeg"
	FrequencyInverseFile = "ifft_image.jpeg"
)

// Panel titles in display order
const (
	OriginalTitle         = "Original"
	GrayscaleTitle        = "Grayscale"
	CosineTitle           = "Cosine Coefficients"
	CosineInverseTitle    = "Cosine Reconstruction"
	FrequencyTitle        = "Frequency Coefficients"
	FrequencyInverseTitle = "Frequency Reconstruction"
)

// Options controls rendering of the pipeline outputs
type Options struct {
	// LogFloor is the smallest magnitude fed to the logarithm when
	// visualising coefficient grids
	LogFloor float64

	// JPEGQuality is the encoder quality for every artifact (1-100)
	JPEGQuality int

	// MaxPixels refuses uploads whose header declares more pixels, before
	// they are decoded
	MaxPixels int

	// MaxDimension downscales decoded uploads whose longer side exceeds it.
	// Zero keeps the upload at full size.
	MaxDimension int

	// Verbose prints one progress line per stage
	Verbose bool
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		LogFloor:     1e-9,
		JPEGQuality:  90,
		MaxPixels:    16 << 20,
		MaxDimension: 1024,
	}
}

// View is one displayable panel
type View struct {
	Title string
	Image image.Image
}

// Artifact is one encoded JPEG with the file name it is served under
type Artifact struct {
	Name string
	Data []byte
}

// Result holds everything a single run produces. Nothing in it is shared
// with other runs.
type Result struct {
	// Source is the raster handed to Run
	Source *models.Raster

	// Gray is the single-channel version of Source
	Gray *models.Raster

	// Intensity is the float intensity field derived from Gray
	Intensity *models.Field

	// Cosine and CosineInverse are the DCT coefficients and their IDCT
	Cosine        *models.Field
	CosineInverse *models.Field

	// Frequency and FrequencyInverse are the DFT coefficients and their IDFT
	Frequency        *models.ComplexField
	FrequencyInverse *models.ComplexField

	// Views are the six panels in display order
	Views []View

	// Artifacts are the six encoded panels in display order
	Artifacts []Artifact

	Metrics Metrics
}

// Artifact returns the encoded artifact with the given file name
func (r *Result) Artifact(name string) (Artifact, error) {
	for _, a := range r.Artifacts {
		if a.Name == name {
			return a, nil
		}
	}
	return Artifact{}, fmt.Errorf("%w: %s", ErrUnknownArtifact, name)
}

// Downloads returns the artifacts offered for download: the original image
// and the two log-magnitude coefficient images
func (r *Result) Downloads() []Artifact {
	out := make([]Artifact, 0, 3)
	for _, name := range DownloadNames() {
		if a, err := r.Artifact(name); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// ArtifactNames lists every artifact name in display order
func ArtifactNames() []string {
	return []string{OriginalFile, GrayscaleFile, CosineFile, CosineInverseFile, FrequencyFile, FrequencyInverseFile}
}

// DownloadNames lists the downloadable artifact names in button order
func DownloadNames() []string {
	return []string{OriginalFile, CosineFile, FrequencyFile}
}

// Pipeline runs the transform pipeline. It holds no per-run state and is
// safe for concurrent use.
type Pipeline struct {
	opts Options
}

// New creates a pipeline. Zero-valued options fall back to DefaultOptions.
func New(opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.LogFloor == 0 {
		opts.LogFloor = def.LogFloor
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = def.JPEGQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	return &Pipeline{opts: opts}
}

// Process decodes an upload, applies the MaxPixels and MaxDimension limits
// and runs the pipeline on it. Decode failures return before any transform
// runs.
func (p *Pipeline) Process(r io.Reader) (*Result, error) {
	src, err := imaging.Decode(r, p.opts.MaxPixels)
	if err != nil {
		return nil, err
	}
	return p.Run(imaging.Resize(src, p.opts.MaxDimension))
}

// Run executes the pipeline on a decoded raster:
// 1. grayscale normalisation
// 2. DCT and IDCT
// 3. DFT and IDFT
// 4. log-magnitude scaling of both coefficient grids
// 5. 8-bit conversion and JPEG encoding of all six panels
func (p *Pipeline) Run(src *models.Raster) (*Result, error) {
	start := time.Now()
	size := src.Size()
	res := &Result{Source: src}

	p.progress("Converting %dx%d %s image to grayscale...", size.X, size.Y, src.Format)
	res.Gray = imaging.Grayscale(src)
	res.Intensity = imaging.IntensityField(res.Gray)
	if err := checkSize("grayscale", size, res.Intensity.Size()); err != nil {
		return nil, err
	}

	p.progress("Applying cosine transform and its inverse...")
	res.Cosine = transform.DCT2D(res.Intensity)
	if err := checkSize("cosine transform", size, res.Cosine.Size()); err != nil {
		return nil, err
	}
	res.CosineInverse = transform.IDCT2D(res.Cosine)
	if err := checkSize("inverse cosine transform", size, res.CosineInverse.Size()); err != nil {
		return nil, err
	}

	p.progress("Applying Fourier transform and its inverse...")
	res.Frequency = transform.FFT2D(res.Intensity)
	if err := checkSize("fourier transform", size, res.Frequency.Size()); err != nil {
		return nil, err
	}
	res.FrequencyInverse = transform.IFFT2D(res.Frequency)
	if err := checkSize("inverse fourier transform", size, res.FrequencyInverse.Size()); err != nil {
		return nil, err
	}

	p.progress("Rendering panels...")
	if err := p.render(res); err != nil {
		return nil, err
	}

	res.Metrics = calculateMetrics(res.Intensity, res.Cosine, res.CosineInverse, res.FrequencyInverse)
	res.Metrics.Duration = time.Since(start)
	p.progress("Done in %s (cosine RMSE %.2e, frequency RMSE %.2e)",
		res.Metrics.Duration, res.Metrics.CosineRMSE, res.Metrics.FrequencyRMSE)

	return res, nil
}

// render builds the six views and encodes each as a JPEG artifact
func (p *Pipeline) render(res *Result) error {
	size := res.Source.Size()

	cosineLog, err := visualization.LogMagnitude(res.Cosine, p.opts.LogFloor)
	if err != nil {
		return fmt.Errorf("error scaling cosine coefficients: %w", err)
	}
	frequencyLog, err := visualization.LogMagnitudeComplex(res.Frequency, p.opts.LogFloor)
	if err != nil {
		return fmt.Errorf("error scaling frequency coefficients: %w", err)
	}

	res.Views = []View{
		{Title: OriginalTitle, Image: res.Source.Image},
		{Title: GrayscaleTitle, Image: visualization.ToGray(res.Intensity, visualization.ScaleClamp)},
		{Title: CosineTitle, Image: visualization.ToGray(cosineLog, visualization.ScaleMinMax)},
		{Title: CosineInverseTitle, Image: visualization.ToGray(res.CosineInverse, visualization.ScaleClamp)},
		{Title: FrequencyTitle, Image: visualization.ToGray(frequencyLog, visualization.ScaleMinMax)},
		{Title: FrequencyInverseTitle, Image: visualization.ToGray(res.FrequencyInverse.Abs(), visualization.ScaleClamp)},
	}

	names := ArtifactNames()
	res.Artifacts = make([]Artifact, 0, len(res.Views))
	for i, v := range res.Views {
		if err := checkSize(v.Title+" view", size, v.Image.Bounds().Size()); err != nil {
			return err
		}
		data, err := visualization.EncodeJPEG(v.Image, p.opts.JPEGQuality)
		if err != nil {
			return fmt.Errorf("error encoding %s: %w", names[i], err)
		}
		res.Artifacts = append(res.Artifacts, Artifact{Name: names[i], Data: data})
	}

	return nil
}

// Panels returns the views as figure panels
func (r *Result) Panels() []visualization.Panel {
	panels := make([]visualization.Panel, len(r.Views))
	for i, v := range r.Views {
		panels[i] = visualization.Panel{Title: v.Title, Image: v.Image}
	}
	return panels
}

func (p *Pipeline) progress(format string, args ...any) {
	if p.opts.Verbose {
		log.Printf(format, args...)
	}
}
