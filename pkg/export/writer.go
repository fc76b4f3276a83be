// Package export writes pipeline results to disk: the encoded panels, the
// composed figure, a metrics summary and optional raw coefficient dumps.
package export

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"imagelab/internal/models"
	"imagelab/pkg/pipeline"
	"imagelab/pkg/visualization"
)

// File names written next to the JPEG artifacts
const (
	FigureFile        = "figure.png"
	MetricsFile       = "metrics.txt"
	CosineDumpFile    = "dct_coefficients.bin.zst"
	FrequencyDumpFile = "fft_coefficients.bin.zst"
)

const coefficientMagic = "ILCF"

const (
	kindReal    byte = 1
	kindComplex byte = 2
)

// maxDumpSamples bounds the grid a dump header may declare
const maxDumpSamples = 1 << 26

// ErrBadDump is returned when a coefficient dump cannot be parsed
var ErrBadDump = errors.New("malformed coefficient dump")

// Writer saves results into Dir
type Writer struct {
	// Dir is created if it does not exist
	Dir string

	// PanelSize is the figure cell size in pixels
	PanelSize int

	// DumpCoefficients also writes the raw cosine and frequency grids
	DumpCoefficients bool
}

// Save writes every artifact of res and returns the paths written
func (w *Writer) Save(res *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, a := range res.Artifacts {
		path := filepath.Join(w.Dir, a.Name)
		if err := os.WriteFile(path, a.Data, 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", a.Name, err)
		}
		written = append(written, path)
	}

	fig := visualization.ComposeFigure(res.Panels(), w.PanelSize)
	figBytes, err := visualization.EncodePNG(fig)
	if err != nil {
		return written, err
	}
	figPath := filepath.Join(w.Dir, FigureFile)
	if err := os.WriteFile(figPath, figBytes, 0644); err != nil {
		return written, fmt.Errorf("failed to write figure: %w", err)
	}
	written = append(written, figPath)

	metricsPath := filepath.Join(w.Dir, MetricsFile)
	if err := writeMetrics(metricsPath, res); err != nil {
		return written, err
	}
	written = append(written, metricsPath)

	if w.DumpCoefficients {
		cosinePath := filepath.Join(w.Dir, CosineDumpFile)
		if err := writeDump(cosinePath, func(zw io.Writer) error { return writeReal(zw, res.Cosine) }); err != nil {
			return written, err
		}
		written = append(written, cosinePath)

		frequencyPath := filepath.Join(w.Dir, FrequencyDumpFile)
		if err := writeDump(frequencyPath, func(zw io.Writer) error { return writeComplex(zw, res.Frequency) }); err != nil {
			return written, err
		}
		written = append(written, frequencyPath)
	}

	return written, nil
}

func writeMetrics(path string, res *pipeline.Result) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer closeFile(file, &err)

	m := res.Metrics
	size := res.Source.Size()
	_, err = fmt.Fprintf(file,
		"Image: %dx%d %s, %d channel(s)\n"+
			"Mean intensity: %.3f\n"+
			"DC energy share: %.6f\n"+
			"Cosine round trip RMSE: %.3e (max %.3e)\n"+
			"Frequency round trip RMSE: %.3e (max %.3e)\n"+
			"Frequency imaginary residue: %.3e\n"+
			"Processing time: %s\n",
		size.X, size.Y, res.Source.Format, res.Source.Channels,
		m.MeanIntensity, m.DCEnergyShare,
		m.CosineRMSE, m.CosineMaxError,
		m.FrequencyRMSE, m.FrequencyMaxError,
		m.MaxImaginary, m.Duration)
	if err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// writeDump creates path and streams body through a zstd encoder
func writeDump(path string, body func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	defer closeFile(file, &err)

	zw, err := zstd.NewWriter(file,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
	)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if err := body(zw); err != nil {
		zw.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", filepath.Base(path), err)
	}
	return nil
}

// closeFile closes f and reports a close failure through err unless an
// earlier error is already set
func closeFile(f io.Closer, err *error) {
	if cerr := f.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close file: %w", cerr)
	}
}

// Dump layout, little endian:
//
//	magic  [4]byte "ILCF"
//	kind   byte    1 = real, 2 = complex
//	width  uint32
//	height uint32
//	data   float64 samples, complex values as (re, im) pairs
func writeHeader(w io.Writer, kind byte, width, height int) error {
	if _, err := io.WriteString(w, coefficientMagic); err != nil {
		return err
	}
	header := struct {
		Kind          byte
		Width, Height uint32
	}{kind, uint32(width), uint32(height)}
	return binary.Write(w, binary.LittleEndian, header)
}

func writeReal(w io.Writer, f *models.Field) error {
	if err := writeHeader(w, kindReal, f.Width, f.Height); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, f.Data)
}

func writeComplex(w io.Writer, c *models.ComplexField) error {
	if err := writeHeader(w, kindComplex, c.Width, c.Height); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, c.Data)
}

// Coefficients is a decoded dump. Exactly one of Real and Complex is set.
type Coefficients struct {
	Real    *models.Field
	Complex *models.ComplexField
}

// ReadCoefficients decodes a dump written by Save
func ReadCoefficients(path string) (*Coefficients, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	zr, err := zstd.NewReader(file, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer zr.Close()

	magic := make([]byte, len(coefficientMagic))
	if _, err := io.ReadFull(zr, magic); err != nil || string(magic) != coefficientMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadDump)
	}

	var header struct {
		Kind          byte
		Width, Height uint32
	}
	if err := binary.Read(zr, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDump, err)
	}

	samples := uint64(header.Width) * uint64(header.Height)
	if samples == 0 || samples > maxDumpSamples {
		return nil, fmt.Errorf("%w: grid %dx%d out of range", ErrBadDump, header.Width, header.Height)
	}

	width, height := int(header.Width), int(header.Height)
	switch header.Kind {
	case kindReal:
		f := models.NewField(width, height)
		if err := binary.Read(zr, binary.LittleEndian, f.Data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDump, err)
		}
		return &Coefficients{Real: f}, nil
	case kindComplex:
		c := models.NewComplexField(width, height)
		if err := binary.Read(zr, binary.LittleEndian, c.Data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDump, err)
		}
		return &Coefficients{Complex: c}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %d", ErrBadDump, header.Kind)
}
