package export

import (
	"encoding/binary"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imagelab/internal/models"
	"imagelab/pkg/pipeline"
)

// runTestPipeline processes a small gradient image
func runTestPipeline(t *testing.T) *pipeline.Result {
	t.Helper()
	gray := image.NewGray(image.Rect(0, 0, 12, 10))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i * 2)
	}
	res, err := pipeline.New(pipeline.DefaultOptions()).Run(&models.Raster{Image: gray, Format: "png", Channels: 1})
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	return res
}

// TestSave verifies every artifact lands on disk
func TestSave(t *testing.T) {
	res := runTestPipeline(t)
	dir := filepath.Join(t.TempDir(), "out")

	w := &Writer{Dir: dir, PanelSize: 32}
	written, err := w.Save(res)
	if err != nil {
		t.Fatalf("Failed to save results: %v", err)
	}

	// Six jpegs, the figure and the metrics summary
	if len(written) != 8 {
		t.Errorf("Expected 8 files, got %d", len(written))
	}
	for _, name := range []string{
		pipeline.OriginalFile, pipeline.CosineFile, pipeline.FrequencyFile,
		FigureFile, MetricsFile,
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, CosineDumpFile)); !os.IsNotExist(err) {
		t.Errorf("Expected no coefficient dump without DumpCoefficients")
	}

	summary, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	if err != nil {
		t.Fatalf("Failed to read metrics: %v", err)
	}
	if !strings.Contains(string(summary), "Image: 12x10 png") {
		t.Errorf("Expected image line in metrics, got:\n%s", summary)
	}
}

// TestCoefficientDumpRoundTrip verifies dumps read back exactly
func TestCoefficientDumpRoundTrip(t *testing.T) {
	res := runTestPipeline(t)
	dir := t.TempDir()

	w := &Writer{Dir: dir, PanelSize: 16, DumpCoefficients: true}
	if _, err := w.Save(res); err != nil {
		t.Fatalf("Failed to save results: %v", err)
	}

	cosine, err := ReadCoefficients(filepath.Join(dir, CosineDumpFile))
	if err != nil {
		t.Fatalf("Failed to read cosine dump: %v", err)
	}
	if cosine.Real == nil || cosine.Complex != nil {
		t.Fatalf("Expected a real grid, got %+v", cosine)
	}
	if cosine.Real.Width != res.Cosine.Width || cosine.Real.Height != res.Cosine.Height {
		t.Fatalf("Expected %dx%d, got %dx%d", res.Cosine.Width, res.Cosine.Height, cosine.Real.Width, cosine.Real.Height)
	}
	for i, v := range res.Cosine.Data {
		if cosine.Real.Data[i] != v {
			t.Fatalf("Cosine sample %d: expected %f, got %f", i, v, cosine.Real.Data[i])
		}
	}

	frequency, err := ReadCoefficients(filepath.Join(dir, FrequencyDumpFile))
	if err != nil {
		t.Fatalf("Failed to read frequency dump: %v", err)
	}
	if frequency.Complex == nil {
		t.Fatalf("Expected a complex grid, got %+v", frequency)
	}
	for i, v := range res.Frequency.Data {
		if frequency.Complex.Data[i] != v {
			t.Fatalf("Frequency sample %d: expected %v, got %v", i, v, frequency.Complex.Data[i])
		}
	}
}

// TestReadCoefficientsRejectsGarbage verifies a non-dump file is refused
func TestReadCoefficientsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.zst")
	if err := writeDump(path, func(w io.Writer) error {
		_, err := w.Write([]byte("nope"))
		return err
	}); err != nil {
		t.Fatalf("Failed to write dump: %v", err)
	}

	if _, err := ReadCoefficients(path); !errors.Is(err, ErrBadDump) {
		t.Errorf("Expected ErrBadDump, got %v", err)
	}
}

// TestReadCoefficientsRejectsBadHeader verifies header sizes are checked
// before any grid is allocated
func TestReadCoefficientsRejectsBadHeader(t *testing.T) {
	tests := []struct {
		name          string
		kind          byte
		width, height uint32
	}{
		{"huge real grid", kindReal, 0xFFFFFFFF, 0xFFFFFFFF},
		{"huge complex grid", kindComplex, 1 << 16, 1 << 16},
		{"zero width", kindReal, 0, 8},
		{"zero height", kindComplex, 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "header.zst")
			if err := writeDump(path, func(w io.Writer) error {
				if _, err := io.WriteString(w, coefficientMagic); err != nil {
					return err
				}
				header := struct {
					Kind          byte
					Width, Height uint32
				}{tt.kind, tt.width, tt.height}
				return binary.Write(w, binary.LittleEndian, header)
			}); err != nil {
				t.Fatalf("Failed to write dump: %v", err)
			}

			if _, err := ReadCoefficients(path); !errors.Is(err, ErrBadDump) {
				t.Errorf("Expected ErrBadDump, got %v", err)
			}
		})
	}
}

// TestReadCoefficientsTruncated verifies a short sample section is refused
func TestReadCoefficientsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.zst")
	if err := writeDump(path, func(w io.Writer) error {
		if err := writeHeader(w, kindReal, 4, 4); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, []float64{1, 2, 3})
	}); err != nil {
		t.Fatalf("Failed to write dump: %v", err)
	}

	if _, err := ReadCoefficients(path); !errors.Is(err, ErrBadDump) {
		t.Errorf("Expected ErrBadDump, got %v", err)
	}
}

type failingCloser struct{ err error }

func (c failingCloser) Close() error { return c.err }

// TestCloseFileReportsError verifies close failures surface on write paths
func TestCloseFileReportsError(t *testing.T) {
	closeErr := errors.New("disk full")

	var err error
	closeFile(failingCloser{closeErr}, &err)
	if !errors.Is(err, closeErr) {
		t.Errorf("Expected close error to be reported, got %v", err)
	}

	earlier := errors.New("write failed")
	err = earlier
	closeFile(failingCloser{closeErr}, &err)
	if err != earlier {
		t.Errorf("Expected earlier error to be kept, got %v", err)
	}

	err = nil
	closeFile(failingCloser{}, &err)
	if err != nil {
		t.Errorf("Expected no error for a clean close, got %v", err)
	}
}
