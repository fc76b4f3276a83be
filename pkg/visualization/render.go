package visualization

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"imagelab/internal/models"
)

// ErrNumericDomain is returned when a logarithm would be taken of a value
// outside its domain
var ErrNumericDomain = errors.New("numeric domain error")

// Scaling selects how a real grid is mapped onto 8-bit gray levels
type Scaling int

const (
	// ScaleClamp rounds each sample and clamps it to 0..255
	ScaleClamp Scaling = iota

	// ScaleMinMax stretches the grid's min..max range onto 0..255
	ScaleMinMax
)

// LogMagnitude returns log(max(|v|, floor)) for every sample of f
func LogMagnitude(f *models.Field, floor float64) (*models.Field, error) {
	if !(floor > 0) {
		return nil, fmt.Errorf("%w: log floor must be positive, got %g", ErrNumericDomain, floor)
	}

	out := models.NewField(f.Width, f.Height)
	for i, v := range f.Data {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: NaN sample at index %d", ErrNumericDomain, i)
		}
		out.Data[i] = math.Log(math.Max(math.Abs(v), floor))
	}
	return out, nil
}

// LogMagnitudeComplex returns log(max(|v|, floor)) for every sample of c
func LogMagnitudeComplex(c *models.ComplexField, floor float64) (*models.Field, error) {
	if !(floor > 0) {
		return nil, fmt.Errorf("%w: log floor must be positive, got %g", ErrNumericDomain, floor)
	}

	out := models.NewField(c.Width, c.Height)
	for i, v := range c.Data {
		if cmplx.IsNaN(v) {
			return nil, fmt.Errorf("%w: NaN sample at index %d", ErrNumericDomain, i)
		}
		out.Data[i] = math.Log(math.Max(cmplx.Abs(v), floor))
	}
	return out, nil
}

// ToGray converts a real grid to an 8-bit grayscale image
func ToGray(f *models.Field, scaling Scaling) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	if len(f.Data) == 0 {
		return img
	}

	lo, hi := 0.0, 255.0
	if scaling == ScaleMinMax {
		lo, hi = floats.Min(f.Data), floats.Max(f.Data)
		// A flat grid has no range to stretch
		if hi-lo <= 0 || math.IsInf(hi-lo, 0) {
			lo, hi = 0, 255
		}
	}

	factor := 255 / (hi - lo)
	for y := 0; y < f.Height; y++ {
		row := f.Row(y)
		pix := img.Pix[y*img.Stride : y*img.Stride+f.Width]
		for x, v := range row {
			pix[x] = clamp8((v-lo)*factor + 0.5)
		}
	}
	return img
}

func clamp8(v float64) uint8 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// EncodeJPEG encodes img as a baseline JPEG at the given quality
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("error encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("error encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
