package transform

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"imagelab/internal/models"
)

// FFT2D performs an unnormalized 2D discrete Fourier transform of the field.
// The zero-frequency term is at (0, 0); no quadrant shift is applied.
//
// Rows are real, so each row goes through gonum's real FFT and the missing
// half of the spectrum is filled in by conjugate symmetry. Columns are
// complex after that and go through the complex FFT.
func FFT2D(f *models.Field) *models.ComplexField {
	width, height := f.Width, f.Height
	result := models.NewComplexField(width, height)
	if width == 0 || height == 0 {
		return result
	}

	rowFFT := fourier.NewFFT(width)
	half := make([]complex128, width/2+1)
	for y := 0; y < height; y++ {
		rowFFT.Coefficients(half, f.Row(y))

		row := result.Data[y*width : (y+1)*width]
		copy(row, half)
		// F(n-k) = F*(k)
		for x := len(half); x < width; x++ {
			k := half[width-x]
			row[x] = complex(real(k), -imag(k))
		}
	}

	colFFT := fourier.NewCmplxFFT(height)
	colIn := make([]complex128, height)
	colOut := make([]complex128, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			colIn[y] = result.Data[y*width+x]
		}
		colFFT.Coefficients(colOut, colIn)
		for y := 0; y < height; y++ {
			result.Data[y*width+x] = colOut[y]
		}
	}

	return result
}

// IFFT2D inverts FFT2D, dividing by width*height so that
// IFFT2D(FFT2D(f)) reproduces f with a near-zero imaginary part.
func IFFT2D(c *models.ComplexField) *models.ComplexField {
	width, height := c.Width, c.Height
	result := models.NewComplexField(width, height)
	if width == 0 || height == 0 {
		return result
	}

	rowFFT := fourier.NewCmplxFFT(width)
	for y := 0; y < height; y++ {
		rowFFT.Sequence(result.Data[y*width:(y+1)*width], c.Data[y*width:(y+1)*width])
	}

	colFFT := fourier.NewCmplxFFT(height)
	colIn := make([]complex128, height)
	colOut := make([]complex128, height)
	norm := complex(1/float64(width*height), 0)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			colIn[y] = result.Data[y*width+x]
		}
		colFFT.Sequence(colOut, colIn)
		for y := 0; y < height; y++ {
			result.Data[y*width+x] = colOut[y] * norm
		}
	}

	return result
}
