// Package transform provides whole-image 2D cosine and Fourier transforms
// on top of gonum's FFT routines.
package transform

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"imagelab/internal/models"
)

// cosinePlan computes the orthonormal 1D DCT-II and its inverse for
// sequences of length n through a complex FFT of length 2n.
//
// Forward: the input is mirrored to length 2n, transformed, and each
// coefficient k is rotated by exp(-iπk/2n); half the real part is the
// unnormalized DCT-II. Inverse runs the same steps backwards.
type cosinePlan struct {
	n       int
	fft     *fourier.CmplxFFT
	work    []complex128
	out     []complex128
	twiddle []complex128
	scale0  float64
	scaleK  float64
}

func newCosinePlan(n int) *cosinePlan {
	p := &cosinePlan{
		n:       n,
		fft:     fourier.NewCmplxFFT(2 * n),
		work:    make([]complex128, 2*n),
		out:     make([]complex128, 2*n),
		twiddle: make([]complex128, n),
		scale0:  math.Sqrt(1 / float64(n)),
		scaleK:  math.Sqrt(2 / float64(n)),
	}
	for k := 0; k < n; k++ {
		p.twiddle[k] = cmplx.Exp(complex(0, -math.Pi*float64(k)/float64(2*n)))
	}
	return p
}

func (p *cosinePlan) scale(k int) float64 {
	if k == 0 {
		return p.scale0
	}
	return p.scaleK
}

// forward writes the DCT-II of src into dst
func (p *cosinePlan) forward(dst, src []float64) {
	n := p.n
	for i, v := range src {
		p.work[i] = complex(v, 0)
		p.work[2*n-1-i] = complex(v, 0)
	}
	p.fft.Coefficients(p.out, p.work)
	for k := 0; k < n; k++ {
		dst[k] = real(p.twiddle[k]*p.out[k]) / 2 * p.scale(k)
	}
}

// inverse writes the DCT-III of src into dst
func (p *cosinePlan) inverse(dst, src []float64) {
	n := p.n
	for k := 0; k < n; k++ {
		p.work[k] = complex(src[k]*p.scale(k), 0) * cmplx.Conj(p.twiddle[k])
	}
	for k := n; k < 2*n; k++ {
		p.work[k] = 0
	}
	p.fft.Sequence(p.out, p.work)
	for i := 0; i < n; i++ {
		dst[i] = real(p.out[i])
	}
}

// DCT2D computes the orthonormal 2D DCT-II of the whole field, rows first
// and then columns. The DC coefficient lands at (0, 0).
func DCT2D(f *models.Field) *models.Field {
	return separable(f, (*cosinePlan).forward)
}

// IDCT2D inverts DCT2D
func IDCT2D(c *models.Field) *models.Field {
	return separable(c, (*cosinePlan).inverse)
}

// separable applies a 1D cosine pass to every row and then every column
func separable(f *models.Field, pass func(p *cosinePlan, dst, src []float64)) *models.Field {
	width, height := f.Width, f.Height
	result := models.NewField(width, height)
	if width == 0 || height == 0 {
		return result
	}

	rowPlan := newCosinePlan(width)
	rowOut := make([]float64, width)
	for y := 0; y < height; y++ {
		pass(rowPlan, rowOut, f.Row(y))
		copy(result.Row(y), rowOut)
	}

	colPlan := newCosinePlan(height)
	colIn := make([]float64, height)
	colOut := make([]float64, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			colIn[y] = result.Data[y*width+x]
		}
		pass(colPlan, colOut, colIn)
		for y := 0; y < height; y++ {
			result.Data[y*width+x] = colOut[y]
		}
	}

	return result
}
