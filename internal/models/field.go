package models

import (
	"image"
	"math/cmplx"
)

// Raster is a decoded upload together with the metadata the pipeline needs
type Raster struct {
	// Image is the decoded pixel grid
	Image image.Image

	// Format is the name reported by the decoder ("jpeg" or "png")
	Format string

	// Channels is 1 for gray images and 3 for colour images.
	// Alpha is never counted.
	Channels int
}

// Size returns the width and height of the raster as a point
func (r *Raster) Size() image.Point {
	return r.Image.Bounds().Size()
}

// Field is a real-valued 2D grid stored as a 1D array in row-major order
type Field struct {
	// Data holds Width*Height samples
	Data []float64

	// Width and Height are the grid dimensions
	Width, Height int
}

// NewField allocates a zeroed field
func NewField(width, height int) *Field {
	return &Field{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// At returns the sample at column x, row y
func (f *Field) At(x, y int) float64 {
	return f.Data[y*f.Width+x]
}

// Set stores a sample at column x, row y
func (f *Field) Set(x, y int, v float64) {
	f.Data[y*f.Width+x] = v
}

// Size returns the grid dimensions as a point
func (f *Field) Size() image.Point {
	return image.Pt(f.Width, f.Height)
}

// Row returns the backing slice for row y
func (f *Field) Row(y int) []float64 {
	return f.Data[y*f.Width : (y+1)*f.Width]
}

// ComplexField is a complex-valued 2D grid stored in row-major order.
// Frequency-domain coefficients and their inverse live here.
type ComplexField struct {
	Data []complex128

	Width, Height int
}

// NewComplexField allocates a zeroed complex field
func NewComplexField(width, height int) *ComplexField {
	return &ComplexField{
		Data:   make([]complex128, width*height),
		Width:  width,
		Height: height,
	}
}

// At returns the sample at column x, row y
func (c *ComplexField) At(x, y int) complex128 {
	return c.Data[y*c.Width+x]
}

// Size returns the grid dimensions as a point
func (c *ComplexField) Size() image.Point {
	return image.Pt(c.Width, c.Height)
}

// Real projects the real parts into a new field
func (c *ComplexField) Real() *Field {
	return c.project(func(v complex128) float64 { return real(v) })
}

// Imag projects the imaginary parts into a new field
func (c *ComplexField) Imag() *Field {
	return c.project(func(v complex128) float64 { return imag(v) })
}

// Abs projects the magnitudes into a new field
func (c *ComplexField) Abs() *Field {
	return c.project(cmplx.Abs)
}

func (c *ComplexField) project(fn func(complex128) float64) *Field {
	f := NewField(c.Width, c.Height)
	for i, v := range c.Data {
		f.Data[i] = fn(v)
	}
	return f
}
