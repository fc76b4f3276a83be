package imaging

import (
	"image"
	"image/color"

	"imagelab/internal/models"
)

// Grayscale reduces a colour raster to a single 8-bit luminance channel.
// A raster that is already single-channel is returned unchanged.
func Grayscale(r *models.Raster) *models.Raster {
	if r.Channels == 1 {
		return r
	}

	bounds := r.Image.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			c := color.NRGBAModel.Convert(r.Image.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			gray.Pix[y*gray.Stride+x] = luma(c.R, c.G, c.B)
		}
	}

	return &models.Raster{
		Image:    gray,
		Format:   r.Format,
		Channels: 1,
	}
}

// luma applies the ITU-R BT.601 weights and rounds to the nearest level
func luma(r, g, b uint8) uint8 {
	y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return clamp8(y + 0.5)
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// IntensityField converts a single-channel raster to float samples in 0..255.
// Colour rasters are reduced with Grayscale first.
func IntensityField(r *models.Raster) *models.Field {
	r = Grayscale(r)
	bounds := r.Image.Bounds()
	field := models.NewField(bounds.Dx(), bounds.Dy())

	switch img := r.Image.(type) {
	case *image.Gray:
		for y := 0; y < field.Height; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+field.Width]
			dst := field.Row(y)
			for x, v := range row {
				dst[x] = float64(v)
			}
		}
	default:
		for y := 0; y < field.Height; y++ {
			for x := 0; x < field.Width; x++ {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				field.Set(x, y, float64(g.Y>>8))
			}
		}
	}

	return field
}
