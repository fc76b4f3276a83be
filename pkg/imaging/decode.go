// Package imaging turns upload bytes into rasters and rasters into
// single-channel intensity fields.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"

	"imagelab/internal/models"
)

var (
	// ErrUnsupportedFormat is returned when the upload is not a JPEG or PNG image
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrEmptyUpload is returned when the upload carries no bytes
	ErrEmptyUpload = errors.New("empty upload")

	// ErrTooLarge is returned when the image header declares more pixels
	// than allowed
	ErrTooLarge = errors.New("image too large")
)

// accepted lists the decoder names the upload interface allows
var accepted = map[string]bool{
	"jpeg": true,
	"png":  true,
}

// Decode reads a JPEG or PNG image from r. The header is checked before the
// pixels are decoded, and images with more than maxPixels pixels fail with
// ErrTooLarge. A non-positive maxPixels disables the check.
func Decode(r io.Reader, maxPixels int) (*models.Raster, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if !accepted[format] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrUnsupportedFormat)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); maxPixels > 0 && pixels > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrUnsupportedFormat)
	}

	return &models.Raster{
		Image:    img,
		Format:   format,
		Channels: channelCount(img),
	}, nil
}

// channelCount reports 1 for gray colour models and 3 for everything else
func channelCount(img image.Image) int {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	}
	return 3
}

// Resize downscales r so that neither side exceeds maxDim, keeping the
// aspect ratio. A non-positive maxDim or a raster that already fits is
// returned as-is.
func Resize(r *models.Raster, maxDim int) *models.Raster {
	size := r.Size()
	if maxDim <= 0 || (size.X <= maxDim && size.Y <= maxDim) {
		return r
	}

	ratio := float64(maxDim) / float64(max(size.X, size.Y))
	newW := max(1, int(float64(size.X)*ratio+0.5))
	newH := max(1, int(float64(size.Y)*ratio+0.5))

	var dst draw.Image
	if r.Channels == 1 {
		dst = image.NewGray(image.Rect(0, 0, newW, newH))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, newW, newH))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), r.Image, r.Image.Bounds(), draw.Src, nil)

	return &models.Raster{
		Image:    dst,
		Format:   r.Format,
		Channels: r.Channels,
	}
}
