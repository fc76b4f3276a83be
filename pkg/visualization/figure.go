// Package visualization turns pipeline grids into 8-bit images, encoded
// artifacts and a labelled panel figure.
package visualization

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// FigureColumns and FigureRows fix the panel layout
	FigureColumns = 3
	FigureRows    = 2

	titleHeight = 20
	margin      = 8
)

// Panel is one titled image in a figure
type Panel struct {
	Title string
	Image image.Image
}

// ComposeFigure lays panels out row by row in a 2x3 grid. Each image is
// scaled to fit a cell x cell square, centred, with its title above it.
// Panels beyond the sixth are ignored.
func ComposeFigure(panels []Panel, cell int) *image.RGBA {
	if cell <= 0 {
		cell = 1
	}

	slotW := cell + 2*margin
	slotH := cell + titleHeight + 2*margin
	fig := image.NewRGBA(image.Rect(0, 0, FigureColumns*slotW, FigureRows*slotH))
	draw.Draw(fig, fig.Bounds(), image.White, image.Point{}, draw.Src)

	for i, p := range panels {
		if i >= FigureColumns*FigureRows {
			break
		}
		col, row := i%FigureColumns, i/FigureColumns
		origin := image.Pt(col*slotW+margin, row*slotH+margin)

		drawTitle(fig, p.Title, origin, cell)

		if p.Image == nil || p.Image.Bounds().Empty() {
			continue
		}
		target := fitRect(p.Image.Bounds().Size(), cell).Add(origin.Add(image.Pt(0, titleHeight)))
		draw.ApproxBiLinear.Scale(fig, target, p.Image, p.Image.Bounds(), draw.Src, nil)
	}

	return fig
}

// fitRect returns the largest rectangle with the aspect ratio of size that
// fits in a cell x cell square, centred in it
func fitRect(size image.Point, cell int) image.Rectangle {
	w, h := cell, cell
	if size.X > size.Y {
		h = max(1, size.Y*cell/size.X)
	} else if size.Y > size.X {
		w = max(1, size.X*cell/size.Y)
	}
	x0 := (cell - w) / 2
	y0 := (cell - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h)
}

func drawTitle(dst draw.Image, title string, origin image.Point, cell int) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	width := d.MeasureString(title).Ceil()
	x := origin.X + max(0, (cell-width)/2)
	y := origin.Y + face.Ascent + 2
	d.Dot = fixed.P(x, y)
	d.DrawString(title)
}
