package pipeline

import (
	"image"

	"golang.org/x/image/draw"
)

// ChannelOrder is the sample order inside each interleaved pixel.
type ChannelOrder int

const (
	OrderRGB ChannelOrder = iota
	OrderBGR
)

func (o ChannelOrder) String() string {
	if o == OrderBGR {
		return "bgr"
	}
	return "rgb"
}

// Raster is an interleaved 3-channel, 8-bit image buffer.
type Raster struct {
	Width  int
	Height int
	Order  ChannelOrder
	Pix    []uint8
}

func NewRaster(width, height int, order ChannelOrder) Raster {
	return Raster{
		Width:  width,
		Height: height,
		Order:  order,
		Pix:    make([]uint8, width*height*3),
	}
}

func (r Raster) valid() bool {
	return r.Width > 0 && r.Height > 0 && len(r.Pix) == r.Width*r.Height*3
}

// Reorder returns r with its samples arranged in the requested order. The
// receiver is returned as-is when no swap is needed.
func (r Raster) Reorder(to ChannelOrder) Raster {
	if r.Order == to {
		return r
	}
	out := Raster{Width: r.Width, Height: r.Height, Order: to, Pix: make([]uint8, len(r.Pix))}
	for i := 0; i+2 < len(r.Pix); i += 3 {
		out.Pix[i] = r.Pix[i+2]
		out.Pix[i+1] = r.Pix[i+1]
		out.Pix[i+2] = r.Pix[i]
	}
	return out
}

// image exposes the raster as an opaque NRGBA image. Channel slots are copied
// verbatim, so the result is only color-correct for RGB rasters; resampling
// works per channel and does not care.
func (r Raster) image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i, j := 0, 0; i+2 < len(r.Pix); i, j = i+3, j+4 {
		img.Pix[j] = r.Pix[i]
		img.Pix[j+1] = r.Pix[i+1]
		img.Pix[j+2] = r.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// rasterFromImage flattens img into a raster, dropping alpha without
// compositing. Slots are taken as already being in the given order.
func rasterFromImage(img image.Image, order ChannelOrder) Raster {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	out := NewRaster(b.Dx(), b.Dy(), order)
	for y := 0; y < out.Height; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < out.Width; x++ {
			o := (y*out.Width + x) * 3
			out.Pix[o] = row[x*4]
			out.Pix[o+1] = row[x*4+1]
			out.Pix[o+2] = row[x*4+2]
		}
	}
	return out
}
