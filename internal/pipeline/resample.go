package pipeline

import (
	"fmt"
	"image"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Resampler scales a raster to an exact size, keeping its channel order.
type Resampler interface {
	Resize(src Raster, width, height int) (Raster, error)
}

const (
	ResamplerBilinear   = "bilinear"
	ResamplerCatmullRom = "catmullrom"
	ResamplerLanczos3   = "lanczos3"
)

func ParseResampler(name string) (Resampler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ResamplerBilinear:
		return kernelResampler{kernel: draw.BiLinear}, nil
	case ResamplerCatmullRom:
		return kernelResampler{kernel: draw.CatmullRom}, nil
	case ResamplerLanczos3:
		return lanczosResampler{}, nil
	default:
		return nil, fmt.Errorf("unsupported resampler: %q", name)
	}
}

type kernelResampler struct {
	kernel *draw.Kernel
}

func (r kernelResampler) Resize(src Raster, width, height int) (Raster, error) {
	if src.Width == width && src.Height == height {
		return src, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	r.kernel.Scale(dst, dst.Bounds(), src.image(), image.Rect(0, 0, src.Width, src.Height), draw.Src, nil)
	return rasterFromImage(dst, src.Order), nil
}

type lanczosResampler struct{}

func (lanczosResampler) Resize(src Raster, width, height int) (Raster, error) {
	if src.Width == width && src.Height == height {
		return src, nil
	}
	out := resize.Resize(uint(width), uint(height), src.image(), resize.Lanczos3)
	if b := out.Bounds(); b.Dx() != width || b.Dy() != height {
		return Raster{}, fmt.Errorf("lanczos3 produced %dx%d, want %dx%d", b.Dx(), b.Dy(), width, height)
	}
	return rasterFromImage(out, src.Order), nil
}
