package pipeline

import (
	"fmt"
	"math"

	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/tensor"
)

const sampleScale = 127.5

// Forward resizes src to width x height and packs it as a (1, h, w, 3) RGB
// tensor with samples mapped from [0, 255] to [-1, 1].
func Forward(src Raster, width, height int, resampler Resampler) (tensor.Tensor, error) {
	if width <= 0 || height <= 0 {
		return tensor.Tensor{}, domain.NewError(domain.KindInvalidDimension,
			fmt.Sprintf("invalid working size %dx%d", width, height), nil)
	}
	if !src.valid() {
		return tensor.Tensor{}, domain.NewError(domain.KindInvalidDimension,
			fmt.Sprintf("invalid source size %dx%d", src.Width, src.Height), nil)
	}

	resized, err := resampler.Resize(src, width, height)
	if err != nil {
		return tensor.Tensor{}, domain.NewError(domain.KindInvalidDimension, "resize source image", err)
	}
	rgb := resized.Reorder(OrderRGB)

	data := make([]float32, len(rgb.Pix))
	for i, v := range rgb.Pix {
		data[i] = float32(v)/sampleScale - 1
	}
	return tensor.New([]int64{1, int64(height), int64(width), 3}, data)
}

// Inverse unpacks a model output of shape (1, h, w, 3) or (h, w, 3) into a
// raster in the given order. Out-of-range samples are clipped.
func Inverse(t tensor.Tensor, order ChannelOrder) (Raster, error) {
	hwc, err := t.SqueezeBatch()
	if err != nil {
		return Raster{}, err
	}
	if hwc.Shape[2] != 3 {
		return Raster{}, domain.NewError(domain.KindShape,
			fmt.Sprintf("expected 3 channels, got shape %v", t.Shape), nil)
	}
	height, width := int(hwc.Shape[0]), int(hwc.Shape[1])
	if height <= 0 || width <= 0 || len(hwc.Data) != height*width*3 {
		return Raster{}, domain.NewError(domain.KindShape,
			fmt.Sprintf("output shape %v does not match %d values", t.Shape, len(hwc.Data)), nil)
	}

	out := NewRaster(width, height, OrderRGB)
	for i, v := range hwc.Data {
		out.Pix[i] = denormalize(v)
	}
	return out.Reorder(order), nil
}

func denormalize(v float32) uint8 {
	x := (float64(v) + 1) * sampleScale
	switch {
	case math.IsNaN(x) || x <= 0:
		return 0
	case x >= 255:
		return 255
	}
	return uint8(math.Round(x))
}
