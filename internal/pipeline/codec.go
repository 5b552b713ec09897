package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"github.com/dunamismax/stylizer/internal/domain"
)

// Codec turns encoded uploads into rasters and rasters into PNG bytes.
type Codec interface {
	Decode(data []byte) (Raster, error)
	Encode(r Raster) ([]byte, error)
	// Order is the channel order Decode produces and Encode expects.
	Order() ChannelOrder
}

// DefaultMaxPixels matches the decoder limit of common imaging libraries.
const DefaultMaxPixels = int64(1) << 30

// checkPixelLimit reads only the image header. Headers it cannot parse are
// left for the codec to reject.
func checkPixelLimit(data []byte, limit int64) error {
	if limit <= 0 {
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > limit {
		return domain.NewError(domain.KindDecode, fmt.Sprintf(
			"source image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, limit), nil)
	}
	return nil
}

type stdlibCodec struct{}

func (stdlibCodec) Order() ChannelOrder {
	return OrderRGB
}

func (c stdlibCodec) Decode(data []byte) (Raster, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Raster{}, domain.NewError(domain.KindDecode, "decode source image", err)
	}
	return rasterFromImage(img, c.Order()), nil
}

func (stdlibCodec) Encode(r Raster) ([]byte, error) {
	if !r.valid() {
		return nil, domain.NewError(domain.KindEncode, "encode png: raster has invalid dimensions", nil)
	}

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, r.Reorder(OrderRGB).image()); err != nil {
		return nil, domain.NewError(domain.KindEncode, "encode png", err)
	}
	return buf.Bytes(), nil
}
