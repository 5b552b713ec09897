//go:build govips && cgo

package pipeline

import (
	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/stylizer/internal/domain"
)

// govipsCodec decodes through libvips so camera uploads are rotated by their
// EXIF orientation before resizing. Encoding stays on the stdlib PNG writer.
type govipsCodec struct {
	stdlibCodec
}

func (c govipsCodec) Decode(data []byte) (Raster, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return Raster{}, domain.NewError(domain.KindDecode, "decode source image", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return Raster{}, domain.NewError(domain.KindDecode, "auto-rotate source image", err)
	}

	decoded, err := img.ToImage(vips.NewDefaultPNGExportParams())
	if err != nil {
		return Raster{}, domain.NewError(domain.KindDecode, "export source image", err)
	}
	return rasterFromImage(decoded, c.Order()), nil
}
