// Package tensor holds the dense float32 NHWC arrays exchanged with the style model.
package tensor

import (
	"fmt"

	"github.com/dunamismax/stylizer/internal/domain"
)

type Tensor struct {
	Shape []int64
	Data  []float32
}

func New(shape []int64, data []float32) (Tensor, error) {
	n, err := elements(shape)
	if err != nil {
		return Tensor{}, err
	}
	if int64(len(data)) != n {
		return Tensor{}, domain.NewError(domain.KindShape,
			fmt.Sprintf("tensor shape %v needs %d values, got %d", shape, n, len(data)), nil)
	}
	return Tensor{Shape: append([]int64(nil), shape...), Data: data}, nil
}

func (t Tensor) Rank() int {
	return len(t.Shape)
}

// SqueezeBatch drops a leading batch axis of size 1. Rank-3 tensors are
// returned unchanged.
func (t Tensor) SqueezeBatch() (Tensor, error) {
	switch t.Rank() {
	case 3:
		return t, nil
	case 4:
		if t.Shape[0] != 1 {
			return Tensor{}, domain.NewError(domain.KindShape,
				fmt.Sprintf("expected batch size 1, got %d", t.Shape[0]), nil)
		}
		return Tensor{Shape: append([]int64(nil), t.Shape[1:]...), Data: t.Data}, nil
	default:
		return Tensor{}, domain.NewError(domain.KindShape,
			fmt.Sprintf("expected rank 3 or 4 tensor, got shape %v", t.Shape), nil)
	}
}

func elements(shape []int64) (int64, error) {
	if len(shape) == 0 {
		return 0, domain.NewError(domain.KindShape, "tensor shape is empty", nil)
	}
	n := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return 0, domain.NewError(domain.KindShape, fmt.Sprintf("tensor shape %v has non-positive axis", shape), nil)
		}
		n *= d
	}
	return n, nil
}
