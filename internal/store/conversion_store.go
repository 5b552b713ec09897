package store

import (
	"context"

	"github.com/dunamismax/stylizer/internal/domain"
)

type ConversionStore interface {
	Save(ctx context.Context, c domain.Conversion) error
	Get(ctx context.Context, id string) (domain.Conversion, bool, error)
}
