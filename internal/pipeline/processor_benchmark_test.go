package pipeline

import (
	"context"
	"testing"

	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/inference"
)

func BenchmarkProcessorIdentity(b *testing.B) {
	source := buildTestPNG(b, 1920, 1080)
	processor, err := NewProcessor(inference.Identity{}, domain.AlignmentStandard)
	if err != nil {
		b.Fatalf("new processor: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := processor.Process(context.Background(), source); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

func BenchmarkForward(b *testing.B) {
	src := gradientRaster(1920, 1080, OrderRGB)
	for _, name := range []string{ResamplerBilinear, ResamplerLanczos3} {
		resampler, err := ParseResampler(name)
		if err != nil {
			b.Fatalf("parse resampler: %v", err)
		}
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Forward(src, 1024, 576, resampler); err != nil {
					b.Fatalf("forward: %v", err)
				}
			}
		})
	}
}
