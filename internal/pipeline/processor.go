package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/inference"
	"github.com/dunamismax/stylizer/internal/tensor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	StageDecode      = "decode"
	StagePreprocess  = "preprocess"
	StageInference   = "inference"
	StagePostprocess = "postprocess"
	StageEncode      = "encode"
)

// Observer receives the duration of every stage a conversion runs.
type Observer interface {
	ObserveStage(stage string, d time.Duration, err error)
}

type StageTiming struct {
	Stage    string
	Duration time.Duration
}

type Result struct {
	PNG          []byte
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
	Stages       []StageTiming
}

type Processor struct {
	model     inference.Model
	policy    domain.AlignmentPolicy
	codec     Codec
	resampler Resampler
	maxPixels int64
	observer  Observer
	tracer    trace.Tracer
}

type Option func(*Processor)

func WithResampler(r Resampler) Option {
	return func(p *Processor) { p.resampler = r }
}

func WithCodec(c Codec) Option {
	return func(p *Processor) { p.codec = c }
}

// WithMaxPixels rejects sources whose header declares more than n pixels
// before any pixel data is decoded. n <= 0 disables the check.
func WithMaxPixels(n int64) Option {
	return func(p *Processor) { p.maxPixels = n }
}

func WithObserver(o Observer) Option {
	return func(p *Processor) { p.observer = o }
}

func NewProcessor(model inference.Model, policy domain.AlignmentPolicy, opts ...Option) (*Processor, error) {
	if model == nil {
		return nil, errors.New("style model is required")
	}

	p := &Processor{
		model:     model,
		policy:    policy,
		codec:     newCodec(),
		maxPixels: DefaultMaxPixels,
		tracer:    otel.Tracer("stylizer/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.resampler == nil {
		r, err := ParseResampler(ResamplerBilinear)
		if err != nil {
			return nil, fmt.Errorf("build resampler: %w", err)
		}
		p.resampler = r
	}
	return p, nil
}

func (p *Processor) Policy() domain.AlignmentPolicy {
	return p.policy
}

// Process converts an encoded photo into a stylized PNG. It always runs to
// completion or failure; ctx only carries the trace.
func (p *Processor) Process(ctx context.Context, input []byte) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.convert")
	defer span.End()
	span.SetAttributes(
		attribute.Int("image.source_bytes", len(input)),
		attribute.String("model.name", p.model.Name()),
		attribute.String("model.alignment", p.policy.String()),
	)

	var (
		res    Result
		src    Raster
		in     tensor.Tensor
		out    tensor.Tensor
		styled Raster
	)

	err := p.stage(ctx, &res, StageDecode, func() (err error) {
		if err := checkPixelLimit(input, p.maxPixels); err != nil {
			return err
		}
		src, err = p.codec.Decode(input)
		return err
	})
	if err == nil {
		res.SourceWidth, res.SourceHeight = src.Width, src.Height
		res.Width, res.Height = domain.NormalizeSize(src.Width, src.Height, p.policy)
		err = p.stage(ctx, &res, StagePreprocess, func() (err error) {
			in, err = Forward(src, res.Width, res.Height, p.resampler)
			return err
		})
	}
	if err == nil {
		err = p.stage(ctx, &res, StageInference, func() (err error) {
			out, err = p.model.Infer(in)
			if err != nil && domain.KindOf(err) == domain.KindInternal {
				err = domain.NewError(domain.KindInference, "run style model", err)
			}
			return err
		})
	}
	if err == nil {
		err = p.stage(ctx, &res, StagePostprocess, func() (err error) {
			styled, err = Inverse(out, p.codec.Order())
			if err == nil && (styled.Width != res.Width || styled.Height != res.Height) {
				err = domain.NewError(domain.KindShape, fmt.Sprintf(
					"model returned %dx%d for a %dx%d input", styled.Width, styled.Height, res.Width, res.Height), nil)
			}
			return err
		})
	}
	if err == nil {
		err = p.stage(ctx, &res, StageEncode, func() (err error) {
			res.PNG, err = p.codec.Encode(styled)
			return err
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("image.width", res.Width),
		attribute.Int("image.height", res.Height),
	)
	span.SetStatus(codes.Ok, "converted")
	return res, nil
}

func (p *Processor) stage(ctx context.Context, res *Result, name string, fn func() error) error {
	_, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	started := time.Now()
	err := fn()
	elapsed := time.Since(started)

	res.Stages = append(res.Stages, StageTiming{Stage: name, Duration: elapsed})
	if p.observer != nil {
		p.observer.ObserveStage(name, elapsed, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
	}
	return err
}
