// Package inference wraps the style model behind a tensor-in, tensor-out
// interface so the conversion pipeline never touches the runtime directly.
package inference

import (
	"github.com/dunamismax/stylizer/internal/config"
	"github.com/dunamismax/stylizer/internal/tensor"
	"github.com/rs/zerolog"
)

// Model is a loaded, read-only style model. Implementations must be safe for
// concurrent Infer calls.
type Model interface {
	Infer(input tensor.Tensor) (tensor.Tensor, error)
	Name() string
	Close() error
}

// Identity returns its input unchanged. It stands in for the style model in
// local runs and tests.
type Identity struct{}

func (Identity) Infer(input tensor.Tensor) (tensor.Tensor, error) {
	data := make([]float32, len(input.Data))
	copy(data, input.Data)
	return tensor.New(input.Shape, data)
}

func (Identity) Name() string {
	return "identity"
}

func (Identity) Close() error {
	return nil
}

// FromConfig loads the configured style model, or Identity when the config
// asks for it.
func FromConfig(cfg config.ModelConfig, logger zerolog.Logger) (Model, error) {
	if cfg.Identity {
		logger.Warn().Msg("using identity model; outputs are not stylized")
		return Identity{}, nil
	}
	return LoadONNX(ONNXConfig{
		ResourceDir:       cfg.ResourceDir,
		ModelFile:         cfg.File,
		SharedLibraryPath: cfg.SharedLibraryPath,
		IntraOpThreads:    cfg.IntraOpThreads,
	}, logger)
}
