package inference

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/tensor"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

type ONNXConfig struct {
	ResourceDir       string
	ModelFile         string
	SharedLibraryPath string
	IntraOpThreads    int
}

// ONNXModel runs an NHWC style graph with free height and width axes.
type ONNXModel struct {
	name    string
	session *ort.DynamicAdvancedSession
	input   string
	output  string
}

func LoadONNX(cfg ONNXConfig, logger zerolog.Logger) (*ONNXModel, error) {
	modelPath, err := ResolveModelPath(cfg.ResourceDir, cfg.ModelFile, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("model_path", modelPath).Msg("loading style model")

	if err := initializeEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("read model io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected one input and one output, got in=%d out=%d", len(inputs), len(outputs))
	}
	if dims := inputs[0].Dimensions; len(dims) != 4 || (dims[3] > 0 && dims[3] != 3) {
		return nil, fmt.Errorf("expected NHWC input with 3 channels, got %v", dims)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			logger.Warn().Err(err).Msg("destroy session options")
		}
	}()
	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	logger.Info().
		Str("input", inputs[0].Name).
		Str("output", outputs[0].Name).
		Msg("style model loaded")

	return &ONNXModel{
		name:    filepath.Base(modelPath),
		session: session,
		input:   inputs[0].Name,
		output:  outputs[0].Name,
	}, nil
}

// ResolveModelPath joins the model file onto the resource directory and
// logs the directory contents when the file is missing.
func ResolveModelPath(resourceDir, modelFile string, logger zerolog.Logger) (string, error) {
	if strings.TrimSpace(modelFile) == "" {
		return "", errors.New("model file is required")
	}

	path := modelFile
	if !filepath.IsAbs(path) {
		base := resourceDir
		if strings.TrimSpace(base) == "" {
			base = "."
		}
		path = filepath.Join(base, modelFile)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve model path %s: %w", path, err)
	}

	if _, err := os.Stat(abs); err != nil {
		dir := filepath.Dir(abs)
		if entries, readErr := os.ReadDir(dir); readErr == nil {
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			logger.Error().Str("dir", dir).Strs("entries", names).Msg("model file not found")
		}
		return "", fmt.Errorf("model file does not exist: %s: %w", abs, err)
	}
	return abs, nil
}

func initializeEnvironment(sharedLibraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if sharedLibraryPath != "" {
		ort.SetSharedLibraryPath(sharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnx environment: %w", err)
	}
	return nil
}

func (m *ONNXModel) Name() string {
	return m.name
}

func (m *ONNXModel) Infer(input tensor.Tensor) (tensor.Tensor, error) {
	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return tensor.Tensor{}, domain.NewError(domain.KindInference, "create input tensor", err)
	}
	defer in.Destroy()

	outputs := []ort.ArbitraryTensor{nil}
	if err := m.session.Run([]ort.ArbitraryTensor{in}, outputs); err != nil {
		return tensor.Tensor{}, domain.NewError(domain.KindInference, "run style model", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return tensor.Tensor{}, domain.NewError(domain.KindInference,
			fmt.Sprintf("unexpected output type %T", outputs[0]), nil)
	}

	// The runtime owns the output buffer; copy before Destroy.
	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())
	return tensor.New([]int64(out.GetShape()), data)
}

func (m *ONNXModel) Close() error {
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
		m.session = nil
	}

	envMu.Lock()
	if ort.IsInitialized() {
		errs = append(errs, ort.DestroyEnvironment())
	}
	envMu.Unlock()
	return errors.Join(errs...)
}
