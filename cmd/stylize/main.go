// Command stylize runs the conversion pipeline on local files without the
// HTTP service.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dunamismax/stylizer/internal/config"
	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/inference"
	"github.com/dunamismax/stylizer/internal/logging"
	"github.com/dunamismax/stylizer/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:          "stylize",
		Short:        "Photo to anime-style converter",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("model-dir", v.GetString("MODEL_RESOURCE_DIR"), "Directory holding the style model")
	flags.String("model", v.GetString("MODEL_FILE"), "Style model file name")
	flags.String("alignment", v.GetString("MODEL_ALIGNMENT"), "Dimension alignment: standard or fine")
	flags.String("resampler", v.GetString("MODEL_RESAMPLER"), "Resize kernel: bilinear, catmullrom or lanczos3")
	flags.Bool("identity", v.GetBool("MODEL_IDENTITY"), "Skip the model and only run the pixel pipeline")
	flags.String("log-level", v.GetString("STYLIZER_LOG_LEVEL"), "Log level")

	bindFlags(v, root, map[string]string{
		"model-dir": "MODEL_RESOURCE_DIR",
		"model":     "MODEL_FILE",
		"alignment": "MODEL_ALIGNMENT",
		"resampler": "MODEL_RESAMPLER",
		"identity":  "MODEL_IDENTITY",
		"log-level": "STYLIZER_LOG_LEVEL",
	})

	root.AddCommand(convertCommand(v))
	return root
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		_ = v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag))
	}
}

func convertCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "convert [input] [output.png]",
		Short: "Stylize one image file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromViper(v)
			logger := logging.NewConsole(cfg.LogLevel)
			return convertFile(cmd.Context(), cfg.Model, args[0], args[1], logger)
		},
	}
}

func convertFile(ctx context.Context, cfg config.ModelConfig, inPath, outPath string, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	policy, err := domain.ParseAlignmentPolicy(cfg.Alignment)
	if err != nil {
		return err
	}
	resampler, err := pipeline.ParseResampler(cfg.Resampler)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if err := (domain.Upload{Filename: filepath.Base(inPath), Data: data}).Validate(); err != nil {
		return err
	}

	if err := pipeline.Startup(); err != nil {
		return fmt.Errorf("image runtime startup: %w", err)
	}
	defer pipeline.Shutdown()

	model, err := inference.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer model.Close()

	processor, err := pipeline.NewProcessor(model, policy,
		pipeline.WithResampler(resampler),
		pipeline.WithMaxPixels(cfg.MaxPixels),
	)
	if err != nil {
		return err
	}

	result, err := processor.Process(ctx, data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, result.PNG, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	event := logger.Info().
		Str("input", inPath).
		Str("output", outPath).
		Int("width", result.Width).
		Int("height", result.Height)
	for _, st := range result.Stages {
		event = event.Dur(st.Stage, st.Duration)
	}
	event.Msg("converted")
	return nil
}
