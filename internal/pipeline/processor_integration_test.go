package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/stylizer/internal/domain"
	"github.com/dunamismax/stylizer/internal/inference"
	"github.com/dunamismax/stylizer/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_WorkingSizes(t *testing.T) {
	tests := []struct {
		name       string
		source     []byte
		policy     domain.AlignmentPolicy
		wantWidth  int
		wantHeight int
	}{
		{
			name:       "small jpeg floors to min side",
			source:     buildTestJPEG(t, 100, 50),
			policy:     domain.AlignmentStandard,
			wantWidth:  256,
			wantHeight: 256,
		},
		{
			name:       "standard rounds to 8",
			source:     buildTestPNG(t, 1000, 513),
			policy:     domain.AlignmentStandard,
			wantWidth:  1000,
			wantHeight: 512,
		},
		{
			name:       "fine rounds to 16",
			source:     buildTestPNG(t, 1000, 513),
			policy:     domain.AlignmentFine,
			wantWidth:  992,
			wantHeight: 512,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			processor, err := NewProcessor(inference.Identity{}, tc.policy)
			require.NoError(t, err)

			result, err := processor.Process(context.Background(), tc.source)
			require.NoError(t, err)
			assert.Equal(t, tc.wantWidth, result.Width)
			assert.Equal(t, tc.wantHeight, result.Height)

			img, format, err := image.Decode(bytes.NewReader(result.PNG))
			require.NoError(t, err)
			assert.Equal(t, "png", format)
			assert.Equal(t, tc.wantWidth, img.Bounds().Dx())
			assert.Equal(t, tc.wantHeight, img.Bounds().Dy())
		})
	}
}

func TestProcessor_IdentityPreservesColors(t *testing.T) {
	processor, err := NewProcessor(inference.Identity{}, domain.AlignmentStandard)
	require.NoError(t, err)

	result, err := processor.Process(context.Background(), buildTestPNG(t, 256, 256))
	require.NoError(t, err)
	assert.Equal(t, 256, result.SourceWidth)

	img, err := png.Decode(bytes.NewReader(result.PNG))
	require.NoError(t, err)
	r, g, b, _ := img.At(128, 64).RGBA()
	assert.InDelta(t, 127, int(r>>8), 1)
	assert.InDelta(t, 63, int(g>>8), 1)
	assert.InDelta(t, 140, int(b>>8), 1)
}

func TestProcessor_Errors(t *testing.T) {
	tests := []struct {
		name     string
		model    inference.Model
		input    []byte
		wantKind domain.ErrorKind
	}{
		{
			name:     "corrupt bytes",
			model:    inference.Identity{},
			input:    []byte("definitely not an image"),
			wantKind: domain.KindDecode,
		},
		{
			name:     "model failure",
			model:    stubModel{err: errors.New("session crashed")},
			input:    buildTestPNG(t, 32, 32),
			wantKind: domain.KindInference,
		},
		{
			name:     "model returns batch of two",
			model:    stubModel{shape: []int64{2, 256, 256, 3}},
			input:    buildTestPNG(t, 32, 32),
			wantKind: domain.KindShape,
		},
		{
			name:     "model changes spatial size",
			model:    stubModel{shape: []int64{1, 128, 128, 3}},
			input:    buildTestPNG(t, 32, 32),
			wantKind: domain.KindShape,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			processor, err := NewProcessor(tc.model, domain.AlignmentStandard)
			require.NoError(t, err)

			_, err = processor.Process(context.Background(), tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, domain.KindOf(err))
		})
	}
}

func TestProcessor_ObservesStages(t *testing.T) {
	obs := &recordingObserver{}
	processor, err := NewProcessor(inference.Identity{}, domain.AlignmentStandard, WithObserver(obs))
	require.NoError(t, err)

	result, err := processor.Process(context.Background(), buildTestPNG(t, 64, 64))
	require.NoError(t, err)

	want := []string{StageDecode, StagePreprocess, StageInference, StagePostprocess, StageEncode}
	assert.Equal(t, want, obs.stages)
	require.Len(t, result.Stages, len(want))
	for i, st := range result.Stages {
		assert.Equal(t, want[i], st.Stage)
	}
}

func TestProcessor_RejectsOversizedSources(t *testing.T) {
	processor, err := NewProcessor(inference.Identity{}, domain.AlignmentStandard)
	require.NoError(t, err)

	// Only the header exists; decoding pixel data would fail anyway, so a
	// DecodeError naming the limit proves the header check ran first.
	_, err = processor.Process(context.Background(), pngHeaderOnly(100_000, 100_000))
	require.Error(t, err)
	assert.Equal(t, domain.KindDecode, domain.KindOf(err))
	assert.Contains(t, err.Error(), "pixel limit")

	small, err := NewProcessor(inference.Identity{}, domain.AlignmentStandard, WithMaxPixels(100))
	require.NoError(t, err)
	_, err = small.Process(context.Background(), buildTestPNG(t, 20, 20))
	assert.Equal(t, domain.KindDecode, domain.KindOf(err))

	unlimited, err := NewProcessor(inference.Identity{}, domain.AlignmentStandard, WithMaxPixels(0))
	require.NoError(t, err)
	_, err = unlimited.Process(context.Background(), buildTestPNG(t, 20, 20))
	assert.NoError(t, err)
}

// pngHeaderOnly returns a PNG signature and IHDR chunk declaring w x h RGB.
func pngHeaderOnly(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestNewProcessorRequiresModel(t *testing.T) {
	_, err := NewProcessor(nil, domain.AlignmentStandard)
	assert.Error(t, err)
}

type stubModel struct {
	shape []int64
	err   error
}

func (m stubModel) Infer(_ tensor.Tensor) (tensor.Tensor, error) {
	if m.err != nil {
		return tensor.Tensor{}, m.err
	}
	n := int64(1)
	for _, d := range m.shape {
		n *= d
	}
	return tensor.New(m.shape, make([]float32, n))
}

func (stubModel) Name() string { return "stub" }

func (stubModel) Close() error { return nil }

type recordingObserver struct {
	mu     sync.Mutex
	stages []string
}

func (o *recordingObserver) ObserveStage(stage string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

func testGradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}
	return img
}

func buildTestPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, testGradient(w, h)); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func buildTestJPEG(t testing.TB, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testGradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode source jpeg: %v", err)
	}
	return buf.Bytes()
}
