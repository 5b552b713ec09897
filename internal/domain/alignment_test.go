package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDimension(t *testing.T) {
	tests := []struct {
		name   string
		x      int
		policy AlignmentPolicy
		want   int
	}{
		{name: "tiny floors to min side", x: 1, policy: AlignmentStandard, want: 256},
		{name: "just below min side", x: 255, policy: AlignmentFine, want: 256},
		{name: "exact min side", x: 256, policy: AlignmentStandard, want: 256},
		{name: "rounds down to 8", x: 513, policy: AlignmentStandard, want: 512},
		{name: "rounds down to 16", x: 513, policy: AlignmentFine, want: 512},
		{name: "multiple of 8 kept", x: 1000, policy: AlignmentStandard, want: 1000},
		{name: "multiple of 8 not of 16", x: 1000, policy: AlignmentFine, want: 992},
		{name: "just above min side fine", x: 271, policy: AlignmentFine, want: 256},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDimension(tc.x, tc.policy))
		})
	}
}

func TestNormalizeDimensionProperties(t *testing.T) {
	for _, policy := range []AlignmentPolicy{AlignmentStandard, AlignmentFine} {
		for x := 1; x <= 4096; x++ {
			got := NormalizeDimension(x, policy)
			if x < MinSide {
				require.Equal(t, MinSide, got, "x=%d policy=%s", x, policy)
			} else {
				require.Zero(t, got%policy.Divisor(), "x=%d policy=%s", x, policy)
				require.LessOrEqual(t, got, x)
				require.Greater(t, got, x-policy.Divisor())
			}
			require.Equal(t, got, NormalizeDimension(got, policy), "not idempotent at x=%d", x)
		}
	}
}

func TestNormalizeSize(t *testing.T) {
	w, h := NormalizeSize(100, 50, AlignmentStandard)
	assert.Equal(t, 256, w)
	assert.Equal(t, 256, h)

	w, h = NormalizeSize(1000, 513, AlignmentStandard)
	assert.Equal(t, 1000, w)
	assert.Equal(t, 512, h)

	w, h = NormalizeSize(1000, 513, AlignmentFine)
	assert.Equal(t, 992, w)
	assert.Equal(t, 512, h)
}

func TestParseAlignmentPolicy(t *testing.T) {
	p, err := ParseAlignmentPolicy("")
	require.NoError(t, err)
	assert.Equal(t, AlignmentStandard, p)

	p, err = ParseAlignmentPolicy(" Fine ")
	require.NoError(t, err)
	assert.Equal(t, AlignmentFine, p)
	assert.Equal(t, 16, p.Divisor())

	_, err = ParseAlignmentPolicy("AnimeGANv3_tiny.onnx")
	assert.Error(t, err)
}
