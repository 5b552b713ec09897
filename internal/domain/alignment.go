package domain

import (
	"fmt"
	"strings"
)

// MinSide is the smallest working dimension the style model accepts.
const MinSide = 256

// AlignmentPolicy selects the multiple that working dimensions are rounded
// down to before inference.
type AlignmentPolicy int

const (
	AlignmentStandard AlignmentPolicy = iota
	AlignmentFine
)

func ParseAlignmentPolicy(s string) (AlignmentPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return AlignmentStandard, nil
	case "fine":
		return AlignmentFine, nil
	default:
		return AlignmentStandard, fmt.Errorf("unsupported alignment policy: %q", s)
	}
}

func (p AlignmentPolicy) Divisor() int {
	if p == AlignmentFine {
		return 16
	}
	return 8
}

func (p AlignmentPolicy) String() string {
	if p == AlignmentFine {
		return "fine"
	}
	return "standard"
}

// NormalizeDimension floors x to MinSide, otherwise rounds it down to the
// policy divisor. Images smaller than MinSide are stretched, not padded.
func NormalizeDimension(x int, policy AlignmentPolicy) int {
	if x < MinSide {
		return MinSide
	}
	return x - x%policy.Divisor()
}

// NormalizeSize normalizes each axis independently, so aspect ratio may drift
// by up to one divisor step.
func NormalizeSize(width, height int, policy AlignmentPolicy) (int, int) {
	return NormalizeDimension(width, policy), NormalizeDimension(height, policy)
}
