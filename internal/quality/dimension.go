// Package quality holds the scoring and edit data model shared by the
// fixers, the orchestrator, the reconciler, and the refinement loop.
package quality

import (
	"fmt"
	"math"
	"strings"
)

// Dimension is one fixed quality axis a document is scored on.
type Dimension string

const (
	LogicalCoherence    Dimension = "logical-coherence"
	InternalConsistency Dimension = "internal-consistency"
	EvidenceQuality     Dimension = "evidence-quality"
	Accessibility       Dimension = "accessibility"
	Objectivity         Dimension = "objectivity"
	FactualAccuracy     Dimension = "factual-accuracy"
	BiasDetection       Dimension = "bias-detection"
)

// Dimensions lists every dimension in enumeration order. Anything that must
// be reproducible across runs (fan-out slots, edit aggregation) iterates
// this slice rather than a map.
var Dimensions = [...]Dimension{
	LogicalCoherence,
	InternalConsistency,
	EvidenceQuality,
	Accessibility,
	Objectivity,
	FactualAccuracy,
	BiasDetection,
}

// MinScore and MaxScore bound every dimension and overall score.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Index returns the enumeration position of d, or -1 for an unknown value.
func (d Dimension) Index() int {
	for i, known := range Dimensions {
		if known == d {
			return i
		}
	}
	return -1
}

// Valid reports whether d is one of the seven known dimensions.
func (d Dimension) Valid() bool {
	return d.Index() >= 0
}

func (d Dimension) String() string {
	return string(d)
}

// ParseDimension accepts the canonical kebab-case name as well as
// camelCase and snake_case spellings ("evidenceQuality", "evidence_quality").
func ParseDimension(s string) (Dimension, error) {
	norm := normalizeDimensionName(s)
	for _, d := range Dimensions {
		if normalizeDimensionName(string(d)) == norm {
			return d, nil
		}
	}
	// The scoring collaborator historically reports bias as "bias".
	if norm == "bias" {
		return BiasDetection, nil
	}
	return "", fmt.Errorf("quality: unknown dimension %q", s)
}

func normalizeDimensionName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '-' || r == '_' || r == ' ':
			continue
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DimensionScores maps every dimension to its score for one document.
type DimensionScores map[Dimension]float64

// Validate checks that exactly the seven known dimensions are present and
// that every score lies in [MinScore, MaxScore].
func (s DimensionScores) Validate() error {
	if len(s) != len(Dimensions) {
		return fmt.Errorf("quality: expected %d dimension scores, got %d", len(Dimensions), len(s))
	}
	for _, d := range Dimensions {
		v, ok := s[d]
		if !ok {
			return fmt.Errorf("quality: missing score for dimension %q", d)
		}
		if err := validateScore(v); err != nil {
			return fmt.Errorf("quality: dimension %q: %w", d, err)
		}
	}
	return nil
}

// Below returns, in enumeration order, the dimensions whose score is
// strictly below threshold.
func (s DimensionScores) Below(threshold float64) []Dimension {
	var out []Dimension
	for _, d := range Dimensions {
		if v, ok := s[d]; ok && v < threshold {
			out = append(out, d)
		}
	}
	return out
}

// Clone returns an independent copy.
func (s DimensionScores) Clone() DimensionScores {
	out := make(DimensionScores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func validateScore(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("score %v is not a finite number", v)
	}
	if v < MinScore || v > MaxScore {
		return fmt.Errorf("score %.2f out of range [%.0f, %.0f]", v, MinScore, MaxScore)
	}
	return nil
}
