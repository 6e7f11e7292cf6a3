package quality

import "fmt"

// ConsensusResult is one scoring round's verdict on a document. It is produced
// by the external scoring collaborator and treated as immutable afterwards.
type ConsensusResult struct {
	OverallScore       float64              `json:"overallScore"`
	DimensionScores    DimensionScores      `json:"dimensionScores"`
	OverallCritique    string               `json:"overallCritique,omitempty"`
	DimensionCritiques map[Dimension]string `json:"dimensionCritiques,omitempty"`
}

// Validate checks the overall score range and the dimension score set.
func (c *ConsensusResult) Validate() error {
	if c == nil {
		return fmt.Errorf("quality: consensus result is nil")
	}
	if err := validateScore(c.OverallScore); err != nil {
		return fmt.Errorf("quality: overall %w", err)
	}
	return c.DimensionScores.Validate()
}

// Critique returns the critique for d, falling back to the overall critique
// when the scorer left the dimension blank.
func (c *ConsensusResult) Critique(d Dimension) string {
	if c.DimensionCritiques != nil {
		if s := c.DimensionCritiques[d]; s != "" {
			return s
		}
	}
	return c.OverallCritique
}

// Clone returns a deep copy so callers can hold a consensus without sharing
// its maps.
func (c *ConsensusResult) Clone() *ConsensusResult {
	if c == nil {
		return nil
	}
	out := *c
	out.DimensionScores = c.DimensionScores.Clone()
	if c.DimensionCritiques != nil {
		out.DimensionCritiques = make(map[Dimension]string, len(c.DimensionCritiques))
		for k, v := range c.DimensionCritiques {
			out.DimensionCritiques[k] = v
		}
	}
	return &out
}

// Evidence is a piece of supporting material gathered before generation.
// Fixers may cite it when proposing attribution or accuracy edits.
type Evidence struct {
	Source  string `json:"source"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Excerpt string `json:"excerpt"`
}
