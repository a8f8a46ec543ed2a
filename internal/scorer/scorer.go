package scorer

import "context"

// Dimension names one of the three scoring dimensions.
type Dimension string

const (
	// DimensionContent evaluates what was said (NLP relevance to the
	// reference answer).
	DimensionContent Dimension = "content"
	// DimensionVocal evaluates vocal delivery (tone, clarity, confidence).
	DimensionVocal Dimension = "vocal"
	// DimensionVisual evaluates visual delivery (expression, eye contact).
	DimensionVisual Dimension = "visual"
)

// Content references what an answer contains. Text travels inline; audio
// and video travel as opaque references.
type Content struct {
	AnswerID  uint
	Text      string
	Reference string
	AudioRef  string
	VideoRef  string
}

// Feedback is the qualitative half of a dimension score.
type Feedback struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
}

// Score is one dimension's outcome. A nil Value is the explicit absent
// marker: the scorer could not produce a number and never fabricates one.
type Score struct {
	Dimension Dimension
	Value     *float64
	Metrics   map[string]float64
	Feedback  Feedback
}

// Present reports whether the dimension produced a value.
func (s Score) Present() bool {
	return s.Value != nil
}

// Scorer is a single scoring strategy. The choice between a remote backend
// and a local heuristic is made once at construction, never at evaluation
// time.
type Scorer interface {
	Dimension() Dimension
	Score(ctx context.Context, content Content) (Score, error)
}

// BandLabel maps a 0-100 score onto the qualitative label used in
// summaries.
func BandLabel(score float64) string {
	switch {
	case score >= 90:
		return "Outstanding"
	case score >= 80:
		return "Excellent"
	case score >= 70:
		return "Good"
	case score >= 60:
		return "Satisfactory"
	case score >= 50:
		return "Needs Improvement"
	default:
		return "Poor"
	}
}

func ptr(v float64) *float64 { return &v }

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
