package scorer

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// Placeholder scorers used when a real backend is unconfigured. They are
// deterministic: the same answer always produces the same scores, so
// repeated evaluations stay idempotent.

var structureMarkers = []string{
	"first", "then", "finally", "because", "for example", "as a result",
	"situation", "task", "action", "result",
}

// HeuristicContentScorer scores answer text from length and structure
// signals alone.
type HeuristicContentScorer struct{}

// NewHeuristicContentScorer constructs the placeholder content scorer.
func NewHeuristicContentScorer() *HeuristicContentScorer {
	return &HeuristicContentScorer{}
}

// Dimension returns DimensionContent.
func (s *HeuristicContentScorer) Dimension() Dimension { return DimensionContent }

// Score derives a bounded score from word count, sentence structure, and
// discourse markers. An empty answer is absent, not zero.
func (s *HeuristicContentScorer) Score(_ context.Context, content Content) (Score, error) {
	text := strings.TrimSpace(content.Text)
	if text == "" {
		return Score{Dimension: DimensionContent}, nil
	}

	words := strings.Fields(text)
	sentences := countSentences(text)
	markers := countMarkers(strings.ToLower(text))

	lengthSignal := ratio(float64(len(words)), 120)
	structureSignal := ratio(float64(sentences), 6)
	markerSignal := ratio(float64(markers), 4)

	value := clamp(35 + 30*lengthSignal + 15*structureSignal + 20*markerSignal)

	avgSentenceLen := float64(len(words))
	if sentences > 0 {
		avgSentenceLen = float64(len(words)) / float64(sentences)
	}
	clarity := clamp(100 - 3*abs(avgSentenceLen-15))

	feedback := Feedback{Summary: fmt.Sprintf("%s answer based on structure and depth.", BandLabel(value))}
	if len(words) >= 80 {
		feedback.Strengths = append(feedback.Strengths, "Provided a detailed, well-developed answer")
	} else {
		feedback.Improvements = append(feedback.Improvements, "Expand your answer with more detail and examples")
	}
	if markers >= 2 {
		feedback.Strengths = append(feedback.Strengths, "Structured the answer with clear progression")
	} else {
		feedback.Improvements = append(feedback.Improvements, "Use a clearer structure, e.g. situation, action, result")
	}
	if clarity >= 70 {
		feedback.Strengths = append(feedback.Strengths, "Kept sentences clear and easy to follow")
	} else {
		feedback.Improvements = append(feedback.Improvements, "Keep sentences shorter for clarity")
	}

	return Score{
		Dimension: DimensionContent,
		Value:     ptr(value),
		Metrics: map[string]float64{
			"clarity":        clarity,
			"word_count":     float64(len(words)),
			"sentence_count": float64(sentences),
		},
		Feedback: feedback,
	}, nil
}

// HeuristicVocalScorer produces bounded pseudo-random vocal delivery scores
// seeded from the answer identity.
type HeuristicVocalScorer struct{}

// NewHeuristicVocalScorer constructs the placeholder vocal scorer.
func NewHeuristicVocalScorer() *HeuristicVocalScorer {
	return &HeuristicVocalScorer{}
}

// Dimension returns DimensionVocal.
func (s *HeuristicVocalScorer) Dimension() Dimension { return DimensionVocal }

// Score is absent without an audio reference.
func (s *HeuristicVocalScorer) Score(_ context.Context, content Content) (Score, error) {
	if content.AudioRef == "" {
		return Score{Dimension: DimensionVocal}, nil
	}

	seed := seedFor(content.AnswerID, content.AudioRef)
	tone := bounded(seed, "tone", 55, 92)
	confidence := bounded(seed, "confidence", 50, 90)
	clarity := bounded(seed, "clarity", 55, 95)
	value := clamp(0.4*tone + 0.3*confidence + 0.3*clarity)

	feedback := Feedback{Summary: fmt.Sprintf("%s vocal delivery.", BandLabel(value))}
	if confidence >= 70 {
		feedback.Strengths = append(feedback.Strengths, "Spoke with a confident, steady voice")
	} else {
		feedback.Improvements = append(feedback.Improvements, "Project more confidence through a steady tone")
	}
	if clarity >= 75 {
		feedback.Strengths = append(feedback.Strengths, "Maintained clear articulation throughout")
	} else {
		feedback.Improvements = append(feedback.Improvements, "Practice speaking clearly and avoid rushing")
	}

	return Score{
		Dimension: DimensionVocal,
		Value:     ptr(value),
		Metrics: map[string]float64{
			"tone":       tone,
			"confidence": confidence,
			"clarity":    clarity,
		},
		Feedback: feedback,
	}, nil
}

// HeuristicVisualScorer produces bounded pseudo-random visual delivery
// scores seeded from the answer identity.
type HeuristicVisualScorer struct{}

// NewHeuristicVisualScorer constructs the placeholder visual scorer.
func NewHeuristicVisualScorer() *HeuristicVisualScorer {
	return &HeuristicVisualScorer{}
}

// Dimension returns DimensionVisual.
func (s *HeuristicVisualScorer) Dimension() Dimension { return DimensionVisual }

// Score is absent without a video reference.
func (s *HeuristicVisualScorer) Score(_ context.Context, content Content) (Score, error) {
	if content.VideoRef == "" {
		return Score{Dimension: DimensionVisual}, nil
	}

	seed := seedFor(content.AnswerID, content.VideoRef)
	expression := bounded(seed, "expression", 50, 92)
	eyeContact := bounded(seed, "eye_contact", 45, 95)
	value := clamp(0.55*expression + 0.45*eyeContact)

	feedback := Feedback{Summary: fmt.Sprintf("%s visual delivery.", BandLabel(value))}
	if eyeContact >= 70 {
		feedback.Strengths = append(feedback.Strengths, "Maintained consistent eye contact")
	} else {
		feedback.Improvements = append(feedback.Improvements, "Maintain better eye contact with the camera")
	}
	if expression >= 70 {
		feedback.Strengths = append(feedback.Strengths, "Showed engaged, natural facial expressions")
	} else {
		feedback.Improvements = append(feedback.Improvements, "Keep a calm, composed facial expression")
	}

	return Score{
		Dimension: DimensionVisual,
		Value:     ptr(value),
		Metrics: map[string]float64{
			"expression":  expression,
			"eye_contact": eyeContact,
		},
		Feedback: feedback,
	}, nil
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			count++
		}
	}
	if count == 0 {
		count = 1
	}
	return count
}

func countMarkers(text string) int {
	count := 0
	for _, marker := range structureMarkers {
		if strings.Contains(text, marker) {
			count++
		}
	}
	return count
}

func ratio(value, full float64) float64 {
	if full <= 0 {
		return 0
	}
	r := value / full
	if r > 1 {
		return 1
	}
	return r
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func seedFor(answerID uint, ref string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", answerID, ref)
	return h.Sum64()
}

// bounded maps a seed and salt onto a deterministic value in [lo, hi].
func bounded(seed uint64, salt string, lo, hi float64) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", seed, salt)
	span := hi - lo
	return lo + float64(h.Sum64()%1000)/999*span
}
