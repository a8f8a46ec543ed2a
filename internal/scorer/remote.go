package scorer

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/intervexa/interview-api/pkg/scoring"
)

// RemoteScorer delegates a dimension to a scoring backend through the
// resilient scoring client. Transport failures are returned to the
// orchestrator, which absorbs them as an absent dimension.
type RemoteScorer struct {
	dimension Dimension
	backend   scoring.Backend
	client    *scoring.Client
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewRemoteScorer constructs a remote scorer for one dimension.
func NewRemoteScorer(dimension Dimension, backend scoring.Backend, client *scoring.Client, timeout time.Duration, logger zerolog.Logger) *RemoteScorer {
	return &RemoteScorer{
		dimension: dimension,
		backend:   backend,
		client:    client,
		timeout:   timeout,
		logger:    logger.With().Str("component", "remote_scorer").Str("dimension", string(dimension)).Logger(),
	}
}

// Dimension returns the dimension this scorer serves.
func (r *RemoteScorer) Dimension() Dimension { return r.dimension }

// Score sends the relevant slice of the content to the backend. Missing
// input for the dimension yields an absent score without any network call.
func (r *RemoteScorer) Score(ctx context.Context, content Content) (Score, error) {
	payload, ok := r.buildPayload(content)
	if !ok {
		return Score{Dimension: r.dimension}, nil
	}

	resp, err := r.client.Analyze(ctx, r.backend, payload, r.timeout)
	if err != nil {
		r.logger.Warn().Err(err).Uint("answer_id", content.AnswerID).Msg("dimension scoring failed")
		return Score{Dimension: r.dimension}, err
	}

	return Score{
		Dimension: r.dimension,
		Value:     ptr(clamp(resp.Score)),
		Metrics:   resp.Metrics,
		Feedback: Feedback{
			Strengths:    resp.Strengths,
			Improvements: resp.Improvements,
			Summary:      resp.Summary,
		},
	}, nil
}

func (r *RemoteScorer) buildPayload(content Content) (scoring.Payload, bool) {
	payload := scoring.Payload{AnswerID: content.AnswerID}

	switch r.dimension {
	case DimensionContent:
		if content.Text == "" {
			return payload, false
		}
		payload.Text = content.Text
		payload.Reference = content.Reference
	case DimensionVocal:
		if content.AudioRef == "" {
			return payload, false
		}
		payload.AudioRef = content.AudioRef
		payload.MediaPath = localPath(content.AudioRef)
	case DimensionVisual:
		if content.VideoRef == "" {
			return payload, false
		}
		payload.VideoRef = content.VideoRef
		payload.MediaPath = localPath(content.VideoRef)
	default:
		return payload, false
	}

	return payload, true
}

// localPath returns the ref when it points at a readable local file, which
// switches the request to multipart. Remote refs stay in the JSON body.
func localPath(ref string) string {
	info, err := os.Stat(ref)
	if err != nil || info.IsDir() {
		return ""
	}
	return ref
}
