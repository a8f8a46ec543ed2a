package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/intervexa/interview-api/internal/dto"
	"github.com/intervexa/interview-api/internal/models"
	"github.com/intervexa/interview-api/internal/service"
)

type stubEvaluationService struct {
	enqueueErr error
	enqueued   []dto.EvaluationRequest
}

func (s *stubEvaluationService) Enqueue(_ context.Context, req dto.EvaluationRequest) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.enqueued = append(s.enqueued, req)
	return nil
}

func (s *stubEvaluationService) Evaluate(context.Context, uint) {}

type stubTracker struct {
	poll        dto.AnswerStatusResponse
	pollErr     error
	webhookResp dto.AnswerStatusResponse
	webhookErr  error
	applied     []dto.WebhookRequest
}

func (s *stubTracker) MarkProcessing(context.Context, models.Answer) error { return nil }

func (s *stubTracker) CompleteWithAnalysis(context.Context, models.Answer, *models.AnswerAnalysis, *float64, string, time.Time) error {
	return nil
}

func (s *stubTracker) MarkFailed(context.Context, models.Answer) error { return nil }

func (s *stubTracker) Requeue(context.Context, models.Answer) error { return nil }

func (s *stubTracker) Poll(context.Context, uint) (dto.AnswerStatusResponse, error) {
	return s.poll, s.pollErr
}

func (s *stubTracker) ApplyWebhook(_ context.Context, payload dto.WebhookRequest) (dto.AnswerStatusResponse, error) {
	if s.webhookErr != nil {
		return dto.AnswerStatusResponse{}, s.webhookErr
	}
	s.applied = append(s.applied, payload)
	return s.webhookResp, nil
}

func (s *stubTracker) Subscribe(uint) (<-chan dto.AnswerStatusEvent, func()) {
	ch := make(chan dto.AnswerStatusEvent)
	close(ch)
	return ch, func() {}
}

func (s *stubTracker) Start(context.Context) {}

func newEvaluationApp(evaluations service.EvaluationService, tracker service.StatusTracker) *fiber.App {
	app := fiber.New()
	h := NewEvaluationHandler(evaluations, tracker, zerolog.Nop())
	h.Register(app.Group("/api/v1/answers"))
	return app
}

func TestEvaluateEndpointAccepts(t *testing.T) {
	svc := &stubEvaluationService{}
	app := newEvaluationApp(svc, &stubTracker{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/answers/7/evaluate", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, svc.enqueued, 1)
	require.Equal(t, uint(7), svc.enqueued[0].AnswerID)
}

func TestEvaluateEndpointBodyOverridesContent(t *testing.T) {
	svc := &stubEvaluationService{}
	app := newEvaluationApp(svc, &stubTracker{})

	body, _ := json.Marshal(map[string]interface{}{
		"answer_id":    999,
		"text_content": "new text",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/answers/7/evaluate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, svc.enqueued, 1)
	require.Equal(t, uint(7), svc.enqueued[0].AnswerID, "the path parameter wins over the body")
	require.NotNil(t, svc.enqueued[0].TextContent)
	require.Equal(t, "new text", *svc.enqueued[0].TextContent)
}

func TestEvaluateEndpointErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", service.ErrAnswerNotFound, fiber.StatusNotFound},
		{"conflict", service.ErrEvaluationInProgress, fiber.StatusConflict},
		{"backlog", service.ErrEvaluationBacklog, fiber.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newEvaluationApp(&stubEvaluationService{enqueueErr: tc.err}, &stubTracker{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/answers/7/evaluate", nil)
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestEvaluateEndpointRejectsBadID(t *testing.T) {
	app := newEvaluationApp(&stubEvaluationService{}, &stubTracker{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/answers/abc/evaluate", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	score := 81.0
	tracker := &stubTracker{poll: dto.AnswerStatusResponse{
		AnswerID:         7,
		ProcessingStatus: models.AnswerStatusCompleted,
		Score:            &score,
	}}
	app := newEvaluationApp(&stubEvaluationService{}, tracker)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/answers/7/status", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                     `json:"success"`
		Data    dto.AnswerStatusResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Success)
	require.Equal(t, models.AnswerStatusCompleted, payload.Data.ProcessingStatus)
	require.NotNil(t, payload.Data.Score)
}

func TestStatusEndpointNotFound(t *testing.T) {
	app := newEvaluationApp(&stubEvaluationService{}, &stubTracker{pollErr: service.ErrAnswerNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/answers/7/status", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
