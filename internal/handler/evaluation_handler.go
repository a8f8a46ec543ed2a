package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/intervexa/interview-api/internal/dto"
	"github.com/intervexa/interview-api/internal/service"
	"github.com/intervexa/interview-api/internal/utils"
)

const streamHeartbeatInterval = 15 * time.Second

// EvaluationHandler manages the evaluation trigger and status endpoints.
type EvaluationHandler struct {
	evaluations service.EvaluationService
	tracker     service.StatusTracker
	logger      zerolog.Logger
}

// NewEvaluationHandler builds an evaluation handler instance.
func NewEvaluationHandler(evaluations service.EvaluationService, tracker service.StatusTracker, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations: evaluations,
		tracker:     tracker,
		logger:      logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/:id/evaluate", h.evaluate)
	router.Get("/:id/status", h.status)
	router.Get("/:id/events", h.events)
}

// evaluate accepts the trigger and returns immediately; the evaluation runs
// in the background. 202 means accepted, not scored.
func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	req := dto.EvaluationRequest{AnswerID: id}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
		req.AnswerID = id
	}

	if err := h.evaluations.Enqueue(c.UserContext(), req); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "evaluation accepted", fiber.Map{
		"answer_id": id,
		"status":    "pending",
	})
}

func (h *EvaluationHandler) status(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.tracker.Poll(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer status retrieved", response)
}

// events streams status transitions for one answer over SSE. The current
// state is sent first so a late subscriber never misses a terminal
// transition.
func (h *EvaluationHandler) events(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	current, err := h.tracker.Poll(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	events, cleanup := h.tracker.Subscribe(id)
	logger := requestLogger(h.logger, c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cleanup()

		if err := writeStatusEvent(w, "status", current); err != nil {
			return
		}

		heartbeat := time.NewTicker(streamHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeStatusEvent(w, "transition", event); err != nil {
					logger.Debug().Err(err).Uint("answer_id", id).Msg("status stream closed")
					return
				}
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeStatusEvent(w *bufio.Writer, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}

	return w.Flush()
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAnswerNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "answer not found")
	case errors.Is(err, service.ErrEvaluationInProgress):
		return utils.SendError(c, fiber.StatusConflict, "evaluation already in progress or finished")
	case errors.Is(err, service.ErrEvaluationBacklog):
		return utils.SendError(c, fiber.StatusTooManyRequests, "evaluation queue is full, retry later")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
