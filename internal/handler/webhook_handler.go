package handler

import (
	"crypto/subtle"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/intervexa/interview-api/internal/dto"
	"github.com/intervexa/interview-api/internal/observability"
	"github.com/intervexa/interview-api/internal/service"
	"github.com/intervexa/interview-api/internal/utils"
)

const scoringSecretHeader = "X-Scoring-Secret"

// WebhookHandler receives evaluation results pushed by an external scoring
// service. A rejected request changes no state.
type WebhookHandler struct {
	tracker service.StatusTracker
	secret  string
	logger  zerolog.Logger
}

// NewWebhookHandler builds a webhook handler instance.
func NewWebhookHandler(tracker service.StatusTracker, secret string, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		tracker: tracker,
		secret:  secret,
		logger:  logger.With().Str("component", "webhook_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post("/scoring", h.scoring)
}

func (h *WebhookHandler) scoring(c *fiber.Ctx) error {
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(c.Get(scoringSecretHeader)), []byte(h.secret)) != 1 {
		observability.WebhookRejected().WithLabelValues("auth").Inc()
		requestLogger(h.logger, c).Warn().Str("ip", c.IP()).Msg("scoring webhook rejected, bad secret")
		return utils.SendError(c, fiber.StatusUnauthorized, "invalid scoring secret")
	}

	var payload dto.WebhookRequest
	if err := c.BodyParser(&payload); err != nil {
		observability.WebhookRejected().WithLabelValues("malformed").Inc()
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.tracker.ApplyWebhook(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "scoring result applied", response)
}

func (h *WebhookHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAnswerNotFound):
		observability.WebhookRejected().WithLabelValues("unknown_answer").Inc()
		return utils.SendError(c, fiber.StatusNotFound, "answer not found")
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrTransitionConflict):
		observability.WebhookRejected().WithLabelValues("conflict").Inc()
		return utils.SendError(c, fiber.StatusConflict, "answer is not awaiting results")
	case isValidationError(err):
		observability.WebhookRejected().WithLabelValues("validation").Inc()
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
