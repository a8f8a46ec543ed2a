package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Backend identifies one scoring subsystem together with its shared breaker.
type Backend struct {
	Name    string
	URL     string
	Breaker *Breaker
}

// Payload is the content reference sent to a scoring backend. Media travels
// by reference; MediaPath is only set when a local file should be attached
// as multipart.
type Payload struct {
	AnswerID  uint   `json:"answer_id"`
	Text      string `json:"text,omitempty"`
	Reference string `json:"reference,omitempty"`
	AudioRef  string `json:"audio_ref,omitempty"`
	VideoRef  string `json:"video_ref,omitempty"`
	MediaPath string `json:"-"`
}

// Response is the raw scorer result returned by a backend.
type Response struct {
	Score        float64            `json:"score"`
	Metrics      map[string]float64 `json:"metrics"`
	Strengths    []string           `json:"strengths"`
	Improvements []string           `json:"improvements"`
	Summary      string             `json:"summary"`
}

// Config tunes the client's retry and timeout behaviour.
type Config struct {
	// APIKey is sent as X-API-Key on every request.
	APIKey string
	// MaxRetries bounds attempts per Analyze call. Defaults to 3.
	MaxRetries int
	// BackoffBase is the first retry delay; it doubles per attempt.
	// Defaults to 1s.
	BackoffBase time.Duration
	// CallTimeout bounds a single attempt when the caller passes none.
	// Defaults to 30s.
	CallTimeout time.Duration
}

// Client is the resilient outbound client shared by all remote dimension
// scorers. Safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
	tracer trace.Tracer
	sleep  func(d time.Duration) <-chan time.Time
}

// NewClient constructs a scoring client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger.With().Str("component", "scoring_client").Logger(),
		tracer: otel.Tracer("github.com/intervexa/interview-api/pkg/scoring"),
		sleep:  time.After,
	}
}

// Analyze calls the backend with bounded retries and exponential backoff.
// While the backend's circuit is open the call fails immediately with
// ErrCircuitOpen and spends no retry budget. Validation rejections are
// surfaced without retry; transient failures and timeouts are retried up to
// MaxRetries with delays of base, 2*base, 4*base, ...
func (c *Client) Analyze(ctx context.Context, backend Backend, payload Payload, timeout time.Duration) (Response, error) {
	if timeout <= 0 {
		timeout = c.cfg.CallTimeout
	}

	ctx, span := c.tracer.Start(ctx, "scoring.analyze", trace.WithAttributes(
		attribute.String("scoring.backend", backend.Name),
	))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := backend.Breaker.Allow(); err != nil {
			callFailuresVec().WithLabelValues(backend.Name, failureReason(err)).Inc()
			span.SetStatus(codes.Error, "circuit_open")
			return Response{}, err
		}

		start := time.Now()
		resp, err := c.attempt(ctx, backend, payload, timeout)
		callDurationVec().WithLabelValues(backend.Name).Observe(time.Since(start).Seconds())
		if err == nil {
			backend.Breaker.RecordSuccess()
			return resp, nil
		}

		reason := failureReason(err)
		callFailuresVec().WithLabelValues(backend.Name, reason).Inc()
		if reason == "validation" {
			// The caller's fault, not the backend's: the round trip itself
			// succeeded, so release any half-open trial and count nothing
			// against the backend's health. Not retried.
			backend.Breaker.RecordSuccess()
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation")
			return Response{}, err
		}

		backend.Breaker.RecordFailure()
		if !retryable(err) {
			span.RecordError(err)
			return Response{}, err
		}

		lastErr = err
		if attempt == c.cfg.MaxRetries {
			break
		}

		delay := c.cfg.BackoffBase << (attempt - 1)
		c.logger.Warn().Err(err).
			Str("backend", backend.Name).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("scoring call failed, retrying")

		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-c.sleep(delay):
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "retries_exhausted")
	return Response{}, fmt.Errorf("scoring backend %s: retries exhausted: %w", backend.Name, lastErr)
}

func (c *Client) attempt(ctx context.Context, backend Backend, payload Payload, timeout time.Duration) (Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.buildRequest(attemptCtx, backend, payload)
	if err != nil {
		return Response{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &APIError{Backend: backend.Name, Status: resp.StatusCode, Body: string(body)}
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Response{}, fmt.Errorf("%w: parse response: %v", ErrTransient, err)
	}

	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 100 {
		parsed.Score = 100
	}

	return parsed, nil
}

func (c *Client) buildRequest(ctx context.Context, backend Backend, payload Payload) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)

	if payload.MediaPath != "" {
		buf, boundary, err := buildMultipart(payload)
		if err != nil {
			return nil, err
		}
		body = buf
		contentType = boundary
	} else {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, backend.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	return req, nil
}

func buildMultipart(payload Payload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	meta, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}
	if err := writer.WriteField("payload", string(meta)); err != nil {
		return nil, "", fmt.Errorf("write payload field: %w", err)
	}

	mime, err := mimetype.DetectFile(payload.MediaPath)
	if err != nil {
		return nil, "", fmt.Errorf("detect media type: %w", err)
	}

	file, err := os.Open(payload.MediaPath)
	if err != nil {
		return nil, "", fmt.Errorf("open media: %w", err)
	}
	defer file.Close()

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="media"; filename=%q`, filepath.Base(payload.MediaPath))}
	header["Content-Type"] = []string{mime.String()}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create media part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy media: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return buf, writer.FormDataContentType(), nil
}
