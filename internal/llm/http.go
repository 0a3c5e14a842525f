package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reader/internal/common"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxResponseBytes   = 8 << 20
	maxErrorBodyChars  = 512
)

// StatusError is a non-2xx reply from the model backend.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	msg := string(e.Body)
	if len(msg) > maxErrorBodyChars {
		msg = msg[:maxErrorBodyChars] + "...(truncated)"
	}
	return fmt.Sprintf("backend replied %d: %s", e.Code, msg)
}

// Retryable reports whether the backend signalled a transient condition.
// Nothing retries today; the flag only goes into logs.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// SendJSON posts body as JSON to url and returns the raw reply and status code.
// It knows nothing about a particular provider; callers pick the URL and headers.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	reqID := uuid.New().String()
	log := logger.With(
		"req_id", reqID,
		"parent_req_id", common.RequestIDFromContext(ctx),
		"session_id", common.SessionIDFromContext(ctx),
	)

	payload, err := json.Marshal(body)
	if err != nil {
		log.Error("llm.http.encode_error", "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Error("llm.http.build_request_error", "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	log.Info("llm.http.request", "url", url, "content_length", len(payload))

	resp, err := client.Do(req)
	if err != nil {
		log.Error("llm.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warn("llm.http.response_body_close_error", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Error("llm.http.read_error", "status", resp.StatusCode, "error", err)
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	elapsed := time.Since(start).Milliseconds()
	if resp.StatusCode/100 != 2 {
		serr := &StatusError{Code: resp.StatusCode, Body: raw}
		log.Warn("llm.http.response", "status", resp.StatusCode, "bytes", len(raw), "retryable", serr.Retryable(), "elapsed_ms", elapsed)
		return raw, resp.StatusCode, serr
	}
	log.Info("llm.http.response", "status", resp.StatusCode, "bytes", len(raw), "elapsed_ms", elapsed)
	return raw, resp.StatusCode, nil
}
