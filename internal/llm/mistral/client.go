package mistral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/llm"
)

var (
	ErrNoChoices    = errors.New("no choices in response")
	ErrEmptyContent = errors.New("empty completion content")
)

type chatRequest struct {
	Model          string          `json:"model"`
	Temperature    float32         `json:"temperature"`
	Messages       []llm.Message   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete implements llm.ChatModel against POST {base}/chat/completions.
// Every failure is a backend error.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	start := time.Now()
	structured := req.Schema != nil

	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages:    req.Messages,
	}
	if structured {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		body.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: name, Schema: req.Schema, Strict: c.cfg.StrictSchema},
		}
	}

	c.logger.Info("llm.complete.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"messages", len(req.Messages),
		"structured", structured,
	)

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.complete.http_error",
			"status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{Raw: raw}, common.NewBackendError("mistral request failed", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		c.logger.Error("llm.complete.decode_error",
			"error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{Raw: raw}, common.NewBackendError("decode mistral response", err)
	}
	if len(cr.Choices) == 0 {
		c.logger.Error("llm.complete.no_choices",
			"raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{Raw: raw}, common.NewBackendError("mistral response", ErrNoChoices)
	}

	content, err := decodeContent(cr.Choices[0].Message.Content)
	if err != nil {
		return llm.Completion{Raw: raw}, common.NewBackendError("decode mistral message content", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		c.logger.Error("llm.complete.empty_content",
			"finish_reason", cr.Choices[0].FinishReason,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{Raw: raw}, common.NewBackendError("mistral response", ErrEmptyContent)
	}

	c.logger.Info("llm.complete.ok",
		"model", cr.Model,
		"finish_reason", cr.Choices[0].FinishReason,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Completion{
		Content:      content,
		Model:        cr.Model,
		FinishReason: cr.Choices[0].FinishReason,
		Raw:          raw,
	}, nil
}

// decodeContent accepts a plain string or a list of typed chunks.
func decodeContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var chunks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return "", fmt.Errorf("unexpected content shape: %w", err)
	}
	var b strings.Builder
	for _, ch := range chunks {
		if ch.Type == "text" || ch.Type == "" {
			b.WriteString(ch.Text)
		}
	}
	return b.String(), nil
}
