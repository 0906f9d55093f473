// Package llm talks to the chat model backend. Transport failures never
// surface as errors: callers always get a string, with bracketed sentinel
// messages standing in for the cases where no model answer exists.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ragnotes/notebook-backend/pkg/config"
	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/sirupsen/logrus"
)

type Client struct {
	backend string
	baseURL string
	model   string
	retries int
	backoff time.Duration
	http    *http.Client
}

func NewClient(cfg config.LLMConfig) *Client {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		backend: cfg.Backend,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		retries: retries,
		backoff: backoff,
		http:    &http.Client{Timeout: timeout},
	}
}

// Chat sends a prompt to the model and returns its text answer. It never
// returns an error: failures come back as bracketed messages so callers can
// always hand the string onward.
func (c *Client) Chat(ctx context.Context, prompt, model string) string {
	switch c.backend {
	case "ollama":
		return c.ollamaChat(ctx, prompt, model)
	default:
		return c.localStub()
	}
}

func (c *Client) ollamaChat(ctx context.Context, prompt, model string) string {
	used := model
	if used == "" {
		used = c.model
	}
	endpoint := fmt.Sprintf("%s/chat?model=%s", c.baseURL, url.QueryEscape(used))

	payload, err := sonic.Marshal(map[string]any{
		"messages": []map[string]string{{"role": "user", "content": prompt}},
	})
	if err != nil {
		return fmt.Sprintf("[LLM error: %v]", err)
	}

	var lastErr error
	var lastTimeout bool
	for attempt := 1; attempt <= c.retries; attempt++ {
		logger.WithFields(logrus.Fields{"url": endpoint, "attempt": attempt}).Debug("calling chat backend")

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if reqErr != nil {
			return fmt.Sprintf("[LLM error: %v]", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			lastTimeout = isTimeout(err)
			if lastTimeout {
				logger.WithFields(logrus.Fields{"attempt": attempt, "retries": c.retries}).WithError(err).Warn("chat request timed out")
			} else {
				logger.WithFields(logrus.Fields{"attempt": attempt, "retries": c.retries}).WithError(err).Warn("chat request failed")
			}
			if attempt < c.retries {
				time.Sleep(c.backoff * time.Duration(1<<(attempt-1)))
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Sprintf("[LLM error: %v]", readErr)
		}

		// HTTP-level errors come back immediately, retrying will not help.
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			logger.WithFields(logrus.Fields{"status": resp.StatusCode}).Warn("chat backend returned HTTP error")
			return fmt.Sprintf("[LLM HTTP error: %s]", resp.Status)
		}

		return parseChatResponse(body)
	}

	if lastTimeout {
		return fmt.Sprintf("[LLM timeout after %d attempts]", c.retries)
	}
	return fmt.Sprintf("[LLM error: %v]", lastErr)
}

// parseChatResponse pulls the answer text out of whichever response shape
// the backend speaks. Unrecognized JSON is returned whole; non-JSON bodies
// come back as-is.
func parseChatResponse(body []byte) string {
	var data any
	if err := sonic.Unmarshal(body, &data); err != nil {
		if len(body) == 0 {
			return "[LLM returned non-JSON response]"
		}
		return string(body)
	}

	if m, ok := data.(map[string]any); ok {
		if msg, ok := m["message"].(map[string]any); ok {
			if content, ok := msg["content"].(string); ok && content != "" {
				return content
			}
		}
		if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
			if first, ok := choices[0].(map[string]any); ok {
				if msg, ok := first["message"].(map[string]any); ok {
					if content, ok := msg["content"].(string); ok && content != "" {
						return content
					}
				}
				if content, ok := first["content"].(string); ok && content != "" {
					return content
				}
				if text, ok := first["text"].(string); ok && text != "" {
					return text
				}
			}
		}
		if response, ok := m["response"].(string); ok && response != "" {
			return response
		}
		if output, ok := m["output"].(string); ok && output != "" {
			return output
		}
		if items, ok := m["output"].([]any); ok {
			for _, it := range items {
				obj, ok := it.(map[string]any)
				if !ok {
					continue
				}
				if content, ok := obj["content"].(string); ok && content != "" {
					return content
				}
				if text, ok := obj["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}

	raw, err := sonic.Marshal(data)
	if err != nil {
		return string(body)
	}
	return string(raw)
}

// ListModels queries the backend for its installed models. Unsupported
// backends and unreachable servers yield an empty list, never an error.
func (c *Client) ListModels(ctx context.Context) []string {
	if c.backend != "ollama" {
		logger.WithFields(logrus.Fields{"backend": c.backend}).Info("model listing not supported")
		return nil
	}

	endpoint := c.baseURL + "/models"
	for attempt := 1; attempt <= c.retries; attempt++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if reqErr != nil {
			return nil
		}
		resp, err := c.http.Do(req)
		if err != nil {
			logger.WithFields(logrus.Fields{"attempt": attempt, "retries": c.retries}).WithError(err).Warn("model listing failed")
			if attempt < c.retries {
				time.Sleep(c.backoff * time.Duration(1<<(attempt-1)))
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if attempt < c.retries {
				time.Sleep(c.backoff * time.Duration(1<<(attempt-1)))
			}
			continue
		}

		return parseModelList(body)
	}

	return nil
}

func parseModelList(body []byte) []string {
	var data any
	if err := sonic.Unmarshal(body, &data); err != nil {
		return nil
	}

	var models []string
	appendItem := func(it any) {
		switch v := it.(type) {
		case string:
			models = append(models, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok && name != "" {
				models = append(models, name)
			}
		}
	}

	switch v := data.(type) {
	case []any:
		for _, it := range v {
			appendItem(it)
		}
	case map[string]any:
		if list, ok := v["models"].([]any); ok {
			for _, it := range list {
				appendItem(it)
			}
		} else {
			for k := range v {
				models = append(models, k)
			}
			sort.Strings(models)
		}
	}

	seen := make(map[string]bool, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m != "" && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func (c *Client) localStub() string {
	logger.Info("local chat backend requested but not configured")
	return "[Local LLM backend not configured]"
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
