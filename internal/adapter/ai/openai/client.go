// Package openai implements the embedding and chat-completion backends over
// any OpenAI-compatible HTTP API.
package openai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"log/slog"

	"github.com/fairyhunter13/resume-job-matcher/internal/adapter/observability"
	"github.com/fairyhunter13/resume-job-matcher/internal/config"
	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

// Client talks to OpenAI-compatible endpoints: /embeddings for vectors and
// /chat/completions for relevance scoring.
type Client struct {
	cfg     config.Config
	chatHC  *http.Client
	embedHC *http.Client
}

// New constructs a client with per-backend timeouts from config.
func New(cfg config.Config) *Client {
	return &Client{
		cfg:     cfg,
		chatHC:  &http.Client{Timeout: cfg.LLMTimeout},
		embedHC: &http.Client{Timeout: cfg.EmbedTimeout},
	}
}

func readSnippet(r io.Reader, n int) string {
	buf := make([]byte, n)
	m, _ := io.ReadFull(io.LimitReader(r, int64(n)), buf)
	return string(buf[:m])
}

// Embed calls the embeddings endpoint and returns one vector per input text.
// 429 and 5xx responses are retried with exponential backoff; 4xx responses
// fail immediately.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.cfg.EmbeddingsModel == "" {
		return nil, fmt.Errorf("%w: EMBEDDINGS_MODEL missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model": c.cfg.EmbeddingsModel,
		"input": texts,
	}
	b, _ := json.Marshal(body)
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	op := func() error {
		start := time.Now()
		// Recreate the request each attempt so the body is never reused.
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EmbeddingsBaseURL+"/embeddings", bytes.NewReader(b))
		if c.cfg.EmbeddingsAPIKey != "" {
			r.Header.Set("Authorization", "Bearer "+c.cfg.EmbeddingsAPIKey)
		}
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.embedHC.Do(r)
		observability.AIRequestsTotal.WithLabelValues("embeddings", "embed").Inc()
		observability.AIRequestDuration.WithLabelValues("embeddings", "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("embeddings backend rate limited", slog.Int("status", resp.StatusCode))
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			slog.Warn("embeddings backend 4xx",
				slog.Int("status", resp.StatusCode),
				slog.String("model", c.cfg.EmbeddingsModel),
				slog.String("body", readSnippet(resp.Body, 512)))
			return backoff.Permanent(fmt.Errorf("embed status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Error("embeddings backend non-2xx",
				slog.Int("status", resp.StatusCode),
				slog.String("model", c.cfg.EmbeddingsModel),
				slog.String("body", readSnippet(resp.Body, 512)))
			return fmt.Errorf("embed status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			slog.Error("embeddings backend decode error", slog.Any("error", err))
			return err
		}
		return nil
	}
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = c.cfg.EmbedTimeout * 2
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return nil, fmt.Errorf("op=openai.Embed: %w: %v", domain.ErrBackendUnavailable, err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("op=openai.Embed: %w: got %d vectors for %d inputs",
			domain.ErrBackendUnavailable, len(out.Data), len(texts))
	}
	res := make([][]float32, len(out.Data))
	for i := range out.Data {
		v := make([]float32, len(out.Data[i].Embedding))
		for j := range out.Data[i].Embedding {
			v[j] = float32(out.Data[i].Embedding[j])
		}
		res[i] = v
	}
	return res, nil
}

// Complete calls the chat completions endpoint once and returns the first
// choice's content. Deterministic settings: temperature 0, tight max_tokens.
// A 4xx response is permanent; callers own the retry policy.
func (c *Client) Complete(ctx domain.Context, systemPrompt, userPrompt string) (string, error) {
	body := map[string]any{
		"model":       c.cfg.LLMModel,
		"temperature": 0,
		"max_tokens":  c.cfg.LLMMaxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, _ := json.Marshal(body)
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	start := time.Now()
	r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LLMBaseURL+"/chat/completions", bytes.NewReader(b))
	if c.cfg.LLMAPIKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
	}
	r.Header.Set("Content-Type", "application/json")
	resp, err := c.chatHC.Do(r)
	observability.AIRequestsTotal.WithLabelValues("llm", "chat").Inc()
	observability.AIRequestDuration.WithLabelValues("llm", "chat").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusTooManyRequests {
		slog.Warn("llm backend rate limited", slog.Int("status", resp.StatusCode))
		return "", fmt.Errorf("chat status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		slog.Warn("llm backend 4xx",
			slog.Int("status", resp.StatusCode),
			slog.String("model", c.cfg.LLMModel),
			slog.String("body", readSnippet(resp.Body, 512)))
		return "", backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("llm backend non-2xx",
			slog.Int("status", resp.StatusCode),
			slog.String("model", c.cfg.LLMModel),
			slog.String("body", readSnippet(resp.Body, 512)))
		return "", fmt.Errorf("chat status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		slog.Error("llm backend decode error", slog.Any("error", err))
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("empty choices from llm backend")
	}
	return out.Choices[0].Message.Content, nil
}
