// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/llm")

var (
	generationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "llm",
		Name:      "generations_total",
		Help:      "Generation calls by outcome",
	}, []string{"outcome"})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "insight",
		Subsystem: "llm",
		Name:      "generation_duration_seconds",
		Help:      "Wall time of streamed generation calls",
		Buckets:   prometheus.DefBuckets,
	})
)

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "llama-3.1-8b-instant"

	// generationTimeout bounds the whole streamed call so a stalled
	// backend cannot hold a request goroutine forever.
	generationTimeout = 120 * time.Second
)

// GroqClient streams chat completions from Groq's OpenAI-compatible API.
//
// Thread Safety: Safe for concurrent use.
type GroqClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewGroqClient builds a client from GROQ_API_KEY, GROQ_MODEL, and
// GROQ_BASE_URL. A missing key is an immediate error; failing at startup
// beats failing on the first user question.
func NewGroqClient() (*GroqClient, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("llm: GROQ_API_KEY is not set")
	}
	baseURL := os.Getenv("GROQ_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	model := os.Getenv("GROQ_MODEL")
	if model == "" {
		model = defaultGroqModel
	}
	return &GroqClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: generationTimeout},
	}, nil
}

// OpenAI-compatible wire types, limited to the fields this service uses.

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	TopP        *float32  `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatStream issues a streamed chat completion and forwards each chunk to
// the callback.
//
// Description:
//
//	Sends the request with stream enabled, reads the SSE response line by
//	line, and invokes the callback once per content delta. The callback
//	sees exactly one terminal event: done on normal completion, error on
//	backend failure. A callback error aborts the read loop and closes the
//	connection, which is the disconnect path for a gone client.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	messages - The conversation, in order. Must be non-empty.
//	params - Generation tuning; zero value uses backend defaults.
//	callback - Receives stream events. Must not be nil.
//
// Outputs:
//
//	error - Non-nil when the request could not be issued or the callback
//	aborted. Mid-stream backend failures are delivered as an error event
//	and also returned.
//
// Thread Safety: Safe for concurrent use.
func (g *GroqClient) ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error {
	ctx, span := tracer.Start(ctx, "llm.ChatStream")
	defer span.End()

	if len(messages) == 0 {
		return fmt.Errorf("llm: no messages to send")
	}
	if callback == nil {
		return fmt.Errorf("llm: callback must not be nil")
	}

	model := g.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.messages", len(messages)),
	)

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Stream:      true,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
		Stop:        params.Stop,
	})
	if err != nil {
		return fmt.Errorf("llm: marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("llm: building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		generationTotal.WithLabelValues("transport_error").Inc()
		span.SetStatus(codes.Error, "request failed")
		return g.deliverError(callback, fmt.Errorf("llm: calling generation backend: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		generationTotal.WithLabelValues("http_error").Inc()
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return g.deliverError(callback, fmt.Errorf("llm: generation backend returned %d: %s", resp.StatusCode, SafeLogString(string(body))))
	}

	err = g.processStream(resp.Body, callback)
	generationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		generationTotal.WithLabelValues("stream_error").Inc()
		span.SetStatus(codes.Error, "stream failed")
		return err
	}
	generationTotal.WithLabelValues("ok").Inc()
	return nil
}

// processStream reads SSE data lines until the [DONE] sentinel or EOF.
func (g *GroqClient) processStream(body io.Reader, callback StreamCallback) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return callback(StreamEvent{Type: StreamEventDone})
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// A single malformed chunk is logged and skipped; the stream
			// may still complete.
			slog.Warn("Skipping malformed stream chunk", slog.String("error", err.Error()))
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := callback(StreamEvent{Type: StreamEventToken, Content: content}); err != nil {
				return fmt.Errorf("llm: callback aborted stream: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return g.deliverError(callback, fmt.Errorf("llm: reading stream: %w", err))
	}
	// EOF without [DONE]: treat as complete rather than failing a fully
	// delivered answer.
	return callback(StreamEvent{Type: StreamEventDone})
}

// deliverError surfaces err to the callback as an error event and returns
// it. Callback failures at this point are secondary and only logged.
func (g *GroqClient) deliverError(callback StreamCallback, err error) error {
	if cbErr := callback(StreamEvent{Type: StreamEventError, Err: err}); cbErr != nil {
		slog.Warn("Stream error callback failed", slog.String("error", cbErr.Error()))
	}
	return err
}
