// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm holds the generation-backend client. The backend is reached
// over its raw REST API with plain net/http; vendor SDKs are deliberately
// not used so the wire traffic stays inspectable and the dependency
// surface stays small.
package llm

import "context"

// Message is one turn of a chat exchange.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the turn's text.
	Content string `json:"content"`
}

// GenerationParams tunes a single generation call. Nil pointer fields fall
// back to the backend's defaults rather than sending a zero.
type GenerationParams struct {
	Temperature   *float32
	MaxTokens     *int
	TopP          *float32
	Stop          []string
	ModelOverride string
}

// StreamEventType discriminates streaming callback events.
type StreamEventType string

const (
	// StreamEventToken carries one incremental text chunk.
	StreamEventToken StreamEventType = "token"

	// StreamEventError carries a mid-stream failure. Terminal.
	StreamEventError StreamEventType = "error"

	// StreamEventDone marks normal completion. Terminal.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent is one element of a generation stream.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Err     error
}

// StreamCallback receives generation stream events in order. Returning a
// non-nil error stops the stream; the client abandons the connection.
type StreamCallback func(StreamEvent) error

// StreamClient produces streamed chat completions.
//
// Description:
//
//	ChatStream forwards each produced chunk to the callback as soon as it
//	arrives; implementations must not buffer whole responses. The stream
//	always ends with exactly one terminal event (done or error) unless
//	the callback itself aborted.
//
// Thread Safety: Implementations must be safe for concurrent use.
type StreamClient interface {
	ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error
}
