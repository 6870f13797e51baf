// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package events defines the typed event stream emitted for each answered
// question. A response is an ordered, finite, non-restartable sequence of
// events: it opens with exactly one Start event and terminates with exactly
// one Done event; everything in between is Token text, a structured CSV
// payload, or a terminal Error notice.
//
// Thread Safety:
//
//	Event values are plain data and safe to copy. An EmitFunc is invoked
//	from a single goroutine per response stream; implementations do not
//	need to be concurrency-safe across streams.
package events

// Type identifies the kind of a stream event.
type Type string

const (
	// TypeStart marks the opening of a response stream.
	TypeStart Type = "start"

	// TypeToken carries an incremental chunk of markdown answer text.
	TypeToken Type = "token"

	// TypeCSV carries a structured tabular payload (HR query results).
	TypeCSV Type = "csv"

	// TypeError carries a human-readable failure message. The stream still
	// terminates with a Done event after an Error event.
	TypeError Type = "error"

	// TypeDone terminates the stream. It has no payload and is always last.
	TypeDone Type = "done"
)

// Event is a single element of a response stream.
//
// Description:
//
//	Serialized as one JSON object per line (ND-JSON) by the transport
//	layer. Fields are omitted when empty so that a Done event is exactly
//	{"type":"done"}.
type Event struct {
	// Type discriminates the event payload.
	Type Type `json:"type"`

	// Content holds incremental markdown text for Token events and the
	// failure message for Error events.
	Content string `json:"content,omitempty"`

	// Status holds a short human-readable status line for CSV events.
	Status string `json:"status,omitempty"`

	// Data holds the row records of a CSV event, in row order.
	Data []map[string]string `json:"data,omitempty"`

	// Columns holds the ordered column names of a CSV event.
	Columns []string `json:"columns,omitempty"`
}

// EmitFunc receives stream events in emission order. Returning a non-nil
// error aborts the stream; the producer stops emitting and releases its
// resources. The transport layer returns an error when the client has
// disconnected.
type EmitFunc func(Event) error

// Start returns the stream-open marker event.
func Start() Event {
	return Event{Type: TypeStart}
}

// Token returns an incremental text event.
func Token(content string) Event {
	return Event{Type: TypeToken, Content: content}
}

// CSV returns a structured tabular payload event.
func CSV(status string, columns []string, rows []map[string]string) Event {
	return Event{Type: TypeCSV, Status: status, Columns: columns, Data: rows}
}

// Error returns a terminal failure notice event.
func Error(message string) Event {
	return Event{Type: TypeError, Content: message}
}

// Done returns the stream terminator event.
func Done() Event {
	return Event{Type: TypeDone}
}
