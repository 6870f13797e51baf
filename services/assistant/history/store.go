// Copyright (C) 2025 FinSolve Technologies
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history persists per-user conversations in BadgerDB so a client
// can resume a chat and pass prior turns back into generation.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/finsolve/insight/services/llm"
)

// Key layout: chat/conv/v1/{userID}/{convID}. The version segment lets a
// future format change coexist with old records during migration.
const keyPrefix = "chat/conv/v1/"

// titleLimit truncates conversation titles derived from the first message.
const titleLimit = 50

// listLimit caps the conversations returned per user, newest first.
const listLimit = 20

// ErrNotFound is returned when a conversation does not exist for the user.
var ErrNotFound = errors.New("history: conversation not found")

// Conversation is one stored chat thread.
type Conversation struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Messages    []llm.Message `json:"messages"`
	CreatedAt   time.Time     `json:"created_at"`
	LastUpdated time.Time     `json:"last_updated"`
}

// Store persists conversations.
//
// Thread Safety: Safe for concurrent use; Badger transactions provide
// isolation.
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) the conversation database at path.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("history: opening store at %s: %w", path, err)
	}
	slog.Info("Conversation store opened", slog.String("path", path))
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func conversationKey(userID, convID string) []byte {
	return []byte(keyPrefix + userID + "/" + convID)
}

// deriveTitle builds a display title from the first user message.
func deriveTitle(firstMessage string) string {
	title := strings.TrimSpace(firstMessage)
	if title == "" {
		return "New conversation"
	}
	runes := []rune(title)
	if len(runes) > titleLimit {
		return string(runes[:titleLimit])
	}
	return title
}

// Create starts a new conversation titled after the first user message.
func (s *Store) Create(userID, firstMessage string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:          uuid.NewString(),
		Title:       deriveTitle(firstMessage),
		CreatedAt:   now,
		LastUpdated: now,
	}
	if firstMessage != "" {
		conv.Messages = []llm.Message{{Role: "user", Content: firstMessage}}
	}
	if err := s.put(userID, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get loads one conversation.
func (s *Store) Get(userID, convID string) (*Conversation, error) {
	var conv Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(userID, convID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conv)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: loading conversation: %w", err)
	}
	return &conv, nil
}

// Append adds messages to an existing conversation and bumps its
// last-updated time.
func (s *Store) Append(userID, convID string, messages ...llm.Message) (*Conversation, error) {
	conv, err := s.Get(userID, convID)
	if err != nil {
		return nil, err
	}
	conv.Messages = append(conv.Messages, messages...)
	conv.LastUpdated = time.Now().UTC()
	if err := s.put(userID, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// List returns the user's conversations, most recently updated first,
// capped at listLimit. Message bodies are included; callers wanting a
// light listing can drop them.
func (s *Store) List(userID string) ([]*Conversation, error) {
	prefix := []byte(keyPrefix + userID + "/")

	var convs []*Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var conv Conversation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &conv)
			})
			if err != nil {
				return err
			}
			convs = append(convs, &conv)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: listing conversations: %w", err)
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastUpdated.After(convs[j].LastUpdated)
	})
	if len(convs) > listLimit {
		convs = convs[:listLimit]
	}
	return convs, nil
}

// Delete removes one conversation. Deleting a missing conversation is not
// an error.
func (s *Store) Delete(userID, convID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(conversationKey(userID, convID))
	})
	if err != nil {
		return fmt.Errorf("history: deleting conversation: %w", err)
	}
	return nil
}

func (s *Store) put(userID string, conv *Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("history: encoding conversation: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(conversationKey(userID, conv.ID), data)
	})
	if err != nil {
		return fmt.Errorf("history: storing conversation: %w", err)
	}
	return nil
}
