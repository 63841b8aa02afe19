// Copyright 2026 © The Crewforge Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryConversation keeps transcripts in process memory. It is the
// default for tests and single-run sessions.
type InMemoryConversation struct {
	mu       sync.RWMutex
	sessions map[string][]ConversationMessage
	config   Config
}

// NewInMemoryConversation creates an in-memory conversation store.
func NewInMemoryConversation(config Config) *InMemoryConversation {
	return &InMemoryConversation{
		sessions: make(map[string][]ConversationMessage),
		config:   config,
	}
}

// Append implements Conversation.
func (m *InMemoryConversation) Append(_ context.Context, sessionID string, msg ConversationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SessionID == "" {
		msg.SessionID = sessionID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.sessions[sessionID] = append(m.sessions[sessionID], msg)
	return nil
}

// Messages implements Conversation.
func (m *InMemoryConversation) Messages(ctx context.Context, sessionID string) ([]ConversationMessage, error) {
	m.mu.RLock()
	stored := m.sessions[sessionID]
	messages := make([]ConversationMessage, len(stored))
	copy(messages, stored)
	m.mu.RUnlock()

	if m.config.TruncationStrategy != nil && len(messages) > 0 {
		return m.config.TruncationStrategy.Truncate(ctx, messages)
	}
	return messages, nil
}

// Clear implements Conversation.
func (m *InMemoryConversation) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

var _ Conversation = (*InMemoryConversation)(nil)
