// Copyright 2026 © The Crewforge Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileConversation persists each session as a JSON file under a base
// directory, so transcripts survive process restarts.
type FileConversation struct {
	mu      sync.RWMutex
	baseDir string
	config  Config
}

// NewFileConversation creates a file-backed conversation store.
func NewFileConversation(baseDir string, config Config) (*FileConversation, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation directory: %w", err)
	}
	return &FileConversation{baseDir: baseDir, config: config}, nil
}

// sessionFile maps a session ID to its file. Separators in composite
// IDs are flattened so they stay distinct without escaping baseDir.
func (f *FileConversation) sessionFile(sessionID string) string {
	name := strings.NewReplacer("/", "-", "\\", "-").Replace(sessionID)
	return filepath.Join(f.baseDir, filepath.Base(name)+".json")
}

// Append implements Conversation.
func (f *FileConversation) Append(_ context.Context, sessionID string, msg ConversationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SessionID == "" {
		msg.SessionID = sessionID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	messages, err := f.load(sessionID)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load transcript: %w", err)
	}
	messages = append(messages, msg)
	return f.save(sessionID, messages)
}

// Messages implements Conversation.
func (f *FileConversation) Messages(ctx context.Context, sessionID string) ([]ConversationMessage, error) {
	f.mu.RLock()
	messages, err := f.load(sessionID)
	f.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if f.config.TruncationStrategy != nil && len(messages) > 0 {
		return f.config.TruncationStrategy.Truncate(ctx, messages)
	}
	return messages, nil
}

// Clear implements Conversation.
func (f *FileConversation) Clear(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.sessionFile(sessionID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FileConversation) load(sessionID string) ([]ConversationMessage, error) {
	data, err := os.ReadFile(f.sessionFile(sessionID))
	if err != nil {
		return nil, err
	}
	var messages []ConversationMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return messages, nil
}

func (f *FileConversation) save(sessionID string, messages []ConversationMessage) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.sessionFile(sessionID), data, 0o600)
}

var _ Conversation = (*FileConversation)(nil)
