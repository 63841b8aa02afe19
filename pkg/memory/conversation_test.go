package memory

import (
	"context"
	"fmt"
	"testing"
)

func TestWindowStrategy(t *testing.T) {
	msgs := []ConversationMessage{
		{Role: "system", Content: "persona brief"},
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "three"},
		{Role: "assistant", Content: "four"},
	}

	w := &WindowStrategy{MaxMessages: 3}
	out, err := w.Truncate(context.Background(), msgs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0].Content != "two" {
		t.Errorf("plain window = %+v", out)
	}

	w = &WindowStrategy{MaxMessages: 3, KeepSystemMessages: true}
	out, err = w.Truncate(context.Background(), msgs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0].Role != "system" {
		t.Errorf("pinned window = %+v", out)
	}
	if out[len(out)-1].Content != "four" {
		t.Errorf("pinned window dropped newest: %+v", out)
	}
}

func conversationStores(t *testing.T) map[string]Conversation {
	t.Helper()
	file, err := NewFileConversation(t.TempDir(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Conversation{
		"inmemory": NewInMemoryConversation(Config{}),
		"file":     file,
	}
}

func TestConversationAppendAndMessages(t *testing.T) {
	for name, store := range conversationStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				err := store.Append(ctx, "backend", ConversationMessage{
					Role:    "assistant",
					Content: fmt.Sprintf("turn %d", i),
				})
				if err != nil {
					t.Fatal(err)
				}
			}

			msgs, err := store.Messages(ctx, "backend")
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != 3 {
				t.Fatalf("messages = %d, want 3", len(msgs))
			}
			if msgs[0].ID == "" || msgs[0].SessionID != "backend" {
				t.Errorf("message not normalized: %+v", msgs[0])
			}
			if msgs[2].Content != "turn 2" {
				t.Errorf("order broken: %+v", msgs)
			}

			// Other sessions are isolated.
			other, err := store.Messages(ctx, "frontend")
			if err != nil {
				t.Fatal(err)
			}
			if len(other) != 0 {
				t.Errorf("foreign session has %d messages", len(other))
			}

			if err := store.Clear(ctx, "backend"); err != nil {
				t.Fatal(err)
			}
			msgs, err = store.Messages(ctx, "backend")
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != 0 {
				t.Errorf("messages after Clear = %d", len(msgs))
			}
			// Clearing twice is fine.
			if err := store.Clear(ctx, "backend"); err != nil {
				t.Errorf("second Clear: %v", err)
			}
		})
	}
}

func TestCompositeSessionIDsStayDistinct(t *testing.T) {
	for name, store := range conversationStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Append(ctx, "run-1/backend", ConversationMessage{Role: "assistant", Content: "first run"}); err != nil {
				t.Fatal(err)
			}
			if err := store.Append(ctx, "run-2/backend", ConversationMessage{Role: "assistant", Content: "second run"}); err != nil {
				t.Fatal(err)
			}

			first, err := store.Messages(ctx, "run-1/backend")
			if err != nil {
				t.Fatal(err)
			}
			second, err := store.Messages(ctx, "run-2/backend")
			if err != nil {
				t.Fatal(err)
			}
			if len(first) != 1 || first[0].Content != "first run" {
				t.Errorf("run-1 transcript = %+v", first)
			}
			if len(second) != 1 || second[0].Content != "second run" {
				t.Errorf("run-2 transcript = %+v", second)
			}
		})
	}
}

func TestFileConversationTruncation(t *testing.T) {
	store, err := NewFileConversation(t.TempDir(), Config{
		TruncationStrategy: &WindowStrategy{MaxMessages: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.Append(ctx, "qa", ConversationMessage{Role: "user", Content: fmt.Sprint(i)}); err != nil {
			t.Fatal(err)
		}
	}
	msgs, err := store.Messages(ctx, "qa")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[1].Content != "4" {
		t.Errorf("truncated transcript = %+v", msgs)
	}
}
