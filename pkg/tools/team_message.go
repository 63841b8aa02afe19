package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/llm"
)

// TeamMessage lets an agent message teammates, drain its mailbox,
// request reviews and share progress.
type TeamMessage struct {
	hub   *ledger.Hub
	agent string
}

// NewTeamMessage builds the tool for one agent.
func NewTeamMessage(hub *ledger.Hub, agent string) *TeamMessage {
	return &TeamMessage{hub: hub, agent: agent}
}

func (t *TeamMessage) Name() string { return "team_message" }

func (t *TeamMessage) Description() string {
	return "Send messages to other agents, read your mailbox, request code reviews, and share progress"
}

func (t *TeamMessage) Definition() llm.Tool {
	return definition(t.Name(), t.Description(), map[string]any{
		"action": map[string]any{
			"type": "string",
			"enum": []string{"send_message", "get_messages", "request_review", "share_progress"},
		},
		"to":       map[string]any{"type": "string", "description": "Recipient agent name, or 'all'"},
		"body":     map[string]any{"type": "string", "description": "Message text or progress summary"},
		"type":     map[string]any{"type": "string", "description": "Message type, defaults to info"},
		"path":     map[string]any{"type": "string", "description": "File to review (request_review)"},
		"reviewer": map[string]any{"type": "string", "description": "Reviewer name (request_review), defaults to qa"},
	}, "action")
}

// Call implements core.Tool.
func (t *TeamMessage) Call(_ context.Context, input map[string]any) (string, error) {
	switch action := str(input, "action"); action {
	case "send_message":
		to := strOr(input, "to", "all")
		body := str(input, "body")
		if body == "" {
			return "", missingArg(t.Name(), "body")
		}
		if _, err := t.hub.SendMessage(t.agent, to, body, strOr(input, "type", ledger.MessageInfo)); err != nil {
			return "", err
		}
		return fmt.Sprintf("Message sent to %s", to), nil

	case "get_messages":
		return t.drainMailbox()

	case "request_review":
		path := str(input, "path")
		if path == "" {
			return "", missingArg(t.Name(), "path")
		}
		reviewer := strOr(input, "reviewer", "qa")
		body := fmt.Sprintf("Please review %s - ready for code review", path)
		if _, err := t.hub.SendMessage(t.agent, reviewer, body, ledger.MessageQuestion); err != nil {
			return "", err
		}
		return fmt.Sprintf("Code review requested from %s", reviewer), nil

	case "share_progress":
		body := str(input, "body")
		if body == "" {
			return "", missingArg(t.Name(), "body")
		}
		if err := t.hub.UpdateStatus(t.agent, body, object(input, "details")); err != nil {
			return "", err
		}
		if _, err := t.hub.SendMessage(t.agent, "all", "Progress update: "+body, ledger.MessageInfo); err != nil {
			return "", err
		}
		return "Progress shared with the team", nil

	default:
		// An unknown action is treated as message text, matching how
		// models commonly misuse the tool.
		if action == "" {
			return "", missingArg(t.Name(), "action")
		}
		to := strOr(input, "to", "all")
		if _, err := t.hub.SendMessage(t.agent, to, action, strOr(input, "type", ledger.MessageInfo)); err != nil {
			return "", err
		}
		return fmt.Sprintf("Message sent to %s", to), nil
	}
}

// drainMailbox reports unread direct messages and marks them read.
// Broadcasts to "all" stay in the ledger for the dashboard.
func (t *TeamMessage) drainMailbox() (string, error) {
	msgs, err := t.hub.Messages(t.agent, true)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "No new messages", nil
	}

	var b strings.Builder
	b.WriteString("New messages:\n")
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		fmt.Fprintf(&b, "- From %s: %s\n", m.From, m.Body)
		ids = append(ids, m.ID)
	}
	if err := t.hub.MarkRead(ids...); err != nil {
		return "", err
	}
	return b.String(), nil
}

var _ Tool = (*TeamMessage)(nil)
