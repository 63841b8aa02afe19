package tools

import (
	"context"
	"fmt"
	"strings"

	cferrors "github.com/crewforge/crewforge/pkg/errors"
	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/llm"
)

// LockManager is the decision tool held only by the lock-manager
// persona: it lists, approves and denies file lock requests.
type LockManager struct {
	hub   *ledger.Hub
	agent string
}

// NewLockManager builds the tool for the deciding agent.
func NewLockManager(hub *ledger.Hub, agent string) *LockManager {
	return &LockManager{hub: hub, agent: agent}
}

func (t *LockManager) Name() string { return "lock_manager" }

func (t *LockManager) Description() string {
	return "List pending file lock requests and approve or deny them"
}

func (t *LockManager) Definition() llm.Tool {
	return definition(t.Name(), t.Description(), map[string]any{
		"action": map[string]any{
			"type": "string",
			"enum": []string{"list_requests", "approve", "deny", "approve_all"},
		},
		"request_id": map[string]any{"type": "string", "description": "Request to decide (approve/deny)"},
		"reason":     map[string]any{"type": "string", "description": "Decision reason"},
	}, "action")
}

// Call implements core.Tool.
func (t *LockManager) Call(_ context.Context, input map[string]any) (string, error) {
	switch action := str(input, "action"); action {
	case "list_requests":
		pending, err := t.hub.PendingLockRequests()
		if err != nil {
			return "", err
		}
		if len(pending) == 0 {
			return "No pending file lock requests", nil
		}
		var b strings.Builder
		b.WriteString("Pending file lock requests:\n")
		for i, r := range pending {
			fmt.Fprintf(&b, "%d. %s wants %s (ID: %s)\n", i+1, r.Agent, r.Path, r.ID)
		}
		return b.String(), nil

	case "approve":
		id := str(input, "request_id")
		if id == "" {
			return "", missingArg(t.Name(), "request_id")
		}
		req, found, err := t.hub.LockRequest(id)
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("Request %s not found", id), nil
		}
		reason := strOr(input, "reason", "approved")
		if err := t.hub.ApproveLockRequest(id, reason); err != nil {
			if cferrors.IsCode(err, cferrors.CodeLockHeld) || cferrors.IsCode(err, cferrors.CodeInvalidInput) {
				return fmt.Sprintf("Cannot approve %s: %v", id, err), nil
			}
			return "", err
		}
		t.notify(req.Agent, fmt.Sprintf("File lock approved for %s", req.Path))
		return fmt.Sprintf("Approved file lock for %s on %s", req.Agent, req.Path), nil

	case "deny":
		id := str(input, "request_id")
		if id == "" {
			return "", missingArg(t.Name(), "request_id")
		}
		req, found, err := t.hub.LockRequest(id)
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("Request %s not found", id), nil
		}
		reason := strOr(input, "reason", "denied by lock manager")
		if err := t.hub.DenyLockRequest(id, reason); err != nil {
			if cferrors.IsCode(err, cferrors.CodeInvalidInput) {
				return fmt.Sprintf("Cannot deny %s: %v", id, err), nil
			}
			return "", err
		}
		t.notify(req.Agent, fmt.Sprintf("File lock denied for %s: %s", req.Path, reason))
		return fmt.Sprintf("Denied file lock for %s on %s: %s", req.Agent, req.Path, reason), nil

	case "approve_all":
		granted, err := t.hub.ApproveAllPending(strOr(input, "reason", "approved in bulk"))
		if err != nil {
			return "", err
		}
		if granted == 0 {
			return "No pending requests to approve", nil
		}
		return fmt.Sprintf("Approved %d file lock requests", granted), nil

	default:
		return "Invalid action. Use: list_requests, approve, deny, or approve_all", nil
	}
}

// notify tells the requester about the decision; delivery failures are
// not fatal to the decision itself.
func (t *LockManager) notify(agent, body string) {
	t.hub.SendMessage(t.agent, agent, body, ledger.MessageInfo)
}

var _ Tool = (*LockManager)(nil)
