package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cferrors "github.com/crewforge/crewforge/pkg/errors"
	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/llm"
)

// WriteFile writes a workspace file under a ledger lock, notifying the
// rest of the crew. With approval enabled it files a lock request and
// waits for the lock manager's decision before touching the file.
type WriteFile struct {
	hub       *ledger.Hub
	workspace string
	agent     string

	// approval gates writes behind the lock-request workflow.
	approval     bool
	pollInterval time.Duration
	maxPolls     int
}

// WriteFileConfig assembles a WriteFile tool.
type WriteFileConfig struct {
	Hub       *ledger.Hub
	Workspace string
	Agent     string
	Approval  bool
	// PollInterval and MaxPolls bound the wait for a lock decision.
	// Defaults: 2s and 30 polls.
	PollInterval time.Duration
	MaxPolls     int
}

// NewWriteFile builds the tool for one agent.
func NewWriteFile(cfg WriteFileConfig) *WriteFile {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
	}
	return &WriteFile{
		hub:          cfg.Hub,
		workspace:    cfg.Workspace,
		agent:        cfg.Agent,
		approval:     cfg.Approval,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
	}
}

func (w *WriteFile) Name() string { return "write_file" }

func (w *WriteFile) Description() string {
	return "Write a file in the shared workspace with conflict detection and team notification"
}

func (w *WriteFile) Definition() llm.Tool {
	return definition(w.Name(), w.Description(), map[string]any{
		"path":    map[string]any{"type": "string", "description": "Workspace-relative file path"},
		"content": map[string]any{"type": "string", "description": "Full file content"},
	}, "path", "content")
}

// Call implements core.Tool.
func (w *WriteFile) Call(ctx context.Context, input map[string]any) (string, error) {
	rel := str(input, "path")
	if rel == "" {
		return "", missingArg(w.Name(), "path")
	}
	content, ok := input["content"].(string)
	if !ok {
		return "", missingArg(w.Name(), "content")
	}

	full, err := w.resolve(rel)
	if err != nil {
		return "", err
	}

	granted, verdict, err := w.obtainLock(ctx, rel)
	if err != nil {
		return "", err
	}
	if !granted {
		return verdict, nil
	}
	defer w.hub.ReleaseLock(rel, w.agent)

	_, existed := os.Stat(full)
	action := "created"
	note := fmt.Sprintf("Creating new file: %s", rel)
	if existed == nil {
		action = "modified"
		note = fmt.Sprintf("Modifying existing file: %s", rel)
	}
	if _, err := w.hub.SendMessage(w.agent, "all", note, ledger.MessageInfo); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", cferrors.New(cferrors.CodeToolFailure, "create directories", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", cferrors.New(cferrors.CodeToolFailure, fmt.Sprintf("write %s", rel), err)
	}

	err = w.hub.UpdateStatus(w.agent, fmt.Sprintf("Wrote %s", rel), map[string]any{
		"file_path": rel,
		"lines":     strings.Count(content, "\n") + 1,
		"action":    action,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote %s (%s). Team has been notified.", rel, action), nil
}

// resolve maps a workspace-relative path to disk, rejecting escapes.
func (w *WriteFile) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", cferrors.New(cferrors.CodeInvalidInput,
			fmt.Sprintf("path must be workspace-relative: %s", rel), nil)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", cferrors.New(cferrors.CodeInvalidInput,
			fmt.Sprintf("path escapes the workspace: %s", rel), nil)
	}
	return filepath.Join(w.workspace, clean), nil
}

// obtainLock takes the lock directly, or with approval enabled files a
// request and waits for the decision. The verdict string is returned
// to the model when the lock is not granted.
func (w *WriteFile) obtainLock(ctx context.Context, rel string) (bool, string, error) {
	if !w.approval {
		err := w.hub.AcquireLock(rel, w.agent)
		if cferrors.IsCode(err, cferrors.CodeLockHeld) {
			holder, _, _ := w.hub.LockHolder(rel)
			return false, fmt.Sprintf("Lock denied: %s is currently locked by %s", rel, holder), nil
		}
		if err != nil {
			return false, "", err
		}
		return true, "", nil
	}

	req, err := w.hub.RequestLock(w.agent, rel, "write_file")
	if err != nil {
		return false, "", err
	}
	for i := 0; i < w.maxPolls; i++ {
		cur, found, err := w.hub.LockRequest(req.ID)
		if err != nil {
			return false, "", err
		}
		if found {
			switch cur.Status {
			case ledger.RequestApproved:
				return true, "", nil
			case ledger.RequestDenied, ledger.RequestExpired:
				return false, fmt.Sprintf("Lock request denied for %s: %s", rel, cur.Decision), nil
			}
		}
		select {
		case <-ctx.Done():
			return false, "", cferrors.New(cferrors.CodeTimeout, "canceled while waiting for lock decision", ctx.Err())
		case <-time.After(w.pollInterval):
		}
	}
	return false, fmt.Sprintf("Lock request for %s timed out without a decision", rel), nil
}

var _ Tool = (*WriteFile)(nil)
