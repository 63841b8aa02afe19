package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/llm"
)

// ProjectStatus answers read-only questions about team progress, file
// locks and integration points.
type ProjectStatus struct {
	hub *ledger.Hub
}

// NewProjectStatus builds the tool.
func NewProjectStatus(hub *ledger.Hub) *ProjectStatus {
	return &ProjectStatus{hub: hub}
}

func (t *ProjectStatus) Name() string { return "project_status" }

func (t *ProjectStatus) Description() string {
	return "Check team status, locked files, and registered integration points"
}

func (t *ProjectStatus) Definition() llm.Tool {
	return definition(t.Name(), t.Description(), map[string]any{
		"action": map[string]any{
			"type": "string",
			"enum": []string{"team_status", "file_status", "integration_status"},
		},
	}, "action")
}

// Call implements core.Tool.
func (t *ProjectStatus) Call(_ context.Context, input map[string]any) (string, error) {
	doc, err := t.hub.Snapshot()
	if err != nil {
		return "", err
	}

	switch str(input, "action") {
	case "file_status":
		if len(doc.FileLocks) == 0 {
			return "No files currently locked", nil
		}
		var b strings.Builder
		b.WriteString("Locked files:\n")
		for path, lock := range doc.FileLocks {
			fmt.Fprintf(&b, "- %s (locked by %s)\n", path, lock.Owner)
		}
		return b.String(), nil

	case "integration_status":
		points := doc.IntegrationPoints
		if len(points) == 0 {
			return "No integration points registered yet", nil
		}
		if len(points) > 10 {
			points = points[len(points)-10:]
		}
		var b strings.Builder
		b.WriteString("Integration points:\n")
		for _, pt := range points {
			fmt.Fprintf(&b, "- %s by %s\n", pt.Component, pt.Agent)
		}
		return b.String(), nil

	default:
		// Anything else is a team status request.
		updates := doc.StatusUpdates
		if len(updates) == 0 {
			return "No status updates available", nil
		}
		if len(updates) > 20 {
			updates = updates[len(updates)-20:]
		}
		latest := make(map[string]ledger.StatusUpdate)
		var order []string
		for _, u := range updates {
			if _, seen := latest[u.Agent]; !seen {
				order = append(order, u.Agent)
			}
			latest[u.Agent] = u
		}
		var b strings.Builder
		b.WriteString("Team status:\n")
		for _, agent := range order {
			fmt.Fprintf(&b, "- %s: %s\n", agent, latest[agent].State)
		}
		return b.String(), nil
	}
}

var _ Tool = (*ProjectStatus)(nil)
