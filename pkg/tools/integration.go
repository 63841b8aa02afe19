package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/llm"
	"github.com/crewforge/crewforge/pkg/roster"
)

// Integration registers component contracts, checks dependencies and
// reports conflicts to the integration developer.
type Integration struct {
	hub   *ledger.Hub
	agent string
}

// NewIntegration builds the tool for one agent.
func NewIntegration(hub *ledger.Hub, agent string) *Integration {
	return &Integration{hub: hub, agent: agent}
}

func (t *Integration) Name() string { return "integration" }

func (t *Integration) Description() string {
	return "Register component interfaces, check dependencies between components, and report conflicts"
}

func (t *Integration) Definition() llm.Tool {
	return definition(t.Name(), t.Description(), map[string]any{
		"action": map[string]any{
			"type": "string",
			"enum": []string{"register_interface", "check_dependencies", "report_conflict"},
		},
		"component": map[string]any{"type": "string", "description": "Component name"},
		"interface": map[string]any{"type": "object", "description": "Contract details, may list dependencies"},
		"conflict":  map[string]any{"type": "string", "description": "Conflict description (report_conflict)"},
	}, "action")
}

// Call implements core.Tool.
func (t *Integration) Call(_ context.Context, input map[string]any) (string, error) {
	switch action := str(input, "action"); action {
	case "register_interface":
		component := str(input, "component")
		if component == "" {
			return "", missingArg(t.Name(), "component")
		}
		contract := object(input, "interface")
		if err := t.hub.RegisterIntegrationPoint(t.agent, component, contract); err != nil {
			return "", err
		}
		note := fmt.Sprintf("New interface registered: %s", component)
		if _, err := t.hub.SendMessage(t.agent, roster.Integration, note, ledger.MessageInfo); err != nil {
			return "", err
		}
		return fmt.Sprintf("Interface registered for %s", component), nil

	case "check_dependencies":
		component := str(input, "component")
		if component == "" {
			return "", missingArg(t.Name(), "component")
		}
		return t.dependenciesOf(component)

	case "report_conflict":
		details := str(input, "conflict")
		if details == "" {
			return "", missingArg(t.Name(), "conflict")
		}
		c, err := t.hub.ReportConflict(t.agent, details)
		if err != nil {
			return "", err
		}
		note := fmt.Sprintf("CONFLICT DETECTED: %s", details)
		if _, err := t.hub.SendMessage(t.agent, roster.Integration, note, ledger.MessageWarning); err != nil {
			return "", err
		}
		return fmt.Sprintf("Conflict %s reported to the integration developer", c.ID), nil

	default:
		// Free-text falls through as an integration broadcast.
		if action == "" {
			return "", missingArg(t.Name(), "action")
		}
		if _, err := t.hub.SendMessage(t.agent, "all", "Integration: "+action, ledger.MessageInfo); err != nil {
			return "", err
		}
		return "Integration message sent", nil
	}
}

// dependenciesOf lists registered contracts that declare component as
// a dependency.
func (t *Integration) dependenciesOf(component string) (string, error) {
	doc, err := t.hub.Snapshot()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	count := 0
	for _, pt := range doc.IntegrationPoints {
		deps, ok := pt.Contract["dependencies"].([]any)
		if !ok {
			continue
		}
		for _, dep := range deps {
			if name, ok := dep.(string); ok && name == component {
				fmt.Fprintf(&b, "- %s by %s\n", pt.Component, pt.Agent)
				count++
				break
			}
		}
	}
	if count == 0 {
		return fmt.Sprintf("No dependencies found for %s", component), nil
	}
	return fmt.Sprintf("Dependencies for %s:\n%s", component, b.String()), nil
}

var _ Tool = (*Integration)(nil)
