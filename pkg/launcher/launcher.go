// Package launcher starts and supervises the crew session processes:
// the agent runner, the dashboard, or both ("full" mode, agents in a
// background process with the dashboard in the foreground).
package launcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/crewforge/crewforge/pkg/errors"
)

// Mode selects what the launcher runs.
type Mode string

const (
	// ModeDev runs the collaborative agents without a dashboard.
	ModeDev Mode = "dev"
	// ModeDashboard only monitors an existing session.
	ModeDashboard Mode = "dashboard"
	// ModeFull runs agents in the background and the dashboard in the
	// foreground.
	ModeFull Mode = "full"
)

// ParseMode validates a mode string.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeDev, ModeDashboard, ModeFull:
		return Mode(value), nil
	case "":
		return ModeDev, nil
	default:
		return "", errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("unknown mode %q (want dev, dashboard or full)", value), nil)
	}
}

// Default readiness poll: 30 tries, 2 seconds apart.
const (
	DefaultWaitInterval = 2 * time.Second
	DefaultWaitAttempts = 30
)

// WaitForLedger polls until the ledger file exists, the attempts run
// out, or ctx is cancelled. The dashboard uses it in full mode so it
// does not start against a missing file.
func WaitForLedger(ctx context.Context, path string, interval time.Duration, maxAttempts int) error {
	if interval <= 0 {
		interval = DefaultWaitInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultWaitAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.New(errors.CodeTimeout, "cancelled waiting for ledger", ctx.Err())
		case <-time.After(interval):
		}
	}
	return errors.New(errors.CodeTimeout,
		fmt.Sprintf("ledger %s not created after %d attempts", path, maxAttempts), nil)
}

// Requirements are the preconditions checked before a session starts.
type Requirements struct {
	// NeedAPIKey is false when running against a mock provider.
	NeedAPIKey bool
	// Workspace must exist or be creatable.
	Workspace string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// apiKeyEnvVars are checked in order for a provider credential.
var apiKeyEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// Check verifies the requirements, returning the first failure.
func (r Requirements) Check() error {
	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if r.NeedAPIKey {
		found := false
		for _, name := range apiKeyEnvVars {
			if value, ok := lookup(name); ok && value != "" {
				found = true
				break
			}
		}
		if !found {
			return errors.New(errors.CodeInvalidInput,
				"no API key configured (set GEMINI_API_KEY or GOOGLE_API_KEY)", nil)
		}
	}
	if r.Workspace != "" {
		if err := os.MkdirAll(r.Workspace, 0o755); err != nil {
			return errors.New(errors.CodeInvalidInput, "workspace not writable", err)
		}
	}
	return nil
}
