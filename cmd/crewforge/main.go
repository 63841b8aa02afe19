// Command crewforge runs a multi-agent collaborative development
// session: a crew of LLM agent personas coordinating through a shared
// JSON ledger, with an optional terminal dashboard watching the file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/crewforge/crewforge/pkg/config"
	"github.com/crewforge/crewforge/pkg/telemetry"
)

const version = "0.1.0"

type globalFlags struct {
	ConfigPath string
	Personas   string
	JSON       bool
	LogLevel   string
	Mock       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}
	if global.LogLevel != "" {
		cfg.Log.Level = global.LogLevel
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	switch args[0] {
	case "run":
		runSession(ctx, global, cfg, args[1:])
	case "ledger":
		runLedger(ctx, global, cfg, args[1:])
	case "status":
		ensureNoArgs(args[1:])
		runStatus(global, cfg)
	case "version":
		fmt.Println(version)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--mock":
			flags.Mock = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--personas":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --personas")
			}
			flags.Personas = args[i+1]
			i++
		case strings.HasPrefix(arg, "--personas="):
			flags.Personas = strings.TrimPrefix(arg, "--personas=")
		case arg == "--log-level":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --log-level")
			}
			flags.LogLevel = args[i+1]
			i++
		case strings.HasPrefix(arg, "--log-level="):
			flags.LogLevel = strings.TrimPrefix(arg, "--log-level=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

type statusResult struct {
	Version      string `json:"version"`
	LedgerPath   string `json:"ledger_path"`
	LedgerExists bool   `json:"ledger_exists"`
	Workspace    string `json:"workspace"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	APIKeySet    bool   `json:"api_key_set"`
	LockApproval bool   `json:"lock_approval"`
}

func runStatus(flags globalFlags, cfg *config.Config) {
	_, statErr := os.Stat(cfg.Ledger.Path)
	result := statusResult{
		Version:      version,
		LedgerPath:   cfg.Ledger.Path,
		LedgerExists: statErr == nil,
		Workspace:    cfg.Workspace.Root,
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		APIKeySet:    cfg.LLM.APIKey != "",
		LockApproval: cfg.Features.LockApproval,
	}
	if flags.JSON {
		printJSON(result)
		return
	}
	fmt.Printf("crewforge %s\n", result.Version)
	fmt.Printf("ledger: %s (exists=%t)\n", result.LedgerPath, result.LedgerExists)
	fmt.Printf("workspace: %s\n", result.Workspace)
	fmt.Printf("provider: %s model=%s api_key_set=%t\n", result.Provider, result.Model, result.APIKeySet)
	fmt.Printf("lock approval: %t\n", result.LockApproval)
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateCell(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}

func printUsage() {
	fmt.Println(`crewforge - multi-agent collaborative development

Usage:
  crewforge [global flags] <command> [args]

Global flags:
  --config <path>      Path to config YAML
  --personas <path>    Extra persona definitions (YAML)
  --log-level <level>  debug, info, warn, error
  --mock               Use the mock LLM provider (no API key needed)
  --json               JSON output

Commands:
  run [dev|dashboard|full]   Run a session (default dev)
  ledger messages [--agent <name>] [--unread]
  ledger locks
  ledger status [--agent <name>]
  ledger context
  ledger conflicts
  ledger tail [--interval 2s]
  ledger history [--run <id>] [--limit N]
  status
  version`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}
