package launcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/crewforge/crewforge/pkg/errors"
)

// Process is a supervised child process, typically the background agent
// runner in full mode.
type Process struct {
	cmd    *exec.Cmd
	done   chan struct{}
	err    error
	logger *slog.Logger
}

// StartOption customizes process startup.
type StartOption func(*startConfig)

type startConfig struct {
	stdout io.Writer
	stderr io.Writer
	dir    string
	env    []string
	logger *slog.Logger
}

// WithOutput redirects the child's stdout and stderr. By default both
// are discarded, matching a detached background launch.
func WithOutput(stdout, stderr io.Writer) StartOption {
	return func(c *startConfig) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) StartOption {
	return func(c *startConfig) { c.dir = dir }
}

// WithEnv appends environment variables (KEY=VALUE) to the child.
func WithEnv(env ...string) StartOption {
	return func(c *startConfig) { c.env = append(c.env, env...) }
}

// WithProcessLogger sets the supervision logger.
func WithProcessLogger(logger *slog.Logger) StartOption {
	return func(c *startConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Start launches name with args as a background child process.
func Start(ctx context.Context, name string, args []string, opts ...StartOption) (*Process, error) {
	cfg := startConfig{
		stdout: io.Discard,
		stderr: io.Discard,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = cfg.stdout
	cmd.Stderr = cfg.stderr
	cmd.Dir = cfg.dir
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.New(errors.CodeLaunchError, "start "+name, err)
	}
	cfg.logger.Info("launcher.process.started",
		slog.String("command", name),
		slog.Int("pid", cmd.Process.Pid),
	)

	p := &Process{cmd: cmd, done: make(chan struct{}), logger: cfg.logger}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Pid returns the child's process ID.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed when the child exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the child exits and returns its error, if any.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Stop asks the child to terminate, escalating to SIGKILL after grace.
// It returns once the child has exited.
func (p *Process) Stop(grace time.Duration) error {
	select {
	case <-p.done:
		return p.err
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.logger.Warn("launcher.process.signal_failed", slog.Any("error", err))
	}
	select {
	case <-p.done:
	case <-time.After(grace):
		p.logger.Warn("launcher.process.killed",
			slog.Int("pid", p.cmd.Process.Pid),
			slog.Duration("grace", grace),
		)
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	p.logger.Info("launcher.process.stopped", slog.Int("pid", p.cmd.Process.Pid))
	return nil
}
