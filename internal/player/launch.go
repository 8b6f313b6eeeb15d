package player

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrSocketTimeout is returned when mpv starts but never opens its IPC socket
var ErrSocketTimeout = errors.New("timeout waiting for mpv socket")

// LaunchConfig describes how to start mpv
type LaunchConfig struct {
	Command string
	Args    []string
	Target  string
	// SocketPath is generated under the temp dir when empty
	SocketPath string
	Logger     *log.Logger
}

// Process is an mpv instance started by Launch
type Process struct {
	MPV  *MPV
	cmd  *exec.Cmd
	done chan struct{}
}

// Done is closed when the mpv process exits
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Kill terminates mpv if it is still running
func (p *Process) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	return p.cmd.Process.Kill()
}

// Launch starts mpv with an IPC server and waits for its socket to appear
func Launch(ctx context.Context, cfg LaunchConfig) (*Process, error) {
	if cfg.Command == "" {
		cfg.Command = "mpv"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, errors.Errorf("%s not found in PATH. Please install mpv: https://mpv.io/installation/", cfg.Command)
	}

	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = defaultSocketPath(uuid.NewString())
	}

	args := []string{
		"--no-terminal",
		"--quiet",
		fmt.Sprintf("--input-ipc-server=%s", socketPath),
	}
	args = append(args, cfg.Args...)
	if cfg.Target != "" {
		args = append(args, cfg.Target)
	} else {
		args = append(args, "--idle=yes", "--force-window=yes")
	}

	cfg.Logger.Debug("starting mpv", "args", args)

	cmd := exec.CommandContext(ctx, cfg.Command, args...)
	setProcessGroup(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start mpv (stderr: %s)", stderr.String())
	}

	proc := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(proc.done)
	}()

	const maxAttempts = 30
	for i := 0; i < maxAttempts; i++ {
		if socketExists(socketPath) {
			cfg.Logger.Debug("mpv socket ready", "socket", socketPath, "after", time.Since(start))
			proc.MPV = NewMPV(socketPath, cfg.Logger)
			return proc, nil
		}

		select {
		case <-proc.done:
			return nil, errors.Errorf("mpv process exited prematurely: %s", stderr.String())
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	if err := proc.Kill(); err != nil {
		cfg.Logger.Debug("failed to kill mpv", "error", err)
	}
	return nil, errors.Wrapf(ErrSocketTimeout, "%s after %s", socketPath, time.Since(start).Round(time.Millisecond))
}
