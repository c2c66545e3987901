package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

var (
	// ErrLogFile reports that the capture file could not be created.
	ErrLogFile = errors.New("log file")
	// ErrStart reports that the OS refused to start the binary.
	ErrStart = errors.New("start")
)

// SpawnOptions describes one frpc launch.
type SpawnOptions struct {
	ProfileID  string
	Binary     string
	ConfigPath string
	LogPath    string
	WorkDir    string
	Env        []string
}

// ManagedProcess is a running frpc instance owned by a supervisor table entry.
// Only the waiter goroutine started by Spawn calls cmd.Wait; everybody else
// observes exit through done.
type ManagedProcess struct {
	ProfileID  string
	PID        int
	LogPath    string
	ConfigPath string
	StartedAt  time.Time

	cmd     *exec.Cmd
	done    chan struct{}
	mu      sync.Mutex
	exitErr error

	pending bool
}

// Spawn creates (or truncates) the log file and starts `binary -c config` with
// both stdout and stderr captured there. The returned process is already being
// waited on in the background.
func Spawn(opts SpawnOptions) (*ManagedProcess, error) {
	if dir := filepath.Dir(opts.LogPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLogFile, err)
		}
	}
	// #nosec G304 log path is derived from a validated profile id
	logFile, err := os.OpenFile(opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogFile, err)
	}
	// The child keeps its own descriptor; ours is only needed until Start returns.
	defer func() { _ = logFile.Close() }()

	// #nosec G204 binary is operator configuration, not request input
	cmd := exec.Command(opts.Binary, "-c", opts.ConfigPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStart, err)
	}

	mp := &ManagedProcess{
		ProfileID:  opts.ProfileID,
		PID:        cmd.Process.Pid,
		LogPath:    opts.LogPath,
		ConfigPath: opts.ConfigPath,
		StartedAt:  time.Now(),
		cmd:        cmd,
		done:       make(chan struct{}),
	}
	go mp.wait()
	return mp, nil
}

func (p *ManagedProcess) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	close(p.done)
}

// Exited is the non-blocking liveness probe.
func (p *ManagedProcess) Exited() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Done is closed once the process has been reaped.
func (p *ManagedProcess) Done() <-chan struct{} { return p.done }

// Wait blocks until the process has exited and returns its wait error.
func (p *ManagedProcess) Wait() error {
	if p.done == nil {
		return nil
	}
	<-p.done
	return p.ExitErr()
}

// ExitErr returns the error reported by cmd.Wait, nil while running or on a
// clean exit.
func (p *ManagedProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Terminate hard-kills the process and its group. A process that already
// exited is not an error.
func (p *ManagedProcess) Terminate() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if p.Exited() {
		return nil
	}
	return terminate(p.cmd.Process)
}

// Uptime is the time since spawn.
func (p *ManagedProcess) Uptime() time.Duration {
	if p.StartedAt.IsZero() {
		return 0
	}
	return time.Since(p.StartedAt)
}
