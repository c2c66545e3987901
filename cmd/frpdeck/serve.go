package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/loykin/frpdeck"
)

// daemonChildEnv marks the re-executed background copy of the daemon.
const daemonChildEnv = "FRPDECK_DAEMON_CHILD"

func runServe(ctx context.Context, f ServeFlags) error {
	if f.Daemonize && os.Getenv(daemonChildEnv) == "" {
		return daemonize(f)
	}
	cfg, err := frpdeck.LoadConfig(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	d, err := frpdeck.NewDaemon(cfg)
	if err != nil {
		return err
	}
	if err := d.Listen(); err != nil {
		return errors.Join(err, d.Close())
	}
	if f.PidFile != "" {
		if err := writePidFile(f.PidFile, os.Getpid()); err != nil {
			d.Logger().Warn("write pid file", "path", f.PidFile, "error", err)
		}
		defer func() { _ = removePidFile(f.PidFile) }()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

// daemonize re-executes the current binary detached from the terminal with
// the same arguments minus --daemonize, then returns in the parent.
func daemonize(f ServeFlags) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	// #nosec G204 re-exec of our own binary
	cmd := exec.Command(exe, childArgs(os.Args[1:])...)
	cmd.Env = append(os.Environ(), daemonChildEnv+"=1")
	configureDaemonAttrs(cmd)
	if f.LogFile != "" {
		// #nosec G304 operator supplied path
		lf, err := os.OpenFile(f.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer func() { _ = lf.Close() }()
		cmd.Stdout = lf
		cmd.Stderr = lf
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	fmt.Printf("frpdeck daemon started with PID %d\n", cmd.Process.Pid)
	return cmd.Process.Release()
}

func childArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--daemonize" || a == "--daemonize=true" {
			continue
		}
		out = append(out, a)
	}
	return out
}

func writePidFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644) // #nosec G306 pid files are world readable
}

func removePidFile(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
