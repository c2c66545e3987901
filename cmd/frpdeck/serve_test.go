//go:build !windows

package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestRunServeWritesAndRemovesPidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "frpdeck.toml")
	cfg := "frpc_path = \"" + filepath.Join(dir, "frpc") + "\"\n[server]\nlisten = \"127.0.0.1:0\"\n[health]\nschedule = \"\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	pidFile := filepath.Join(dir, "frpdeck.pid")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, ServeFlags{ConfigPath: cfgPath, PidFile: pidFile}) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		b, err := os.ReadFile(pidFile)
		if err == nil && strings.TrimSpace(string(b)) == strconv.Itoa(os.Getpid()) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pid file not written: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, stat err=%v", err)
	}
}

func TestRunServeBadConfig(t *testing.T) {
	if err := runServe(context.Background(), ServeFlags{ConfigPath: filepath.Join(t.TempDir(), "none.toml")}); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestRunServeListenConflict(t *testing.T) {
	dir := t.TempDir()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ln.Close() }()

	cfgPath := filepath.Join(dir, "frpdeck.toml")
	cfg := "[server]\nlisten = \"" + ln.Addr().String() + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := runServe(context.Background(), ServeFlags{ConfigPath: cfgPath}); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestPidFileHelpers(t *testing.T) {
	p := filepath.Join(t.TempDir(), "d.pid")
	if err := writePidFile(p, 4242); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "4242\n" {
		t.Fatalf("unexpected pid file %q", b)
	}
	if err := removePidFile(p); err != nil {
		t.Fatal(err)
	}
	if err := removePidFile(p); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if err := removePidFile(""); err != nil {
		t.Fatal(err)
	}
}

func TestChildArgsDropDaemonize(t *testing.T) {
	got := childArgs([]string{"serve", "--daemonize", "--config", "a.toml", "--daemonize=true", "--pidfile", "p"})
	want := []string{"serve", "--config", "a.toml", "--pidfile", "p"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("childArgs = %v, want %v", got, want)
	}
}

func TestRootHelp(t *testing.T) {
	var out bytes.Buffer
	root := buildRoot(&out)
	root.SetArgs([]string{"--help"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, sub := range []string{"serve", "start", "stop", "status", "logs", "render", "profiles", "export", "import"} {
		if !strings.Contains(out.String(), sub) {
			t.Fatalf("help misses %q: %s", sub, out.String())
		}
	}

	root = buildRoot(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"export"})
	if err := root.Execute(); err == nil {
		t.Fatal("export without --file should fail")
	}
}

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	root := buildRoot(&out)
	root.SetArgs([]string{"hash-password", "hunter2"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "$2") {
		t.Fatalf("expected bcrypt hash, got %q", out.String())
	}
}
