package process

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require /bin/sh")
	}
}

// writeScript creates an executable stand-in for frpc.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frpc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func spawnOpts(t *testing.T, bin string) SpawnOptions {
	dir := t.TempDir()
	return SpawnOptions{
		ProfileID:  "p1",
		Binary:     bin,
		ConfigPath: filepath.Join(dir, "p1.ini"),
		LogPath:    filepath.Join(dir, "logs", "p1.out"),
	}
}

func TestSpawnCapturesOutputAndArgs(t *testing.T) {
	requireUnix(t)
	bin := writeScript(t, `echo "args: $1 $2"; echo oops 1>&2`)
	opts := spawnOpts(t, bin)

	mp, err := Spawn(opts)
	require.NoError(t, err)
	assert.Greater(t, mp.PID, 0)
	assert.Equal(t, "p1", mp.ProfileID)
	assert.False(t, mp.StartedAt.IsZero())

	require.NoError(t, mp.Wait())
	assert.True(t, mp.Exited())

	b, err := os.ReadFile(opts.LogPath)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "args: -c "+opts.ConfigPath)
	assert.Contains(t, out, "oops")
}

func TestSpawnTruncatesPreviousLog(t *testing.T) {
	requireUnix(t)
	bin := writeScript(t, `echo fresh`)
	opts := spawnOpts(t, bin)
	require.NoError(t, os.MkdirAll(filepath.Dir(opts.LogPath), 0o750))
	require.NoError(t, os.WriteFile(opts.LogPath, []byte("stale output\n"), 0o640))

	mp, err := Spawn(opts)
	require.NoError(t, err)
	require.NoError(t, mp.Wait())

	b, err := os.ReadFile(opts.LogPath)
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", string(b))
}

func TestSpawnMissingBinary(t *testing.T) {
	opts := spawnOpts(t, filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := Spawn(opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStart)
}

func TestSpawnLogFileFailure(t *testing.T) {
	requireUnix(t)
	bin := writeScript(t, `exit 0`)
	opts := spawnOpts(t, bin)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	opts.LogPath = filepath.Join(blocker, "sub", "p1.out")

	_, err := Spawn(opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLogFile)
}

func TestExitedIsNonBlockingWhileRunning(t *testing.T) {
	requireUnix(t)
	bin := writeScript(t, `exec sleep 5`)
	mp, err := Spawn(spawnOpts(t, bin))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Terminate(); _ = mp.Wait() })

	start := time.Now()
	assert.False(t, mp.Exited())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Greater(t, mp.Uptime(), time.Duration(0))
}

func TestTerminateKillsGroup(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	childPID := filepath.Join(dir, "child.pid")
	// The script forks a grandchild; the group kill must take it down too.
	bin := writeScript(t, "sleep 30 &\necho $! > "+childPID+"\nwait")
	mp, err := Spawn(spawnOpts(t, bin))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		b, err := os.ReadFile(childPID)
		return err == nil && strings.TrimSpace(string(b)) != ""
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, mp.Terminate())
	_ = mp.Wait()
	assert.True(t, mp.Exited())
	assert.Error(t, mp.ExitErr())

	if runtime.GOOS != "linux" {
		return
	}
	b, err := os.ReadFile(childPID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return gone(strings.TrimSpace(string(b)))
	}, 2*time.Second, 20*time.Millisecond)
}

// gone reports whether pid is absent or a zombie awaiting its new parent.
func gone(pid string) bool {
	b, err := os.ReadFile("/proc/" + pid + "/stat")
	if err != nil {
		return true
	}
	line := string(b)
	end := strings.LastIndex(line, ") ")
	return end >= 0 && strings.HasPrefix(line[end+2:], "Z")
}

func TestTerminateAfterExitIsNoop(t *testing.T) {
	requireUnix(t)
	bin := writeScript(t, `exit 3`)
	mp, err := Spawn(spawnOpts(t, bin))
	require.NoError(t, err)
	_ = mp.Wait()
	assert.NoError(t, mp.Terminate())
	assert.Error(t, mp.ExitErr())
}

func TestReadStats(t *testing.T) {
	requireUnix(t)
	bin := writeScript(t, `exec sleep 5`)
	mp, err := Spawn(spawnOpts(t, bin))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Terminate(); _ = mp.Wait() })

	st, err := ReadStats(mp.PID)
	require.NoError(t, err)
	assert.Greater(t, st.RSSBytes, uint64(0))
	if !st.StartedAt.IsZero() {
		assert.WithinDuration(t, mp.StartedAt, st.StartedAt, 5*time.Second)
	}

	_, err = ReadStats(0)
	assert.Error(t, err)
}
