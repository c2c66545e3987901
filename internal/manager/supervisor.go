package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/loykin/frpdeck/internal/env"
	"github.com/loykin/frpdeck/internal/history"
	"github.com/loykin/frpdeck/internal/metrics"
	"github.com/loykin/frpdeck/internal/process"
	"github.com/loykin/frpdeck/internal/profile"
	"github.com/loykin/frpdeck/internal/render"
)

const (
	// NoteStarting marks an id whose start is still in flight.
	NoteStarting = "starting"
	// NoteExited marks a status that reaped a process which exited on its own.
	NoteExited = "process exited on its own"
)

// Options configures a Supervisor.
type Options struct {
	// Binary is the frpc executable.
	Binary string
	// WorkDir holds rendered configs and logs. Empty means the directory of Binary.
	WorkDir string
	// Env is exported to every spawned frpc in addition to the daemon's environment.
	Env *env.Env
	// Stats enables resource sampling in Status.
	Stats    bool
	Logger   *slog.Logger
	Recorder *history.Recorder
}

// Supervisor owns one frpc process per profile id. Every instance has its own
// table; nothing is shared between supervisors.
type Supervisor struct {
	table *process.Table

	mu     sync.RWMutex
	binary string

	workDir  string
	env      *env.Env
	stats    bool
	logger   *slog.Logger
	recorder *history.Recorder
}

// Status is the supervisor's view of one profile.
type Status struct {
	ProfileID string         `json:"profile_id"`
	Running   bool           `json:"running"`
	PID       int            `json:"pid,omitempty"`
	StartedAt time.Time      `json:"started_at,omitempty"`
	LogPath   string         `json:"log_path,omitempty"`
	Note      string         `json:"note,omitempty"`
	Stats     *process.Stats `json:"stats,omitempty"`
}

func NewSupervisor(opts Options) *Supervisor {
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	return &Supervisor{
		table:    process.NewTable(),
		binary:   opts.Binary,
		workDir:  opts.WorkDir,
		env:      opts.Env,
		stats:    opts.Stats,
		logger:   lg.With("component", "supervisor"),
		recorder: opts.Recorder,
	}
}

// SetBinary changes the executable used by subsequent starts.
func (s *Supervisor) SetBinary(path string) {
	s.mu.Lock()
	s.binary = path
	s.mu.Unlock()
}

func (s *Supervisor) Binary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.binary
}

// WorkDir returns the directory holding rendered configs and logs.
func (s *Supervisor) WorkDir() string {
	if s.workDir != "" {
		return s.workDir
	}
	return filepath.Dir(s.Binary())
}

// LogPath is the capture file for id: <workdir>/<id>.out.
func (s *Supervisor) LogPath(id string) string {
	return filepath.Join(s.WorkDir(), id+".out")
}

// ConfigPath is where StartProfile renders id: <workdir>/<id>.ini.
func (s *Supervisor) ConfigPath(id string) string {
	return render.Path(s.WorkDir(), id)
}

// Start launches frpc for id using an already rendered config and returns its pid.
func (s *Supervisor) Start(id, configPath string) (int, error) {
	if !profile.ValidID(id) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := os.Stat(configPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !s.table.Reserve(id) {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}
	return s.launch(id, configPath)
}

// launch spawns frpc for an id the caller has already reserved.
func (s *Supervisor) launch(id, configPath string) (int, error) {
	var envList []string
	if s.env != nil {
		envList = s.env.List()
	}
	mp, err := process.Spawn(process.SpawnOptions{
		ProfileID:  id,
		Binary:     s.Binary(),
		ConfigPath: configPath,
		LogPath:    s.LogPath(id),
		WorkDir:    s.WorkDir(),
		Env:        envList,
	})
	if err != nil {
		s.table.Release(id)
		if errors.Is(err, process.ErrLogFile) {
			return 0, fmt.Errorf("%w: %w", ErrIO, err)
		}
		metrics.IncSpawnFailure(id)
		s.record(history.Event{Type: history.EventSpawnFailed, ProfileID: id, LogPath: s.LogPath(id), Detail: err.Error()})
		s.logger.Error("frpc spawn failed", "profile", id, "binary", s.Binary(), "error", err)
		return 0, fmt.Errorf("%w: %w", ErrSpawnFailed, err)
	}
	s.table.Commit(mp)

	metrics.IncStart(id)
	s.record(history.Event{Type: history.EventStart, ProfileID: id, PID: mp.PID, LogPath: mp.LogPath})
	s.logger.Info("frpc started", "profile", id, "pid", mp.PID, "config", configPath)
	return mp.PID, nil
}

// StartProfile claims p.ID, renders p into the work dir and starts it.
// A caller that loses the claim never touches the config of the running frpc.
func (s *Supervisor) StartProfile(p profile.Profile) (int, error) {
	if !profile.ValidID(p.ID) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, p.ID)
	}
	if !s.table.Reserve(p.ID) {
		return 0, fmt.Errorf("%w: %s", ErrAlreadyRunning, p.ID)
	}
	path, err := render.WriteFile(s.WorkDir(), p)
	if err != nil {
		s.table.Release(p.ID)
		return 0, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return s.launch(p.ID, path)
}

// Stop removes the entry, kills the process and waits for it to exit.
// The log file is kept.
func (s *Supervisor) Stop(id string) error {
	mp, ok := s.table.Remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	if err := mp.Terminate(); err != nil {
		// The entry is already gone; still reclaim the child once it dies.
		go func() { _ = mp.Wait() }()
		s.logger.Error("frpc kill failed", "profile", id, "pid", mp.PID, "error", err)
		return fmt.Errorf("%w: %w", ErrTerminationFailed, err)
	}
	exitErr := mp.Wait()

	metrics.IncStop(id)
	ev := history.Event{Type: history.EventStop, ProfileID: id, PID: mp.PID, LogPath: mp.LogPath}
	if exitErr != nil {
		ev.Detail = exitErr.Error()
	}
	s.record(ev)
	s.logger.Info("frpc stopped", "profile", id, "pid", mp.PID, "uptime", mp.Uptime().Round(time.Millisecond))
	return nil
}

// Status reports whether id is running. An exited process is reaped here and
// reported as not running with NoteExited. Status never blocks on the child.
func (s *Supervisor) Status(id string) Status {
	if mp, ok := s.table.Reap(id); ok {
		return s.reaped(mp)
	}
	if mp, ok := s.table.Get(id); ok {
		st := Status{ProfileID: id, Running: true, PID: mp.PID, StartedAt: mp.StartedAt, LogPath: mp.LogPath}
		if s.stats {
			if rs, err := process.ReadStats(mp.PID); err == nil {
				st.Stats = &rs
				metrics.SetResources(id, rs.RSSBytes, rs.CPUPercent)
			}
		}
		return st
	}
	if s.table.Pending(id) {
		return Status{ProfileID: id, Note: NoteStarting}
	}
	return Status{ProfileID: id}
}

func (s *Supervisor) reaped(mp *process.ManagedProcess) Status {
	note := NoteExited
	ev := history.Event{Type: history.EventExit, ProfileID: mp.ProfileID, PID: mp.PID, LogPath: mp.LogPath}
	if err := mp.ExitErr(); err != nil {
		note += ": " + err.Error()
		ev.Detail = err.Error()
	}
	metrics.IncExit(mp.ProfileID)
	s.record(ev)
	s.logger.Warn("frpc exited", "profile", mp.ProfileID, "pid", mp.PID, "note", note)
	return Status{ProfileID: mp.ProfileID, LogPath: mp.LogPath, Note: note}
}

// List returns the status of every tracked id, reaping as Status does.
func (s *Supervisor) List() []Status {
	ids := s.table.IDs()
	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Status(id))
	}
	return out
}

// Running returns how many ids currently hold an entry, reservations included.
func (s *Supervisor) Running() int { return s.table.Len() }

// ReadLog returns the whole capture file for id, or "" if it does not exist yet.
func (s *Supervisor) ReadLog(id string) (string, error) {
	if !profile.ValidID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	b, err := os.ReadFile(s.LogPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	return string(b), nil
}

// Shutdown stops every tracked process. It returns early with ctx's error if
// the context ends first; remaining processes keep running in that case.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range s.table.IDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Stop(id); err != nil && !errors.Is(err, ErrNotRunning) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Supervisor) record(e history.Event) {
	s.recorder.Record(context.Background(), e)
}
