package health

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loykin/frpdeck/internal/manager"
)

// DefaultSchedule is used when the configuration does not name one.
const DefaultSchedule = "@every 5s"

// Lister is the part of the supervisor the watcher polls.
type Lister interface {
	List() []manager.Status
}

// Watcher polls the supervisor on a cron schedule so processes that exit on
// their own are reaped and reported without waiting for a client request.
type Watcher struct {
	sup      Lister
	schedule string
	logger   *slog.Logger
	sched    *cron.Cron

	mu      sync.Mutex
	started bool

	checks atomic.Int64
	last   atomic.Pointer[Report]
}

// Report summarizes one check.
type Report struct {
	At      time.Time `json:"at"`
	Running int       `json:"running"`
	Exited  []string  `json:"exited,omitempty"`
}

// NewWatcher validates schedule (standard cron syntax or @every/@hourly style
// descriptors). An empty schedule returns a watcher whose Start is a no-op.
func NewWatcher(sup Lister, schedule string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{sup: sup, schedule: strings.TrimSpace(schedule), logger: logger.With("component", "health")}
	if w.schedule == "" {
		return w, nil
	}
	w.sched = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := w.sched.AddFunc(w.schedule, func() { w.Check() }); err != nil {
		return nil, fmt.Errorf("invalid health schedule %q: %w", w.schedule, err)
	}
	return w, nil
}

func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sched == nil || w.started {
		return
	}
	w.sched.Start()
	w.started = true
	w.logger.Info("health watcher started", "schedule", w.schedule)
}

// Stop halts scheduling and waits for a running check to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	<-w.sched.Stop().Done()
	w.started = false
}

// Check runs one poll immediately.
func (w *Watcher) Check() Report {
	rep := Report{At: time.Now()}
	for _, st := range w.sup.List() {
		switch {
		case st.Running:
			rep.Running++
		case strings.HasPrefix(st.Note, manager.NoteExited):
			rep.Exited = append(rep.Exited, st.ProfileID)
		}
	}
	w.checks.Add(1)
	w.last.Store(&rep)
	if len(rep.Exited) > 0 {
		w.logger.Warn("frpc exited unexpectedly", "profiles", rep.Exited)
	} else {
		w.logger.Debug("health check", "running", rep.Running)
	}
	return rep
}

// Checks reports how many polls have run.
func (w *Watcher) Checks() int64 { return w.checks.Load() }

// Last returns the most recent report, nil before the first check.
func (w *Watcher) Last() *Report { return w.last.Load() }
