package group

import (
	"errors"
	"fmt"

	"github.com/loykin/frpdeck/internal/manager"
	"github.com/loykin/frpdeck/internal/profile"
)

// Supervisor is the subset of manager.Supervisor a Group drives.
type Supervisor interface {
	StartProfile(p profile.Profile) (int, error)
	Stop(id string) error
	Status(id string) manager.Status
}

// Group starts and stops a set of profiles together.
type Group struct {
	sup Supervisor
}

func New(sup Supervisor) *Group { return &Group{sup: sup} }

// Start starts every member in order and returns their pids. A member that is
// already running is kept and reported with its current pid. If a start
// fails, the members started by this call are stopped again in reverse order.
func (g *Group) Start(members []profile.Profile) (map[string]int, error) {
	pids := make(map[string]int, len(members))
	started := make([]string, 0, len(members))
	for _, p := range members {
		pid, err := g.sup.StartProfile(p)
		if errors.Is(err, manager.ErrAlreadyRunning) {
			pids[p.ID] = g.sup.Status(p.ID).PID
			continue
		}
		if err != nil {
			for i := len(started) - 1; i >= 0; i-- {
				_ = g.sup.Stop(started[i])
			}
			return nil, fmt.Errorf("group start failed on %s: %w", p.ID, err)
		}
		pids[p.ID] = pid
		started = append(started, p.ID)
	}
	return pids, nil
}

// Stop stops every id, best effort. Ids that are not running are skipped.
func (g *Group) Stop(ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := g.sup.Stop(id); err != nil && !errors.Is(err, manager.ErrNotRunning) {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Status returns the status of every id in order.
func (g *Group) Status(ids []string) []manager.Status {
	out := make([]manager.Status, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.sup.Status(id))
	}
	return out
}

// Resolve picks the profiles named by ids from set, preserving the order of ids.
func Resolve(set profile.Set, ids []string) ([]profile.Profile, error) {
	out := make([]profile.Profile, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := set.Find(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, p)
	}
	if len(missing) > 0 {
		return out, fmt.Errorf("unknown profiles: %v", missing)
	}
	return out, nil
}
