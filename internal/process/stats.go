package process

import (
	"fmt"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Stats is a point-in-time resource snapshot of a running frpc.
type Stats struct {
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	StartedAt  time.Time `json:"os_started_at,omitempty"`
}

// ReadStats samples memory and CPU usage for pid. CPU percent is averaged over
// the process lifetime, so the call never sleeps.
func ReadStats(pid int) (Stats, error) {
	if pid <= 0 {
		return Stats{}, fmt.Errorf("invalid pid %d", pid)
	}
	p, err := gopsproc.NewProcess(int32(pid)) // #nosec G115 pids fit in int32
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	if mi, err := p.MemoryInfo(); err == nil && mi != nil {
		st.RSSBytes = mi.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if ts, err := startTime(pid); err == nil {
		st.StartedAt = ts
	}
	return st, nil
}
