//go:build !linux

package process

import (
	"errors"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

var errNoStartTime = errors.New("start time unavailable")

func startTime(pid int) (time.Time, error) {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return time.Time{}, err
	}
	ms, err := p.CreateTime()
	if err != nil {
		return time.Time{}, err
	}
	if ms <= 0 {
		return time.Time{}, errNoStartTime
	}
	return time.UnixMilli(ms), nil
}
