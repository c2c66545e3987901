//go:build linux

package process

import (
	"bufio"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tklauser/go-sysconf"
)

var errNoStartTime = errors.New("start time unavailable")

// startTime reads field 22 of /proc/<pid>/stat (clock ticks after boot) and
// adds it to the boot time from /proc/stat.
func startTime(pid int) (time.Time, error) {
	// #nosec G304 fixed procfs path
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return time.Time{}, err
	}
	line := string(b)
	// comm may contain spaces; fields resume after the last ") ".
	end := strings.LastIndex(line, ") ")
	if end < 0 {
		return time.Time{}, errNoStartTime
	}
	fields := strings.Fields(line[end+2:])
	if len(fields) < 20 {
		return time.Time{}, errNoStartTime
	}
	ticks, err := strconv.ParseInt(fields[19], 10, 64)
	if err != nil || ticks <= 0 {
		return time.Time{}, errNoStartTime
	}
	boot, err := bootTime()
	if err != nil {
		return time.Time{}, err
	}
	hz, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || hz <= 0 {
		hz = 100
	}
	return time.Unix(boot, 0).Add(ticksToDuration(ticks, hz)), nil
}

// ticksToDuration converts clock ticks without overflowing on long uptimes.
func ticksToDuration(ticks, hz int64) time.Duration {
	return time.Duration(ticks/hz)*time.Second + time.Duration(ticks%hz)*time.Second/time.Duration(hz)
}

func bootTime() (int64, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		v, ok := strings.CutPrefix(sc.Text(), "btime ")
		if !ok {
			continue
		}
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	return 0, errNoStartTime
}
