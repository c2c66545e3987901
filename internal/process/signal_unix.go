//go:build !windows

package process

import (
	"errors"
	"os"
	"syscall"
)

// terminate sends SIGKILL to the process group led by p.
func terminate(p *os.Process) error {
	err := syscall.Kill(-p.Pid, syscall.SIGKILL)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	// Group signalling can be refused (EPERM) if the child changed its group.
	if kerr := p.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
		return kerr
	}
	return nil
}
