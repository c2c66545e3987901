//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts frpc into its own process group so termination
// reaches anything it forks.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
