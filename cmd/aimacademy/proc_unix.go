//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// configureDaemonProcess puts aimacademyd in its own process group
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
