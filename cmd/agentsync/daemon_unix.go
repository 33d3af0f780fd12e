//go:build unix || linux || darwin

package main

import (
	"os"
	"os/exec"
	"syscall"
)

var daemonSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}

// configureDaemonProcess detaches the child from the controlling terminal
// so it survives the parent's session ending.
func configureDaemonProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func sendStopSignal(process *os.Process) error {
	return process.Signal(syscall.SIGTERM)
}

// isProcessRunning checks whether a process with the given PID exists.
// EPERM means the process exists but we lack permission to signal it,
// which still counts as running.
func isProcessRunning(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
