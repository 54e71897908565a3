//go:build !windows

package process

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

func (p *processHandle) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	sysSig, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v for job %s", sig, p.name)
	}
	// Negative pid targets the child's process group.
	if err := syscall.Kill(-p.cmd.Process.Pid, sysSig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal process group %s: %w", p.name, err)
	}
	return nil
}

func (p *processHandle) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	// ESRCH means the child is already gone, which is the goal.
	if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process group %s: %w", p.name, err)
	}
	return nil
}
