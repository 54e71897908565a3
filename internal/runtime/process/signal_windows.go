//go:build windows

package process

import (
	"os"
)

func (p *processHandle) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	// Windows has no process-group signalling; best effort only.
	if err := p.cmd.Process.Signal(sig); err != nil && !isProcessDone(err) {
		return err
	}
	return nil
}

func (p *processHandle) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !isProcessDone(err) {
		return err
	}
	return nil
}

func isProcessDone(err error) bool {
	return err == os.ErrProcessDone
}
