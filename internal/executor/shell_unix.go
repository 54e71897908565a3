//go:build !windows

package executor

const (
	shellPath = "/bin/sh"
	shellFlag = "-c"
)
