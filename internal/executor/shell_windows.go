//go:build windows

package executor

const (
	shellPath = "cmd"
	shellFlag = "/C"
)
