//go:build windows

package source

import "os/exec"

// killProcessGroupOnCancel is a no-op on Windows. Only the direct child is
// killed, and WaitDelay bounds how long its children can hold the output
// open.
func killProcessGroupOnCancel(*exec.Cmd) {}
