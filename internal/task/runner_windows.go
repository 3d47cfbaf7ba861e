//go:build windows

package task

import (
	"os/exec"
	"time"
)

// setProcessGroup on Windows is a no-op; there is no POSIX process group to
// create, and exec already isolates the child.
func setProcessGroup(_ *exec.Cmd) {}

// terminate kills the direct child. Grandchildren are not tracked on
// Windows; tasks that spawn long-lived subprocesses should handle their own
// shutdown.
func terminate(cmd *exec.Cmd, _ time.Duration, _ <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func exitCode(ee *exec.ExitError) int {
	if code := ee.ExitCode(); code >= 0 {
		return code
	}
	return 1
}
