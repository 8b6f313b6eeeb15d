//go:build !windows

package player

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// setProcessGroup detaches mpv from our process group so a Ctrl+C in the
// terminal reaches goskip first
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func defaultSocketPath(id string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("goskip_mpvsocket_%s", id))
}
