//go:build windows

package player

import (
	"fmt"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func defaultSocketPath(id string) string {
	return fmt.Sprintf(`%sgoskip_mpvsocket_%s`, pipePrefix, id)
}
