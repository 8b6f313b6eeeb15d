//go:build windows

package player

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Microsoft/go-winio"
)

const pipePrefix = `\\.\pipe\`

// dialMPVSocket connects to mpv's IPC server. On Windows mpv listens on a
// named pipe, so bare names and paths are mapped into \\.\pipe\.
func dialMPVSocket(socketPath string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(pipeName(socketPath), &timeout)
}

func socketExists(socketPath string) bool {
	_, err := os.Stat(pipeName(socketPath))
	return err == nil
}

func pipeName(socketPath string) string {
	if strings.HasPrefix(socketPath, pipePrefix) {
		return socketPath
	}
	return pipePrefix + filepath.Base(socketPath)
}
