//go:build !windows

package player

import (
	"net"
	"os"
	"time"
)

// dialMPVSocket connects to mpv's IPC server over a unix domain socket
func dialMPVSocket(socketPath string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath, timeout)
}

func socketExists(socketPath string) bool {
	_, err := os.Stat(socketPath)
	return err == nil
}
