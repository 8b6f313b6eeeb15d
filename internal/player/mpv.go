// Package player adapts a running mpv instance into the skip engine's host:
// it reads position and title over mpv's JSON IPC, seeks, and shows OSD text.
package player

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

var (
	// ErrNotRunning is returned when the IPC socket cannot be reached
	ErrNotRunning = errors.New("mpv is not running")

	// ErrPropertyUnavailable is mpv's answer for properties that have no value yet,
	// e.g. time-pos while a file is still loading
	ErrPropertyUnavailable = errors.New("property unavailable")

	// ErrNoResponse is returned when mpv closes the connection without replying
	ErrNoResponse = errors.New("no response from mpv")

	// ErrUnexpectedType is returned when a property has a different JSON type than expected
	ErrUnexpectedType = errors.New("unexpected property type")
)

// DefaultIPCTimeout bounds one request/response exchange
const DefaultIPCTimeout = 2 * time.Second

type ipcResponse struct {
	Data      interface{} `json:"data"`
	Error     string      `json:"error"`
	Event     string      `json:"event"`
	RequestID int64       `json:"request_id"`
}

// MPV is a client for one mpv IPC server
type MPV struct {
	socketPath string
	timeout    time.Duration
	logger     *log.Logger
	requestID  int64
}

// NewMPV creates a client for the IPC server at socketPath
func NewMPV(socketPath string, logger *log.Logger) *MPV {
	if logger == nil {
		logger = log.Default()
	}
	return &MPV{
		socketPath: socketPath,
		timeout:    DefaultIPCTimeout,
		logger:     logger,
	}
}

// SocketPath returns the IPC socket this client talks to
func (m *MPV) SocketPath() string {
	return m.socketPath
}

// Command sends one command to mpv and returns the "data" field of its reply.
// Events interleaved on the connection are skipped.
func (m *MPV) Command(args ...interface{}) (interface{}, error) {
	conn, err := dialMPVSocket(m.socketPath, m.timeout)
	if err != nil {
		return nil, errors.Wrapf(ErrNotRunning, "dial %s: %v", m.socketPath, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			m.logger.Debug("error closing mpv socket", "error", err)
		}
	}()
	_ = conn.SetDeadline(time.Now().Add(m.timeout))

	id := atomic.AddInt64(&m.requestID, 1)
	payload, err := json.Marshal(map[string]interface{}{
		"command":    args,
		"request_id": id,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding mpv command")
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, errors.Wrap(err, "writing mpv command")
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp ipcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			m.logger.Debug("unreadable mpv reply", "line", string(line), "error", err)
			continue
		}
		if resp.Event != "" || (resp.RequestID != 0 && resp.RequestID != id) {
			continue
		}

		switch resp.Error {
		case "success":
			return resp.Data, nil
		case "property unavailable":
			return nil, ErrPropertyUnavailable
		default:
			return nil, errors.Errorf("mpv %v: %s", args[0], resp.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading mpv reply")
	}
	return nil, ErrNoResponse
}

// GetProperty reads one mpv property
func (m *MPV) GetProperty(name string) (interface{}, error) {
	return m.Command("get_property", name)
}

func (m *MPV) floatProperty(name string) (float64, error) {
	v, err := m.GetProperty(name)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errors.Wrapf(ErrUnexpectedType, "%s is %T", name, v)
	}
	return f, nil
}

// Position returns the playback position in seconds
func (m *MPV) Position() (float64, error) {
	return m.floatProperty("time-pos")
}

// Duration returns the length of the current file in seconds
func (m *MPV) Duration() (float64, error) {
	return m.floatProperty("duration")
}

// SeekTo jumps to an absolute position in seconds
func (m *MPV) SeekTo(seconds float64) error {
	_, err := m.Command("seek", seconds, "absolute")
	return err
}

// MediaTitle returns mpv's media-title, which falls back to the file name
func (m *MPV) MediaTitle() (string, error) {
	v, err := m.GetProperty("media-title")
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Wrapf(ErrUnexpectedType, "media-title is %T", v)
	}
	return s, nil
}

// Idle reports whether mpv has no file loaded
func (m *MPV) Idle() (bool, error) {
	v, err := m.GetProperty("idle-active")
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Wrapf(ErrUnexpectedType, "idle-active is %T", v)
	}
	return b, nil
}

// Show displays message on mpv's OSD
func (m *MPV) Show(message string, duration time.Duration) {
	if _, err := m.Command("show-text", message, duration.Milliseconds()); err != nil {
		m.logger.Debug("failed to show OSD message", "error", err)
	}
}
