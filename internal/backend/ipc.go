package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Profile selects which embed protocol an [IPCConn] emulates over the
// external player. The remote site players disagree on position units, so
// the conn reports values in each protocol's native unit and the adapter
// owns the conversion back to seconds.
type Profile int

const (
	// ProfileMilliseconds reports position/duration in milliseconds
	// (YouTube and SoundCloud widget protocols).
	ProfileMilliseconds Profile = iota
	// ProfilePercent reports progress as a 0-100 percentage plus a
	// seconds duration (Vimeo embed protocol).
	ProfilePercent
)

// Session lazily launches the external player process exactly once per
// process and hands out connections to its control socket.
//
// Concurrent callers before the player is up wait on the same launch
// rather than spawning duplicates.
type Session struct {
	Binary string
	Socket string
	Logger *log.Logger

	once sync.Once
	cmd  *exec.Cmd
	err  error
}

// Start launches the external player if it is not already running.
func (s *Session) Start() error {
	s.once.Do(func() {
		binary := s.Binary
		if binary == "" {
			binary = "mpv"
		}
		path, err := exec.LookPath(binary)
		if err != nil {
			s.err = fmt.Errorf("external player not found: %w", err)
			return
		}

		if s.Socket == "" {
			s.Socket = filepath.Join(os.TempDir(), fmt.Sprintf("subwave-ipc-%d", os.Getpid()))
		}

		cmd := exec.Command(path,
			"--idle=yes",
			"--no-video",
			"--no-terminal",
			"--input-ipc-server="+s.Socket,
		)
		if err := cmd.Start(); err != nil {
			s.err = fmt.Errorf("failed to start external player: %w", err)
			return
		}
		s.cmd = cmd
		go cmd.Wait()

		// The socket appears shortly after launch; bounded wait.
		for i := 0; i < 50; i++ {
			if _, err := os.Stat(s.Socket); err == nil {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
		s.err = fmt.Errorf("external player socket never appeared at %s", s.Socket)
	})
	return s.err
}

// Dial connects to the session's control socket with the given profile.
func (s *Session) Dial(profile Profile) (Conn, error) {
	if err := s.Start(); err != nil {
		return nil, err
	}
	return dialIPC(s.Socket, profile, s.Logger)
}

// Shutdown kills the external player process if it was launched.
func (s *Session) Shutdown() {
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}

// IPCConn speaks the external player's JSON line protocol over a unix
// socket and translates its native events into the selected [Profile].
type IPCConn struct {
	mu      sync.Mutex
	conn    net.Conn
	enc     *json.Encoder
	profile Profile
	logger  *log.Logger

	nextID   int
	pending  map[int]chan ipcResponse
	messages chan Message

	duration float64 // seconds, for percent conversion
	closed   bool
}

type ipcResponse struct {
	Err  string
	Data json.RawMessage
}

type ipcPayload struct {
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	Reason    string          `json:"reason"`
	Error     string          `json:"error"`
	RequestID int             `json:"request_id"`
}

func dialIPC(socket string, profile Profile, logger *log.Logger) (*IPCConn, error) {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("failed to dial player socket: %w", err)
	}

	c := &IPCConn{
		conn:     conn,
		enc:      json.NewEncoder(conn),
		profile:  profile,
		logger:   logger,
		pending:  map[int]chan ipcResponse{},
		messages: make(chan Message, 64),
	}

	go c.readLoop()

	for _, prop := range []string{"time-pos", "duration", "pause", "percent-pos"} {
		if err := c.send(nil, "observe_property", 1, prop); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return c, nil
}

func (c *IPCConn) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		var payload ipcPayload
		if err := json.Unmarshal(scanner.Bytes(), &payload); err != nil {
			continue
		}

		if payload.Event == "" && payload.RequestID != 0 {
			c.mu.Lock()
			waiter := c.pending[payload.RequestID]
			delete(c.pending, payload.RequestID)
			c.mu.Unlock()
			if waiter != nil {
				waiter <- ipcResponse{Err: payload.Error, Data: payload.Data}
			}
			continue
		}

		if msg, ok := c.translate(payload); ok {
			select {
			case c.messages <- msg:
			default:
			}
		}
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	close(c.messages)
}

// translate maps native player events into the profile's wire shape.
func (c *IPCConn) translate(payload ipcPayload) (Message, bool) {
	switch payload.Event {
	case "file-loaded":
		return Message{Event: "ready"}, true
	case "end-file":
		if payload.Reason == "eof" {
			return Message{Event: "ended"}, true
		}
		return Message{}, false
	case "property-change":
		var value float64
		var flag bool
		switch payload.Name {
		case "pause":
			if json.Unmarshal(payload.Data, &flag) != nil {
				return Message{}, false
			}
			return Message{Event: "state", Flag: !flag}, true
		case "time-pos":
			if c.profile != ProfileMilliseconds {
				return Message{}, false
			}
			if json.Unmarshal(payload.Data, &value) != nil {
				return Message{}, false
			}
			return Message{Event: "property", Name: "position", Value: value * 1000}, true
		case "percent-pos":
			if c.profile != ProfilePercent {
				return Message{}, false
			}
			if json.Unmarshal(payload.Data, &value) != nil {
				return Message{}, false
			}
			return Message{Event: "property", Name: "percent", Value: value}, true
		case "duration":
			if json.Unmarshal(payload.Data, &value) != nil {
				return Message{}, false
			}
			c.mu.Lock()
			c.duration = value
			c.mu.Unlock()
			if c.profile == ProfileMilliseconds {
				value *= 1000
			}
			return Message{Event: "property", Name: "duration", Value: value}, true
		}
	}
	return Message{}, false
}

func (c *IPCConn) send(waiter chan ipcResponse, command ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}

	c.nextID++
	id := c.nextID
	if waiter != nil {
		c.pending[id] = waiter
	}

	return c.enc.Encode(map[string]any{"command": command, "request_id": id})
}

// Command translates protocol commands into native player commands.
func (c *IPCConn) Command(ctx context.Context, name string, args ...any) error {
	switch name {
	case "load":
		if len(args) != 1 {
			return fmt.Errorf("load expects a url")
		}
		return c.send(nil, "loadfile", args[0], "replace")
	case "play":
		return c.send(nil, "set_property", "pause", false)
	case "pause":
		return c.send(nil, "set_property", "pause", true)
	case "seek":
		if len(args) != 1 {
			return fmt.Errorf("seek expects seconds")
		}
		return c.send(nil, "seek", args[0], "absolute")
	case "volume":
		if len(args) != 1 {
			return fmt.Errorf("volume expects a level")
		}
		return c.send(nil, "set_property", "volume", args[0])
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func (c *IPCConn) get(ctx context.Context, prop string) (json.RawMessage, error) {
	waiter := make(chan ipcResponse, 1)
	if err := c.send(waiter, "get_property", prop); err != nil {
		return nil, err
	}

	select {
	case resp := <-waiter:
		if resp.Err != "" && resp.Err != "success" {
			return nil, fmt.Errorf("property %q: %s", prop, resp.Err)
		}
		return resp.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetFloat queries a numeric property in the profile's unit.
func (c *IPCConn) GetFloat(ctx context.Context, name string) (float64, error) {
	prop := name
	scale := 1.0
	if name == "position" {
		prop = "time-pos"
		if c.profile == ProfileMilliseconds {
			scale = 1000
		}
	}

	data, err := c.get(ctx, prop)
	if err != nil {
		return 0, err
	}

	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return 0, fmt.Errorf("property %q: %w", name, err)
	}
	return value * scale, nil
}

// GetBool queries a boolean property. "paused" maps to the native pause flag.
func (c *IPCConn) GetBool(ctx context.Context, name string) (bool, error) {
	prop := name
	if name == "paused" {
		prop = "pause"
	}

	data, err := c.get(ctx, prop)
	if err != nil {
		return false, err
	}

	var value bool
	if err := json.Unmarshal(data, &value); err != nil {
		return false, fmt.Errorf("property %q: %w", name, err)
	}
	return value, nil
}

// Messages returns the push channel.
func (c *IPCConn) Messages() <-chan Message {
	return c.messages
}

// Close shuts the socket down; the read loop closes the message channel.
func (c *IPCConn) Close() error {
	return c.conn.Close()
}

var _ Conn = (*IPCConn)(nil)
