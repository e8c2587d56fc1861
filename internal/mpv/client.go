package mpv

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// ErrConnClosed is returned when mpv closes the socket.
var ErrConnClosed = errors.New("mpv: connection closed")

// SocketPath returns the default IPC socket path.
func SocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "vibeo-mpv.sock")
}

// line is a decoded NDJSON line that may be either a reply or an event.
type line struct {
	Event     string `json:"event"`
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Data      any    `json:"data"`
	Reason    string `json:"reason"`
	FileError string `json:"file_error"`
	Error     string `json:"error"`
	RequestID int    `json:"request_id"`
}

func (l line) response() Response {
	return Response{Error: l.Error, Data: l.Data, RequestID: l.RequestID}
}

func (l line) event() Event {
	return Event{Event: l.Event, ID: l.ID, Name: l.Name, Data: l.Data, Reason: l.Reason, FileError: l.FileError}
}

// Client communicates with mpv over a Unix socket.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
	nextID  int
}

// Connect dials the mpv IPC socket.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to mpv: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB buffer

	return &Client{conn: conn, scanner: scanner}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) scan() (line, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return line{}, fmt.Errorf("read: %w", err)
		}
		return line{}, ErrConnClosed
	}
	var l line
	if err := json.Unmarshal(c.scanner.Bytes(), &l); err != nil {
		return line{}, fmt.Errorf("unmarshal: %w", err)
	}
	return l, nil
}

// SendCommand sends args as one command and waits for the reply carrying its
// request id. Event lines that arrive in between are discarded; use a
// separate connection to consume events.
func (c *Client) SendCommand(args ...any) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	data, err := json.Marshal(Command{Command: args, RequestID: id})
	if err != nil {
		return Response{}, fmt.Errorf("marshal command: %w", err)
	}

	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("write command: %w", err)
	}

	for {
		l, err := c.scan()
		if err != nil {
			return Response{}, fmt.Errorf("read response: %w", err)
		}
		if l.Event != "" || l.RequestID != id {
			continue
		}
		return l.response(), nil
	}
}

// Do is SendCommand that turns a non-success reply into an error.
func (c *Client) Do(args ...any) error {
	resp, err := c.SendCommand(args...)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("mpv %v: %s", args[0], resp.Error)
	}
	return nil
}

// ReadEvent reads the next event line, skipping command replies. Blocks
// until data arrives.
func (c *Client) ReadEvent() (Event, error) {
	for {
		l, err := c.scan()
		if err != nil {
			return Event{}, fmt.Errorf("read event: %w", err)
		}
		if l.Event == "" {
			continue
		}
		return l.event(), nil
	}
}
