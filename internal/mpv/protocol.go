// Package mpv drives an external mpv player over its JSON IPC socket. The
// wire format is NDJSON: one command object per line from the client, and
// replies and asynchronous events interleaved on the same stream.
package mpv

// Command is sent from a client to mpv.
type Command struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id,omitempty"`
}

// Response is mpv's reply to a Command with the same request id.
type Response struct {
	Error     string `json:"error"`
	Data      any    `json:"data,omitempty"`
	RequestID int    `json:"request_id"`
}

// OK reports whether mpv accepted the command.
func (r Response) OK() bool { return r.Error == "success" }

// Event is pushed by mpv to every connected client.
type Event struct {
	Event     string `json:"event"`
	ID        int    `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Data      any    `json:"data,omitempty"`
	Reason    string `json:"reason,omitempty"`
	FileError string `json:"file_error,omitempty"`
}

// Float returns Data as a number. ok is false when mpv sent null or a
// non-numeric value.
func (e Event) Float() (float64, bool) {
	f, ok := e.Data.(float64)
	return f, ok
}

// Bool returns Data as a flag.
func (e Event) Bool() (bool, bool) {
	b, ok := e.Data.(bool)
	return b, ok
}

// Observed property ids used by the driver.
const (
	propTimePos = iota + 1
	propDuration
	propPause
)
