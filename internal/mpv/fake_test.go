package mpv

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"testing"
)

// fakeMPV is a Unix socket server that speaks enough of mpv's IPC protocol
// for the client and driver tests. Every command gets a success reply
// unless its name is listed in fail.
type fakeMPV struct {
	t    *testing.T
	path string
	ln   net.Listener

	mu       sync.Mutex
	commands [][]any
	eventers []net.Conn
	fail     map[string]string
	before   []Event // written ahead of every reply
}

func startFakeMPV(t *testing.T) *fakeMPV {
	t.Helper()

	sockPath := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeMPV{t: t, path: sockPath, ln: ln, fail: map[string]string{}}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeMPV) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeMPV) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			return
		}
		name, _ := cmd.Command[0].(string)

		f.mu.Lock()
		f.commands = append(f.commands, cmd.Command)
		if name == "observe_property" {
			f.addEventer(conn)
		}
		reply := "success"
		if msg, ok := f.fail[name]; ok {
			reply = msg
		}
		before := f.before
		f.mu.Unlock()

		for _, ev := range before {
			writeLine(conn, ev)
		}
		writeLine(conn, Response{Error: reply, RequestID: cmd.RequestID})
	}
}

func (f *fakeMPV) addEventer(conn net.Conn) {
	for _, c := range f.eventers {
		if c == conn {
			return
		}
	}
	f.eventers = append(f.eventers, conn)
}

// push writes ev to every connection that observed a property.
func (f *fakeMPV) push(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.eventers {
		writeLine(c, ev)
	}
}

func (f *fakeMPV) sent() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.commands...)
}

func (f *fakeMPV) sentNamed(name string) [][]any {
	var out [][]any
	for _, c := range f.sent() {
		if c[0] == name {
			out = append(out, c)
		}
	}
	return out
}

func writeLine(conn net.Conn, v any) {
	data, _ := json.Marshal(v)
	conn.Write(append(data, '\n'))
}
