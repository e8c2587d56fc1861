package mpv

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"
)

// Process is an mpv instance started by Launch.
type Process struct {
	Socket string
	cmd    *exec.Cmd
	done   chan struct{}
	err    error
}

// Launch starts binary in idle mode with its IPC server on socket and waits
// until the socket accepts connections.
func Launch(ctx context.Context, binary, socket string, args []string) (*Process, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("find mpv: %w", err)
	}
	os.Remove(socket)

	argv := append([]string{
		"--idle=yes",
		"--force-window=yes",
		"--keep-open=yes",
		"--input-ipc-server=" + socket,
	}, args...)
	cmd := exec.CommandContext(ctx, path, argv...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}

	p := &Process{Socket: socket, cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			conn.Close()
			return p, nil
		}
		select {
		case <-p.done:
			return nil, fmt.Errorf("mpv exited before opening %s: %v", socket, p.err)
		case <-time.After(50 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			p.Stop()
			return nil, fmt.Errorf("mpv socket %s not ready", socket)
		}
	}
}

// Done is closed when the mpv process exits.
func (p *Process) Done() <-chan struct{} { return p.done }

// Stop asks mpv to quit and kills it if it does not exit promptly.
func (p *Process) Stop() error {
	if c, err := Connect(p.Socket); err == nil {
		c.SendCommand("quit")
		c.Close()
	}
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		p.cmd.Process.Kill()
		<-p.done
	}
	os.Remove(p.Socket)
	return nil
}
