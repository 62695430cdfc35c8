package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

// StdioTransport connects to a provider subprocess over newline-delimited
// JSON on its stdin and stdout. Responses are matched to callers by id, so
// concurrent Sends are allowed.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan reply
	closed  bool

	done    chan struct{}
	readErr error
	readWG  sync.WaitGroup
}

// StdioTransportOption configures a StdioTransport.
type StdioTransportOption func(*exec.Cmd)

// WithProviderStderr sets where the subprocess stderr goes.
// It defaults to the parent's stderr.
func WithProviderStderr(w io.Writer) StdioTransportOption {
	return func(cmd *exec.Cmd) {
		cmd.Stderr = w
	}
}

// WithProviderEnv appends environment variables, in KEY=value form, to the
// parent's environment.
func WithProviderEnv(env ...string) StdioTransportOption {
	return func(cmd *exec.Cmd) {
		cmd.Env = append(os.Environ(), env...)
	}
}

// NewStdioTransport starts command with args and connects to its stdio.
func NewStdioTransport(command string, args []string, opts ...StdioTransportOption) (*StdioTransport, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	for _, opt := range opts {
		opt(cmd)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	t := &StdioTransport{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		pending: make(map[string]chan reply),
		done:    make(chan struct{}),
	}

	t.readWG.Add(1)
	go t.readResponses()

	return t, nil
}

// Send writes req and waits for the response carrying the same id.
func (t *StdioTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	id, ok := req.ID.(string)
	if !ok {
		return nil, fmt.Errorf("request id must be string, got %T", req.ID)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respCh := make(chan reply, 1)
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	if _, dup := t.pending[id]; dup {
		t.mu.Unlock()
		return nil, fmt.Errorf("request id %q already in flight", id)
	}
	t.pending[id] = respCh
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	t.writeMu.Lock()
	_, err = t.stdin.Write(append(data, '\n'))
	t.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-respCh:
		return r.resp, r.err
	case <-t.done:
		// A response may have been routed just before the reader stopped.
		select {
		case r := <-respCh:
			return r.resp, r.err
		default:
		}
		if t.readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransportClosed, t.readErr)
		}
		return nil, ErrTransportClosed
	}
}

// Close closes stdin, waits for the reader and terminates the subprocess.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	_ = t.stdin.Close()
	t.readWG.Wait()

	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill() //nolint:errcheck // process may have already exited
	}

	err := t.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

type reply struct {
	resp *protocol.Response
	err  error
}

// readResponses routes each line to the caller waiting on its id,
// including lines that carry an id but fail to decode. Other lines are
// dropped.
func (t *StdioTransport) readResponses() {
	defer t.readWG.Done()
	defer close(t.done)

	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	for scanner.Scan() {
		resp, id, err := decodeResponse(scanner.Bytes())
		key, ok := responseKey(id)
		if !ok {
			continue
		}

		t.mu.Lock()
		if ch, ok := t.pending[key]; ok {
			select {
			case ch <- reply{resp: resp, err: err}:
			default:
			}
		}
		t.mu.Unlock()
	}
	t.readErr = scanner.Err()
}
