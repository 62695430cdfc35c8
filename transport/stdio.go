package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/felixgeelhaar/hephaestus/middleware"
	"github.com/felixgeelhaar/hephaestus/protocol"
)

// Stdio serves newline-delimited JSON over stdin/stdout. Requests are
// handled strictly in order and every non-blank line gets exactly one
// response line.
type Stdio struct {
	in              io.Reader
	out             io.Writer
	logger          middleware.Logger
	maxMessageBytes int

	mu sync.Mutex
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithStdioLogger sets the logger for transport faults.
func WithStdioLogger(l Logger) StdioOption {
	return func(s *Stdio) {
		s.logger = nopIfNil(l)
	}
}

// WithStdioMaxMessageBytes sets the longest accepted line, excluding the
// newline. Longer lines are discarded and answered with an invalid request.
func WithStdioMaxMessageBytes(n int) StdioOption {
	return func(s *Stdio) {
		if n > 0 {
			s.maxMessageBytes = n
		}
	}
}

// NewStdio creates a new stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:              os.Stdin,
		out:             os.Stdout,
		logger:          middleware.NopLogger{},
		maxMessageBytes: DefaultMaxMessageBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

type stdioLine struct {
	data    []byte
	tooLong bool
}

// Serve processes requests from stdin until EOF or until ctx is canceled.
// It returns nil on EOF.
func (s *Stdio) Serve(ctx context.Context, handler Handler) error {
	ctx = protocol.SetRequestMeta(ctx, protocol.MetaTransport, "stdio")
	reader := bufio.NewReader(s.in)

	lines := make(chan stdioLine)
	readErr := make(chan error, 1)

	go func(done <-chan struct{}) {
		defer close(lines)
		for {
			data, tooLong, err := s.readLine(reader)
			if len(data) > 0 || tooLong {
				select {
				case lines <- stdioLine{data: data, tooLong: tooLong}:
				case <-done:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}(ctx.Done())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return fmt.Errorf("read stdin: %w", err)
				default:
					return nil
				}
			}
			if err := s.handleLine(ctx, handler, line); err != nil {
				return err
			}
		}
	}
}

// readLine reads one line. Content beyond the size limit is drained and
// dropped, and tooLong is reported instead.
func (s *Stdio) readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			n := len(chunk)
			if n > 0 && chunk[n-1] == '\n' {
				n--
			}
			if len(line)+n > s.maxMessageBytes {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, err
	}
}

func (s *Stdio) handleLine(ctx context.Context, handler Handler, line stdioLine) error {
	var resp *protocol.Response
	switch {
	case line.tooLong:
		s.logger.Warn("message too large",
			middleware.F("kind", string(protocol.KindMalformedEnvelope)),
			middleware.F("limit", s.maxMessageBytes),
		)
		resp = protocol.NewErrorResponse(nil, protocol.NewInvalidRequest(msgTooLarge))
	case len(bytes.TrimSpace(line.data)) == 0:
		return nil
	default:
		resp = dispatch(ctx, handler, s.logger, line.data)
	}

	return s.writeResponse(resp)
}

func (s *Stdio) writeResponse(resp *protocol.Response) error {
	data := encode(resp, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.logger.Error("failed to write response", middleware.F("error", err.Error()))
		return fmt.Errorf("write stdout: %w", err)
	}
	return nil
}
