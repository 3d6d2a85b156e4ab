// Package stdio implements a minimal single-connection MCP transport over
// stdin/stdout: newline-delimited JSON-RPC frames in, newline-delimited
// frames out, one process talking to one client.
package stdio

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/user"

	"github.com/relaymcp/relay/auth"
	"github.com/relaymcp/relay/relay"
)

// Handler runs the stdio event loop for a Server.
type Handler struct {
	srv *relay.Server
	r   io.Reader
	w   io.Writer
	l   *slog.Logger
}

// Option customizes a Handler.
type Option func(*Handler)

// WithIO sets the reader and writer for the handler. Defaults to os.Stdin
// and os.Stdout.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
		if w != nil {
			h.w = w
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// NewHandler constructs a stdio Handler around srv with defaults, then
// applies opts.
func NewHandler(srv *relay.Server, opts ...Option) *Handler {
	h := &Handler{srv: srv, r: os.Stdin, w: os.Stdout, l: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve runs the stdio event loop until EOF on the reader or ctx is
// canceled. Every frame is dispatched under the same implicit session
// (stdio has no session concept, so sessionID is always the empty string)
// and identified to the auth layer by the invoking OS user.
func (h *Handler) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(h.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	authReq := &auth.Request{Extra: map[string]any{"osUser": osUserID()}}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame := make([]byte, len(line))
		copy(frame, line)

		resp := h.srv.Handle(ctx, "", frame, authReq)
		if resp == nil {
			continue
		}
		if _, err := h.w.Write(append(resp, '\n')); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func osUserID() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
