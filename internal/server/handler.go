package server

import (
	"bufio"
	"context"
	"errors"
	"github.com/ravan/echo-counter/internal/otel"
	"github.com/ravan/echo-counter/internal/util"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"
)

const (
	framingRead = "read"
	framingLine = "line"
)

// chunkReader yields the next client message. io.EOF means the peer closed.
type chunkReader interface {
	next() ([]byte, error)
}

// readChunks treats whatever a single Read returns as one message. A client
// write may be split or merged by TCP, so this is not a framing guarantee.
type readChunks struct {
	r       io.Reader
	buf     []byte
	pending error
}

func (c *readChunks) next() ([]byte, error) {
	if c.pending != nil {
		return nil, c.pending
	}
	n, err := c.r.Read(c.buf)
	if n > 0 {
		c.pending = err
		return c.buf[:n], nil
	}
	if err == nil {
		// zero-length read is an orderly close
		return nil, io.EOF
	}
	return nil, err
}

// lineChunks yields newline terminated lines, without the terminator.
type lineChunks struct {
	scanner *bufio.Scanner
}

func newLineChunks(r io.Reader, size int) *lineChunks {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, size), size)
	return &lineChunks{scanner: scanner}
}

func (c *lineChunks) next() ([]byte, error) {
	if c.scanner.Scan() {
		return c.scanner.Bytes(), nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// deadlineReader arms a read deadline before every read.
type deadlineReader struct {
	conn    interface{ SetReadDeadline(time.Time) error }
	r       io.Reader
	timeout time.Duration
}

func (d *deadlineReader) Read(p []byte) (int, error) {
	if err := d.conn.SetReadDeadline(time.Now().Add(d.timeout)); err != nil {
		return 0, err
	}
	return d.r.Read(p)
}

func (s *Server) newChunkReader(r io.Reader) chunkReader {
	if s.readTimeout > 0 {
		if conn, ok := r.(interface{ SetReadDeadline(time.Time) error }); ok {
			r = &deadlineReader{conn: conn, r: r, timeout: s.readTimeout}
		}
	}
	if s.conf.Framing == framingLine {
		return newLineChunks(r, s.readBuffer)
	}
	return &readChunks{r: r, buf: make([]byte, s.readBuffer)}
}

// decode never fails: invalid UTF-8 becomes U+FFFD.
func decode(b []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "\uFFFD"))
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.conns.Done(conn)
	defer func() {
		_ = conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	ctx, span := otel.StartConnection(s.ctx, s.conf.ServiceName, remote)
	s.metrics.ConnectionOpened(ctx)
	defer s.metrics.ConnectionClosed(ctx)

	slog.Debug("connection opened", "remote", remote)
	served, err := s.serve(ctx, conn, remote)
	otel.EndConnection(span, served, err)
	if err != nil {
		slog.Debug("connection fault", "remote", remote, "requests", served, slog.Any("error", err))
		return
	}
	slog.Debug("connection closed", "remote", remote, "requests", served)
}

// serve runs the request/response loop until the peer closes or an I/O error
// occurs. It returns the number of responses written.
func (s *Server) serve(ctx context.Context, rw io.ReadWriter, remote string) (int, error) {
	chunks := s.newChunkReader(rw)
	served := 0
	for {
		chunk, err := chunks.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return served, nil
			}
			return served, err
		}

		text := decode(chunk)
		if err := s.sink.Send(ctx, util.NewLogMessage(text)); err != nil {
			slog.Debug("log message dropped", "remote", remote, slog.Any("error", err))
		}

		count := s.counter.Increment()
		s.metrics.Request(ctx)

		s.delay.ApplyBefore(ctx, remote)
		if _, err := io.WriteString(rw, s.response.Format(text, count)); err != nil {
			return served, err
		}
		served++
		s.delay.ApplyAfter(ctx, remote)
	}
}
