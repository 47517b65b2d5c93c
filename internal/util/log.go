package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/Masterminds/sprig/v3"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"text/template"
	"time"
)

var (
	ErrSinkClosed = errors.New("log sink closed")
	ErrQueueFull  = errors.New("log queue full")
)

// LogMessage is one piece of client input handed to the LogSink.
type LogMessage struct {
	Text     string
	Received time.Time
}

func NewLogMessage(text string) LogMessage {
	return LogMessage{Text: text, Received: time.Now()}
}

type SinkOptions struct {
	QueueSize    int
	Format       string
	DropWhenFull bool
	// OnDrop is called for every message that did not reach the queue.
	OnDrop func(reason error)
}

// LogSink drains a bounded queue of client messages from a single goroutine
// and writes one rendered line per message. Many connections send, only Run
// writes.
type LogSink struct {
	queue        chan LogMessage
	out          io.Writer
	tpl          *template.Template
	dropWhenFull bool
	onDrop       func(reason error)

	// mu orders Send against Close: once closed is set no new sender
	// enters, and Run drains only after in-flight senders have left.
	mu        sync.RWMutex
	closed    bool
	senders   sync.WaitGroup
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
	written   atomic.Int64
}

func NewLogSink(opts SinkOptions, out io.Writer) (*LogSink, error) {
	if opts.QueueSize <= 0 {
		return nil, fmt.Errorf("log queue size must be positive, got %d", opts.QueueSize)
	}
	tpl, err := parseTemplate("log", opts.Format)
	if err != nil {
		return nil, err
	}
	return &LogSink{
		queue:        make(chan LogMessage, opts.QueueSize),
		out:          out,
		tpl:          tpl,
		dropWhenFull: opts.DropWhenFull,
		onDrop:       opts.OnDrop,
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

// Send queues msg. It waits for room unless the sink drops on a full queue,
// and gives up when ctx ends or the sink is closed. Callers on the request
// path are expected to ignore the returned error.
func (s *LogSink) Send(ctx context.Context, msg LogMessage) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return s.drop(ErrSinkClosed)
	}
	s.senders.Add(1)
	s.mu.RUnlock()
	defer s.senders.Done()

	if s.dropWhenFull {
		select {
		case s.queue <- msg:
			return nil
		default:
			return s.drop(ErrQueueFull)
		}
	}

	select {
	case s.queue <- msg:
		return nil
	case <-s.closing:
		return s.drop(ErrSinkClosed)
	case <-ctx.Done():
		return s.drop(ctx.Err())
	}
}

// Run writes messages until Close is called and the queue is drained.
func (s *LogSink) Run() {
	defer close(s.done)
	for {
		select {
		case msg := <-s.queue:
			s.write(msg)
		case <-s.closing:
			s.senders.Wait()
			for {
				select {
				case msg := <-s.queue:
					s.write(msg)
				default:
					return
				}
			}
		}
	}
}

// Close stops accepting messages. Run returns once the queue is empty.
func (s *LogSink) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.closing)
		s.mu.Unlock()
	})
}

func (s *LogSink) Done() <-chan struct{} {
	return s.done
}

func (s *LogSink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *LogSink) Written() int64 {
	return s.written.Load()
}

func (s *LogSink) drop(reason error) error {
	s.dropped.Add(1)
	if s.onDrop != nil {
		s.onDrop(reason)
	}
	return reason
}

func (s *LogSink) write(msg LogMessage) {
	line, err := renderTemplate(s.tpl, msg)
	if err != nil {
		slog.Error("Error executing log template", slog.Any("error", err))
		line = msg.Text
	}
	if _, err := io.WriteString(s.out, line+"\n"); err != nil {
		slog.Error("failed to write log line", slog.Any("error", err))
		return
	}
	s.written.Add(1)
}

func parseTemplate(tplName, tplString string) (*template.Template, error) {
	tpl := template.New(tplName).Funcs(sprig.FuncMap())
	tpl.Delims("[[", "]]")
	parsed, err := tpl.Parse(tplString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log template %q: %w", tplString, err)
	}
	return parsed, nil
}

func renderTemplate(tpl *template.Template, data any) (string, error) {
	var out bytes.Buffer
	if err := tpl.Execute(&out, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// SetDefaultLogLevel installs a text slog handler on w at the given level.
func SetDefaultLogLevel(w io.Writer, stringLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(stringLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
