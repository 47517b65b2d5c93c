package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ravan/echo-counter/internal/config"
	"github.com/ravan/echo-counter/internal/mirror"
	"github.com/ravan/echo-counter/internal/otel"
	"github.com/ravan/echo-counter/internal/stats"
	"github.com/ravan/echo-counter/internal/status"
	"github.com/ravan/echo-counter/internal/template"
	"github.com/ravan/echo-counter/internal/threshold"
	"github.com/ravan/echo-counter/internal/util"
	"github.com/spf13/afero"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Server accepts echo clients. All connections share one request counter and
// one log sink; a threshold waiter watches the counter in the background.
type Server struct {
	conf        *config.Configuration
	listener    net.Listener
	counter     *util.SharedCounter
	sink        *util.LogSink
	waiter      *threshold.Waiter
	conns       *connTracker
	response    *template.Response
	delay       *util.Delay
	metrics     *otel.Metrics
	readBuffer  int
	readTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	// bg tracks the sink and the waiter goroutines.
	bg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// New binds the listener and prepares shared state. Log sink output goes to
// logOut. A bind failure is returned before anything is started.
func New(conf *config.Configuration, logOut io.Writer) (*Server, error) {
	readBuffer, err := conf.ReadBufferSize()
	if err != nil {
		return nil, err
	}
	readTimeout, err := conf.ReadTimeoutDuration()
	if err != nil {
		return nil, err
	}
	waiter, err := threshold.NewWaiter(conf.Threshold.First, conf.Threshold.Second)
	if err != nil {
		return nil, err
	}
	metrics := otel.NewMetrics(conf.ServiceName)
	sink, err := util.NewLogSink(util.SinkOptions{
		QueueSize:    conf.Logging.QueueSize,
		Format:       conf.Logging.Format,
		DropWhenFull: conf.Logging.DropWhenFull,
		OnDrop:       metrics.LogDropped,
	}, logOut)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", conf.ListenAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", conf.ListenAddress(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		conf:        conf,
		listener:    listener,
		counter:     util.NewSharedCounter(),
		sink:        sink,
		waiter:      waiter,
		conns:       newConnTracker(),
		response:    template.NewResponse(),
		delay:       util.ParseDelay(conf.Delay),
		metrics:     metrics,
		readBuffer:  readBuffer,
		readTimeout: readTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve starts the log sink and the threshold waiter, then accepts
// connections until Close is called.
func (s *Server) Serve() error {
	s.startBackground()
	var tempDelay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			tempDelay = nextAcceptDelay(tempDelay)
			slog.Error("Error accepting connection", slog.Any("error", err), slog.Duration("retry", tempDelay))
			select {
			case <-time.After(tempDelay):
			case <-s.ctx.Done():
				return nil
			}
			continue
		}
		tempDelay = 0
		if !s.conns.Add(conn) {
			_ = conn.Close()
			continue
		}
		go s.handleConnection(conn)
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// nextAcceptDelay doubles the pause after a failed Accept, capped at maxAcceptDelay.
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	if next := prev * 2; next < maxAcceptDelay {
		return next
	}
	return maxAcceptDelay
}

func (s *Server) startBackground() {
	s.startOnce.Do(func() {
		s.bg.Add(2)
		go func() {
			defer s.bg.Done()
			s.sink.Run()
		}()
		go func() {
			defer s.bg.Done()
			result, err := s.waiter.Wait(s.ctx, s.counter)
			if err != nil {
				slog.Debug("threshold waiter stopped", "phase", s.waiter.Phase().String(), slog.Any("error", err))
				return
			}
			slog.Info(result)
		}()
	})
}

// Close stops accepting, disconnects clients, waits for their handlers and
// drains the log sink. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.listener.Close()
		s.conns.CloseAll()
		s.conns.Wait()
		s.sink.Close()
		s.startOnce.Do(func() {})
		s.bg.Wait()
	})
	return s.closeErr
}

// Counter exposes the shared request counter.
func (s *Server) Counter() *util.SharedCounter {
	return s.counter
}

func (s *Server) Waiter() *threshold.Waiter {
	return s.waiter
}

func (s *Server) Snapshot() stats.Counters {
	result, _ := s.waiter.Result()
	return stats.Counters{
		Requests:         s.counter.Value(),
		OpenConnections:  s.conns.Open(),
		TotalConnections: s.conns.Total(),
		LogWritten:       s.sink.Written(),
		LogDropped:       s.sink.Dropped(),
		ThresholdPhase:   s.waiter.Phase().String(),
		ThresholdResult:  result,
	}
}

// Run is the process entry point: it wires telemetry, the stdin mirror, the
// optional stats reporter and status endpoint around the echo server and
// blocks until SIGINT or SIGTERM.
func Run(conf *config.Configuration) error {
	util.SetDefaultLogLevel(log.Writer(), conf.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if conf.OpenTelemetry.Active() {
		shutdown, err := otel.InitializeOpenTelemetry(ctx, conf.ServiceName, conf.OpenTelemetry)
		if err != nil {
			return err
		}
		defer func() {
			err := shutdown(context.Background())
			if err != nil {
				slog.Error("Error shutting down otel:", slog.Any("error", err))
			}
		}()
	}
	otel.NewTracer(conf.OpenTelemetry)

	srv, err := New(conf, os.Stdout)
	if err != nil {
		return err
	}

	if conf.Mirror.Enabled {
		go func() {
			if _, err := mirror.Stdin(ctx, afero.NewOsFs(), os.Stdin, conf.Mirror.File); err != nil {
				slog.Error("STDIN -> file copy failed", slog.Any("error", err))
			}
		}()
	}
	if conf.Stats.Enabled {
		interval, _ := conf.Stats.IntervalDuration()
		go stats.Run(ctx, interval, srv.Snapshot)
	}
	if conf.Status.Enabled {
		app := status.NewApp(conf.ServiceName, srv.Snapshot)
		go func() {
			if err := status.Serve(ctx, app, conf.Status.Address); err != nil {
				slog.Error("status endpoint failed", slog.Any("error", err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down...")
		if err := srv.Close(); err != nil {
			slog.Error("Error closing listener", slog.Any("error", err))
		}
	}()

	slog.Info("Server listening on", slog.String("address", srv.Addr().String()))
	if err := srv.Serve(); err != nil {
		return err
	}
	return srv.Close()
}
