package bridge

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/visagate/visagate/internal/task"
	"github.com/visagate/visagate/logger"
	"github.com/visagate/visagate/visa"
)

// neverInterval parks a ticker that must exist but never fire.
const neverInterval = time.Duration(1<<63 - 1)

// Server accepts remote SCPI clients on a TCP listener and bridges their
// commands onto a single instrument session. It manages the listener
// lifecycle, the sequential accept/serve loop, and the optional mDNS
// announcement of the running bridge.
type Server struct {
	pctx      context.Context
	ctx       context.Context
	ctxCancel context.CancelFunc
	cfg       *ServerConfig
	logger    logger.Logger

	listener      net.Listener
	listenerMutex sync.Mutex

	session      visa.Session
	sessionMutex sync.Mutex // serializes instrument write/read pairs

	conn      net.Conn // client connection currently being served
	connMutex sync.Mutex

	taskMgr  *task.Manager
	state    atomicOpState
	shutdown atomic.Bool // indicates if has entered shutdown mode

	annMutex     sync.Mutex
	announcer    *announcer
	announceRsrc visa.Resource
	announceIdn  string

	statsCtl statsCtl

	metrics ServerMetrics // server metrics
}

// NewServer creates a new bridge server for the given instrument session with
// the given context and configuration.
// It initializes the task manager and other necessary components.
// Returns an error if the configuration or the session is nil.
func NewServer(ctx context.Context, cfg *ServerConfig, session visa.Session) (*Server, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if session == nil {
		return nil, ErrSessionNil
	}

	srv := &Server{
		pctx:    ctx,
		cfg:     cfg,
		logger:  cfg.logger,
		session: session,
		taskMgr: task.NewManager(ctx, cfg.logger),
	}

	srv.createContext()

	return srv, nil
}

// GetLogger returns the logger associated with the server.
func (s *Server) GetLogger() logger.Logger {
	return s.logger
}

// GetMetrics returns the metrics associated with the server.
func (s *Server) GetMetrics() *ServerMetrics {
	return &s.metrics
}

// Addr returns the address the server is listening on, or nil when the
// listener is not bound.
func (s *Server) Addr() net.Addr {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Open binds the listener and starts serving client connections.
// It is idempotent: opening an already-opened server returns nil.
// ErrServerClosing is returned when a shutdown is still in progress.
func (s *Server) Open() error {
	if !s.state.ToOpening() {
		if s.state.IsClosing() {
			return ErrServerClosing
		}

		return nil
	}

	s.shutdown.Store(false)
	s.createContext()

	if err := s.openListener(); err != nil {
		s.ctxCancel()
		s.state.Set(closedState)

		return err
	}

	if err := s.taskMgr.Start("acceptTask", s.acceptTask); err != nil {
		_ = s.closeListener()
		s.ctxCancel()
		s.state.Set(closedState)

		return err
	}

	interval := s.cfg.StatsInterval()
	if interval <= 0 {
		interval = neverInterval
	}

	ticker, err := s.taskMgr.StartInterval("statsTask", s.statsTask, interval, false)
	if err != nil {
		s.logger.Error("failed to start stats task", "method", "Open", "error", err)
	} else {
		s.statsCtl.setTicker(ticker)
	}

	if instance := s.cfg.Announce(); instance != "" {
		s.startAnnounce(instance)
	}

	s.state.ToOpened()
	s.logger.Info("server opened", "address", s.Addr().String())

	return nil
}

// Close shuts the server down gracefully. It stops the accept loop, closes
// the listener and any in-flight client connection, and waits up to the close
// timeout for all tasks to terminate.
// It is idempotent and does not close the instrument session, whose lifetime
// is owned by the caller.
func (s *Server) Close() error {
	if !s.state.ToClosing() {
		return nil
	}

	s.shutdown.Store(true)

	s.stopAnnounce()
	_ = s.closeListener()
	s.closeConn(s.cfg.CloseTimeout())

	s.state.ToClosed()
	s.logger.Info("server closed")

	return nil
}

// UpdateConfigOptions applies runtime-changeable options to the server
// configuration. Options that can only be set at construction time are
// rejected with an error.
func (s *Server) UpdateConfigOptions(opts ...ServerOption) error {
	prevStatsInterval := s.cfg.StatsInterval()

	if err := s.cfg.update(opts...); err != nil {
		return err
	}

	statsInterval := s.cfg.StatsInterval()
	if statsInterval != prevStatsInterval {
		if statsInterval > 0 {
			s.statsCtl.resetTicker(statsInterval)
		} else {
			s.statsCtl.resetTicker(neverInterval)
		}
	}

	return nil
}

// closeConn performs the actual shutdown process with a timeout.
// It cancels the context, stops the task manager, closes the in-flight client
// connection, and waits for all goroutines to terminate.
func (s *Server) closeConn(timeout time.Duration) {
	s.logger.Debug("start closeConn process")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.ctxCancel != nil {
		s.logger.Debug("trigger context cancel function", "method", "closeConn")
		s.ctxCancel()
	}

	s.taskMgr.Stop()

	// close the client connection being served, if any
	s.connMutex.Lock()
	if s.conn != nil {
		s.logger.Debug("close client connection", "method", "closeConn")
		if tcpConn, ok := s.conn.(*net.TCPConn); ok {
			_ = tcpConn.SetLinger(0) // Set linger timeout to 0 to force close
		}

		err := s.conn.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("failed to close client connection", "method", "closeConn", "error", err)
		}
	}
	s.connMutex.Unlock()

	go func() {
		s.logger.Debug("wait all goroutines terminated", "method", "closeConn")
		s.taskMgr.Wait()
		s.logger.Debug("all goroutines terminated", "method", "closeConn")
		cancel()
	}()

	// wait all goroutines terminated
	<-ctx.Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		s.logger.Debug("close success", "method", "closeConn")
	} else {
		s.logger.Error("close timeout", "method", "closeConn", "error", ctx.Err(), "timeout", timeout)
	}
}

// createContext creates a new context for the server, derived from the parent context.
func (s *Server) createContext() {
	s.ctx, s.ctxCancel = context.WithCancel(s.pctx)
}

func (s *Server) openListener() error {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()

	if s.listener != nil {
		return nil
	}

	address := net.JoinHostPort(s.cfg.host, strconv.Itoa(s.cfg.port))
	s.logger.Debug("try to listen", "address", address)

	var lc net.ListenConfig
	listener, err := lc.Listen(s.ctx, "tcp", address)
	if err != nil {
		s.logger.Error("failed to listen", "address", address, "error", err)
		return err
	}
	s.listener = listener

	return nil
}

func (s *Server) closeListener() error {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()
	if s.listener != nil {
		err := s.listener.Close()
		s.listener = nil

		return err
	}

	return nil
}

// acceptTask accepts one client connection per iteration and serves it
// inline, so clients are handled strictly one at a time.
func (s *Server) acceptTask() bool {
	listener := s.tcpListener()
	// listener already closed, skip
	if listener == nil {
		return false
	}

	conn, err := listener.Accept()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			select {
			case <-s.ctx.Done():
				s.logger.Debug("accept canceled by context", "method", "acceptTask", "error", err, "ctxError", s.ctx.Err())
				return false
			default:
				return true // re-accept if context is not done
			}
		}

		if !s.shutdown.Load() {
			opErr := &net.OpError{}
			if !errors.As(err, &opErr) {
				s.logger.Error("failed to accept connection", "method", "acceptTask", "error", err.Error())
			}

			return true // re-accept again
		}

		return false // terminate this task
	}

	s.metrics.incConnAcceptedCount()

	s.connMutex.Lock()
	s.conn = conn
	s.connMutex.Unlock()

	if s.logger.Level() == logger.DebugLevel {
		s.logger.Debug("connection accepted", "method", "acceptTask", "remote_address", conn.RemoteAddr())
	}

	s.serveConn(conn)

	s.connMutex.Lock()
	s.conn = nil
	s.connMutex.Unlock()

	return true
}

func (s *Server) tcpListener() *net.TCPListener {
	s.listenerMutex.Lock()
	defer s.listenerMutex.Unlock()
	if s.listener == nil {
		return nil
	}

	tcpListener, ok := s.listener.(*net.TCPListener)
	if !ok {
		s.logger.Error("failed to convert listener to TCPListener", "type", reflect.TypeOf(s.listener))
		return nil
	}

	err := tcpListener.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout()))
	if err != nil {
		s.logger.Error("failed to set deadline for tcp listener", "error", err)
		return nil
	}

	return tcpListener
}

// statsTask logs a snapshot of the server metrics.
func (s *Server) statsTask() bool {
	s.logger.Info("server stats",
		"accepted", s.metrics.ConnAcceptedCount.Load(),
		"served", s.metrics.ConnServedCount.Load(),
		"dropped", s.metrics.ConnDroppedCount.Load(),
		"queries", s.metrics.QueryCount.Load(),
		"commands", s.metrics.CommandCount.Load(),
		"write_errors", s.metrics.WriteErrCount.Load(),
		"read_errors", s.metrics.ReadErrCount.Load(),
	)

	return true
}

// statsCtl is a helper struct for managing the stats report ticker.
type statsCtl struct {
	mu     sync.Mutex
	ticker *time.Ticker
}

func (c *statsCtl) setTicker(ticker *time.Ticker) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticker = ticker
}

func (c *statsCtl) resetTicker(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ticker != nil && d > 0 {
		c.ticker.Reset(d)
	}
}
