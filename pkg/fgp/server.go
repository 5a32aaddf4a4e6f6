package fgp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fgp-dev/fgp-neon/pkg/apperrors"
	"github.com/fgp-dev/fgp-neon/pkg/audit"
	"github.com/fgp-dev/fgp-neon/pkg/logging"
)

// writeTimeout bounds a single response write so a stuck client cannot
// pin a connection goroutine forever.
const writeTimeout = 10 * time.Second

// Server hosts one Service on a Unix socket.
type Server struct {
	svc        Service
	socketPath string
	pidFile    string
	logger     *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup
	closing  chan struct{}
	closed   chan struct{}
	stopOnce sync.Once
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithPIDFile tells the server to remove the given PID file during
// shutdown cleanup.
func WithPIDFile(path string) ServerOption {
	return func(s *Server) { s.pidFile = path }
}

// NewServer prepares the socket and starts listening. A live socket at
// the path means another daemon is running and is an error; a dead one
// is removed. The socket is restricted to the owning user.
func NewServer(svc Service, socketPath string, logger *zap.Logger, opts ...ServerOption) (*Server, error) {
	if err := prepareSocket(socketPath, audit.New(logger)); err != nil {
		return nil, err
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		_ = os.Remove(socketPath)
		return nil, fmt.Errorf("restricting socket mode: %w", err)
	}

	s := &Server{
		svc:        svc,
		socketPath: socketPath,
		logger:     logger.Named("fgp"),
		listener:   listener,
		closing:    make(chan struct{}),
		closed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// prepareSocket creates the socket's parent directory and deals with a
// leftover socket file from a previous run.
func prepareSocket(path string, auditor *audit.Auditor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("daemon already running on %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	auditor.StaleSocketTakeover(path)
	return nil
}

// Serve runs the service's OnStart hook, then accepts connections
// until Stop is called, fgp.stop arrives, the context is cancelled, or
// SIGTERM/SIGINT is received. It returns after in-flight connections
// have drained and the socket and PID files are removed.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.svc.OnStart(ctx); err != nil {
		s.Stop()
		s.cleanup()
		close(s.closed)
		return err
	}

	s.logger.Info("daemon listening",
		zap.String("service", s.svc.Name()),
		zap.String("version", s.svc.Version()),
		zap.String("socket", s.socketPath))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info("signal received", zap.String("signal", sig.String()))
			s.Stop()
		case <-ctx.Done():
			s.Stop()
		case <-s.closing:
		}
	}()

	var err error
	for {
		var conn net.Conn
		conn, err = s.listener.Accept()
		if err != nil {
			break
		}
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}(conn)
	}

	select {
	case <-s.closing:
		// Accept failed because Stop closed the listener.
		err = nil
	default:
	}
	s.Stop()

	s.wg.Wait()
	s.cleanup()
	close(s.closed)
	s.logger.Info("daemon stopped")
	return err
}

// Stop initiates shutdown. Safe to call more than once and from any
// goroutine; Serve returns once the drain completes.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.closing)
		_ = s.listener.Close()
	})
}

func (s *Server) cleanup() {
	_ = os.Remove(s.socketPath)
	if s.pidFile != "" {
		_ = os.Remove(s.pidFile)
	}
}

// serveConn reads request lines until the client disconnects, the line
// limit is exceeded, or a stop request arrives. Requests on one
// connection are served sequentially.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With(zap.String("conn", uuid.NewString()[:8]))
	logger.Debug("client connected")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		resp, stopping := s.handleLine(ctx, line, logger)
		if err := writeResponse(conn, resp); err != nil {
			// The caller went away; the result is discarded.
			logger.Debug("response write failed", zap.Error(err))
			if stopping {
				s.Stop()
			}
			return
		}
		if stopping {
			s.Stop()
			return
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Debug("connection read failed", zap.Error(err))
		return
	}
	logger.Debug("client disconnected")
}

// handleLine parses and serves one request. The bool reports whether
// the request asked the daemon to stop.
func (s *Server) handleLine(ctx context.Context, line []byte, logger *zap.Logger) (Response, bool) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		logger.Debug("malformed request line", zap.Error(err))
		return errResponse("", apperrors.BadRequest("malformed request line")), false
	}
	if req.V != ProtocolVersion {
		return errResponse(req.ID, apperrors.Newf(apperrors.KindBadRequest,
			"unsupported protocol version %d", req.V)), false
	}
	params := req.Params
	if params == nil {
		params = map[string]any{}
	}

	switch req.Method {
	case MethodPing:
		return okResponse(req.ID, map[string]any{
			"pong":    true,
			"service": s.svc.Name(),
			"version": s.svc.Version(),
		}), false
	case MethodMethods:
		methods := s.svc.Methods()
		return okResponse(req.ID, map[string]any{
			"methods": methods,
			"count":   len(methods),
		}), false
	case MethodStop:
		logger.Info("stop requested over socket")
		return okResponse(req.ID, map[string]any{"stopping": true}), true
	}

	start := time.Now()
	result, err := s.svc.Dispatch(ctx, req.Method, params)
	if err != nil {
		if apperrors.IsInputError(err) {
			logger.Debug("request rejected",
				zap.String("method", req.Method),
				zap.String("error", err.Error()))
		} else {
			logger.Warn("request failed",
				zap.String("method", req.Method),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("error", logging.SanitizeError(err)))
		}
		return errResponse(req.ID, err), false
	}

	logger.Debug("request served",
		zap.String("method", req.Method),
		zap.Duration("elapsed", time.Since(start)))
	return okResponse(req.ID, result), false
}

// writeResponse marshals one response line to the connection.
func writeResponse(conn net.Conn, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		// Result was not marshalable. Send the failure instead.
		data, _ = json.Marshal(errResponse(resp.ID, apperrors.Internal(err)))
	}
	data = append(data, '\n')

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}
