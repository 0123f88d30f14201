package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"searchq/internal/daemon"
	"searchq/internal/logging"
)

// callTimeout bounds each RPC on the server side.
const callTimeout = 30 * time.Second

// probeTimeout bounds the liveness dial made before replacing a socket.
const probeTimeout = 500 * time.Millisecond

// ErrSocketInUse means another process still answers on the socket path.
var ErrSocketInUse = errors.New("ipc socket is in use by another process")

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
// Only processes running as the daemon's user may connect.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  *net.UnixListener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds the socket at path and registers the daemon service. A
// stale socket file is replaced; a live one is an error.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	listener, err := listenSocket(path)
	if err != nil {
		return nil, err
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: serverCtx}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

func listenSocket(path string) (*net.UnixListener, error) {
	if _, err := os.Lstat(path); err == nil {
		if conn, dialErr := net.DialTimeout("unix", path, probeTimeout); dialErr == nil {
			conn.Close()
			return nil, fmt.Errorf("%w: %s", ErrSocketInUse, path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	listener.SetUnlinkOnClose(false)
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return listener, nil
}

// Serve accepts connections in the background until Close or the context
// ends.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.AcceptUnix()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			if err := checkPeer(conn); err != nil {
				logging.WarnWithContext(s.logger, "rejected IPC peer", "ipc_peer_rejected",
					logging.Error(err),
					logging.String(logging.FieldImpact, "the connecting process cannot control this daemon"),
					logging.String(logging.FieldErrorHint, "run searchq as the same user as the daemon"))
				conn.Close()
				continue
			}
			s.wg.Add(1)
			go s.serveConn(conn)
		}
	}()
}

func (s *Server) serveConn(conn *net.UnixConn) {
	defer s.wg.Done()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Close stops accepting, drops open connections and removes the socket
// file.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.wg.Wait()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun searchq stop"))
	}
}
