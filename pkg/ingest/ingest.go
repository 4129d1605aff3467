package ingest

import (
	"context"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"

	log "github.com/rs/zerolog"
)

const ReadyMsg = 0x01

// Handler consumes the callout log streamed over a connection.
type Handler func(ctx context.Context, r io.Reader) error

// Server accepts callout log streams on a Unix socket. Once ready, it
// writes ReadyMsg to each connection and hands the stream to the handler.
// Connections are served one at a time, so the handler never runs
// concurrently with itself.
type Server struct {
	ln         net.Listener
	readyCh    chan struct{}
	doneCh     chan struct{}
	socketPath string
	handler    Handler
	logger     log.Logger
}

func NewServer(socketPath string, handler Handler, logger log.Logger) *Server {
	l := logger.With().Str("component", "ingest").Logger()
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		readyCh:    make(chan struct{}),
		doneCh:     make(chan struct{}),
		logger:     l,
	}
}

// Listen starts the UDS listener and serves connections in the background.
func (s *Server) Listen(ctx context.Context) error {
	// Remove socket if it already exists.
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrap(err, "failed to listen on UDS")
	}
	s.ln = ln

	go s.acceptConnections(ctx)

	return nil
}

// NotifyReadiness unblocks the connections waiting for the tracer.
func (s *Server) NotifyReadiness() {
	s.logger.Debug().Msg("marking readiness")
	close(s.readyCh)
}

// Done is closed when the server stops accepting connections.
func (s *Server) Done() <-chan struct{} {
	return s.doneCh
}

// Shutdown closes the listener and removes the socket.
func (s *Server) Shutdown() error {
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("error closing listener")
		}
	}

	if err := os.Remove(s.socketPath); err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debug().Err(err).Msgf("error removing socket")
			return err
		}
		s.logger.Debug().Msg("ignoring removing socket file, as it is already removed")
	}

	return nil
}

func (s *Server) acceptConnections(ctx context.Context) {
	defer close(s.doneCh)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("stopping accepting connections")
			return
		default:
			conn, err := s.ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					s.logger.Debug().Msg("ignoring accepting connection as it is closed")
					return
				}
				s.logger.Warn().Err(err).Msg("accept error")
				continue
			}

			s.processConnection(ctx, conn)
		}
	}
}

// processConnection signals readiness on conn, then streams it to the
// handler.
func (s *Server) processConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	select {
	case <-s.readyCh:
		if !s.isConnectionAlive(conn) {
			s.logger.Debug().Msg("connection is closed")
			return
		}
		if err := s.safeWrite(conn, []byte{ReadyMsg}); err != nil {
			if !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				s.logger.Debug().Err(err).Msg("failed to write")
			}
			return
		}
	case <-ctx.Done():
		s.logger.Debug().Msg("ignoring sending readiness message as context is canceled")
		return
	}

	// Unblock the handler on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := s.handler(ctx, conn); err != nil {
		s.logger.Error().Err(err).Msg("failed to ingest callout stream")
		return
	}
	s.logger.Debug().Msg("callout stream ingested")
}

func (s *Server) isConnectionAlive(conn net.Conn) bool {
	conn.SetReadDeadline(time.Now())
	if _, err := conn.Read([]byte{}); err == io.EOF {
		s.logger.Debug().Err(err).Msg("cannot write ready message: connection is already closed")
		conn.Close()

		return false
	}

	conn.SetReadDeadline(time.Time{})
	return true
}

func (s *Server) safeWrite(conn net.Conn, data []byte) error {
	_, err := conn.Write(data)
	if err != nil {
		switch {
		case errors.Is(err, syscall.EPIPE):
			conn.Close()
			return errors.Wrap(err, "peer closed the connection")
		case errors.Is(err, syscall.ECONNRESET):
			conn.Close()
			return errors.Wrap(err, "peer reset the connection")
		default:
			return errors.Wrap(err, "failed to write")
		}
	}
	return nil
}
