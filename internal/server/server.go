package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"nova/internal/logging"
)

// Options configure the socket server. Zero values fall back to safe
// defaults so tests can construct a server tersely.
type Options struct {
	SocketPath      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownGrace   time.Duration
	MaxRequestBytes int
	MaxConnections  int
}

func (o *Options) applyDefaults() {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 5 * time.Second
	}
	if o.MaxRequestBytes <= 0 {
		o.MaxRequestBytes = 64 * 1024
	}
	if o.MaxConnections <= 0 {
		o.MaxConnections = 64
	}
}

// Server accepts connections on a UNIX socket and feeds each request to
// the dispatcher. One request, one reply, connection closes.
type Server struct {
	opts       Options
	dispatcher *Dispatcher

	mu       sync.Mutex
	listener net.Listener

	shutdownChan chan struct{}
	stopOnce     sync.Once
	doneChan     chan struct{}
	readyChan    chan struct{}

	connSemaphore chan struct{}
	activeConns   int32
	wg            sync.WaitGroup
}

// NewServer builds a server over the dispatcher. Nothing is bound until
// Start.
func NewServer(opts Options, d *Dispatcher) *Server {
	opts.applyDefaults()
	return &Server{
		opts:          opts,
		dispatcher:    d,
		shutdownChan:  make(chan struct{}),
		doneChan:      make(chan struct{}),
		readyChan:     make(chan struct{}),
		connSemaphore: make(chan struct{}, opts.MaxConnections),
	}
}

// Start binds the socket and serves until Stop. A pre-existing socket
// file is removed first; a daemon that died uncleanly leaves one behind.
// The socket is chmod 0666 so local CLI callers under any uid can reach
// it. Returns nil on clean stop.
func (s *Server) Start(ctx context.Context) error {
	if _, err := os.Stat(s.opts.SocketPath); err == nil {
		if err := os.Remove(s.opts.SocketPath); err != nil {
			return fmt.Errorf("cannot remove stale socket %s: %w", s.opts.SocketPath, err)
		}
		logging.Socket("Removed stale socket file %s", s.opts.SocketPath)
	}

	ln, err := net.Listen("unix", s.opts.SocketPath)
	if err != nil {
		return fmt.Errorf("cannot bind socket %s: %w", s.opts.SocketPath, err)
	}
	if err := os.Chmod(s.opts.SocketPath, 0666); err != nil {
		ln.Close()
		return fmt.Errorf("cannot chmod socket %s: %w", s.opts.SocketPath, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	close(s.readyChan)
	logging.Socket("Listening on %s (max %d connections)", s.opts.SocketPath, s.opts.MaxConnections)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdownChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		select {
		case s.connSemaphore <- struct{}{}:
		case <-s.shutdownChan:
			conn.Close()
			return nil
		}

		s.wg.Add(1)
		atomic.AddInt32(&s.activeConns, 1)
		go s.handleConnection(ctx, conn)
	}
}

// WaitReady blocks until the listener is bound, for callers that race a
// client against Start.
func (s *Server) WaitReady(timeout time.Duration) error {
	select {
	case <-s.readyChan:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("server not ready after %s", timeout)
	}
}

// ActiveConnections returns the number of in-flight connections.
func (s *Server) ActiveConnections() int {
	return int(atomic.LoadInt32(&s.activeConns))
}

// Stop closes the listener, drains in-flight connections under the grace
// deadline, and removes the socket file. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdownChan)

		s.mu.Lock()
		ln := s.listener
		s.mu.Unlock()
		if ln != nil {
			ln.Close()
		}

		drained := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
			logging.Socket("All connections drained")
		case <-time.After(s.opts.ShutdownGrace):
			logging.Socket("Drain deadline %s reached with %d connections in flight",
				s.opts.ShutdownGrace, s.ActiveConnections())
		}

		os.Remove(s.opts.SocketPath)
		close(s.doneChan)
		logging.Socket("Listener closed, socket file removed")
	})
}

// Done is closed once Stop has finished.
func (s *Server) Done() <-chan struct{} {
	return s.doneChan
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() { <-s.connSemaphore }()
	defer atomic.AddInt32(&s.activeConns, -1)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	data, err := readRequest(conn, s.opts.MaxRequestBytes)

	var reply string
	switch {
	case err != nil:
		logging.SocketDebug("Read failed: %v", err)
		reply = Errorf(KindProtocol, "%v", err)
	default:
		reply = s.dispatcher.Dispatch(ctx, data)
	}

	conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if _, err := conn.Write([]byte(reply)); err != nil {
		logging.SocketDebug("Write failed: %v", err)
	}
}

// readRequest reads one request, bounded at max bytes. The normal framing
// is the client's half-close; a client that keeps its write side open is
// tolerated if its bytes arrived before the read deadline.
func readRequest(conn net.Conn, max int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(conn, int64(max)+1))
	if len(data) > max {
		return nil, fmt.Errorf("request exceeds %d bytes", max)
	}
	if err != nil {
		if len(data) > 0 && errors.Is(err, os.ErrDeadlineExceeded) {
			return data, nil
		}
		return nil, fmt.Errorf("failed to read request: %v", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty request")
	}
	return data, nil
}
