// Package tcpserver accepts newline-delimited log lines over TCP so other
// processes can stream into a running pager.
package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/apyr/internal/model"
)

const (
	// DefaultAddr is used when no listen address is configured.
	DefaultAddr = model.DefaultTCPAddr

	// DefaultLineChannelSize is the default buffer size for the incoming log line channel.
	DefaultLineChannelSize = 100_000

	// DefaultMaxLineSize is the default maximum size (in bytes) of a single log line.
	// Longer lines are split into pieces of at most this size.
	DefaultMaxLineSize = 1024 * 1024 // 1MB
)

// ServerConfig holds tunable parameters for the TCP server.
type ServerConfig struct {
	LineChannelSize int
	MaxLineSize     int
}

// Server listens for newline-delimited plain-text log lines over TCP.
type Server struct {
	listener    net.Listener
	addr        string
	lineChan    chan model.IngestEnvelope
	maxLineSize int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	accepted atomic.Int64
	received atomic.Int64
	stopOnce sync.Once
}

// NewServer creates a new TCP server. Default addr is "127.0.0.1:4000".
func NewServer(addr string, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	lineChannelSize := DefaultLineChannelSize
	maxLineSize := DefaultMaxLineSize
	if len(conf) > 0 {
		if conf[0].LineChannelSize > 0 {
			lineChannelSize = conf[0].LineChannelSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		lineChan:    make(chan model.IngestEnvelope, lineChannelSize),
		maxLineSize: maxLineSize,
		ctx:         ctx,
		cancel:      cancel,
		conns:       make(map[net.Conn]struct{}),
	}
}

// Start begins accepting TCP connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	log.Printf("tcpserver: listening on %s", listener.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					if errors.Is(err, net.ErrClosed) {
						return
					}
					continue
				}
			}
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			s.accepted.Add(1)
			s.wg.Add(1)
			go s.handleConnection(conn)
		}
	}()

	return nil
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	reader := bufio.NewReaderSize(conn, s.maxLineSize)
	var pending strings.Builder
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if len(chunk) > 0 || (err == nil && !isPrefix) {
			pending.Write(chunk)
			if !isPrefix || pending.Len() >= s.maxLineSize {
				if !s.emit(pending.String()) {
					return
				}
				pending.Reset()
			}
		}
		if err != nil {
			if pending.Len() > 0 {
				s.emit(pending.String())
			}
			if !errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				log.Printf("tcpserver: read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
	}
}

func (s *Server) emit(line string) bool {
	select {
	case s.lineChan <- model.IngestEnvelope{Source: "tcp", Line: line}:
		s.received.Add(1)
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Stop shuts down the listener, closes open connections and closes the
// line channel. It is safe to call more than once.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.cancel()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.wg.Wait()
		close(s.lineChan)
	})
	return nil
}

// Lines returns the channel of received log lines.
func (s *Server) Lines() <-chan model.IngestEnvelope {
	return s.lineChan
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Counters returns the number of accepted connections and received lines.
func (s *Server) Counters() (connections, lines int64) {
	return s.accepted.Load(), s.received.Load()
}
