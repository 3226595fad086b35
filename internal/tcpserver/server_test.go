package tcpserver

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewServer_DefaultLocalhostAddress(t *testing.T) {
	t.Parallel()

	s := NewServer("")
	if got := s.Addr(); got != "127.0.0.1:4000" {
		t.Fatalf("Addr() = %q, want %q", got, "127.0.0.1:4000")
	}
}

func TestNewServer_UsesConfiguredAddressAndBuffers(t *testing.T) {
	t.Parallel()

	s := NewServer("0.0.0.0:5000", ServerConfig{
		LineChannelSize: 64,
		MaxLineSize:     2048,
	})

	if got := s.Addr(); got != "0.0.0.0:5000" {
		t.Fatalf("Addr() = %q, want %q", got, "0.0.0.0:5000")
	}
	if got := cap(s.lineChan); got != 64 {
		t.Fatalf("line channel cap = %d, want %d", got, 64)
	}
}

func startServer(t *testing.T, conf ...ServerConfig) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", conf...)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func collect(t *testing.T, s *Server, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case env, ok := <-s.Lines():
			if !ok {
				t.Fatalf("lines closed after %d of %d: %q", len(got), n, got)
			}
			got = append(got, env.Line)
		case <-timeout:
			t.Fatalf("timed out after %d of %d lines: %q", len(got), n, got)
		}
	}
	return got
}

func TestServer_ReceivesLinesInOrder(t *testing.T) {
	t.Parallel()

	s := startServer(t)
	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := conn.Write([]byte("first\r\n\nthird\nno newline")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_ = conn.Close()

	got := collect(t, s, 4)
	want := []string{"first", "", "third", "no newline"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_SplitsOversizedLines(t *testing.T) {
	t.Parallel()

	s := startServer(t, ServerConfig{MaxLineSize: 16})
	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	long := strings.Repeat("a", 40)
	if _, err := conn.Write([]byte(long + "\nshort\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_ = conn.Close()

	got := collect(t, s, 4)
	want := []string{strings.Repeat("a", 16), strings.Repeat("a", 16), strings.Repeat("a", 8), "short"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_StopClosesOpenConnections(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	collect(t, s, 1)

	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		_ = s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an idle client connection")
	}

	if _, ok := <-s.Lines(); ok {
		t.Fatal("expected lines channel to be closed after Stop")
	}
	if conns, lines := s.Counters(); conns != 1 || lines != 1 {
		t.Fatalf("Counters() = %d, %d, want 1, 1", conns, lines)
	}
}
