package nats

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer speaks enough of the NATS client protocol for one connection
// to subscribe, publish and drain: INFO, CONNECT, PING, SUB, UNSUB and PUB.
type fakeServer struct {
	ln net.Listener

	mu   sync.Mutex
	subs map[subKey]string
}

type subKey struct {
	conn *fakeConn
	sid  string
}

type fakeConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *fakeConn) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.conn, s)
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{ln: ln, subs: map[subKey]string{}}
	go s.accept()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *fakeServer) URL() string {
	return "nats://" + s.ln.Addr().String()
}

func (s *fakeServer) accept() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(&fakeConn{conn: conn})
	}
}

func (s *fakeServer) serve(c *fakeConn) {
	defer c.conn.Close()
	c.write(`INFO {"server_id":"fake","version":"2.10.0","proto":1,"headers":true,"max_payload":1048576}` + "\r\n")

	r := bufio.NewReader(c.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			s.forget(c)
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "PING":
			c.write("PONG\r\n")
		case "SUB":
			s.mu.Lock()
			s.subs[subKey{conn: c, sid: fields[len(fields)-1]}] = fields[1]
			s.mu.Unlock()
		case "UNSUB":
			s.mu.Lock()
			delete(s.subs, subKey{conn: c, sid: fields[1]})
			s.mu.Unlock()
		case "PUB":
			size, err := strconv.Atoi(fields[len(fields)-1])
			if err != nil {
				return
			}
			payload := make([]byte, size+2)
			if _, err := io.ReadFull(r, payload); err != nil {
				return
			}
			s.deliver(fields[1], payload[:size])
		}
	}
}

func (s *fakeServer) deliver(subject string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, subscribed := range s.subs {
		if subscribed == subject {
			key.conn.write(fmt.Sprintf("MSG %s %s %d\r\n%s\r\n", subject, key.sid, len(payload), payload))
		}
	}
}

func (s *fakeServer) forget(c *fakeConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.subs {
		if key.conn == c {
			delete(s.subs, key)
		}
	}
}

func (s *fakeServer) subscriptions(subject string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, subscribed := range s.subs {
		if subscribed == subject {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
