// cmd/ecmaster/run_test.go
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// registerSink is a loopback Modbus TCP server that accepts FC16 writes.
type registerSink struct {
	ln net.Listener

	mu       sync.Mutex
	accepted int
	closed   int
	writes   int
}

func newRegisterSink(t *testing.T) *registerSink {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	s := &registerSink{ln: ln}
	go s.serve()
	return s
}

func (s *registerSink) serve() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.accepted++
		s.mu.Unlock()
		go s.handle(c)
	}
}

// handle answers write-multiple-registers requests until the client hangs up.
func (s *registerSink) handle(c net.Conn) {
	defer func() {
		c.Close()
		s.mu.Lock()
		s.closed++
		s.mu.Unlock()
	}()

	hdr := make([]byte, 7)
	for {
		if _, err := io.ReadFull(c, hdr); err != nil {
			return
		}
		n := int(binary.BigEndian.Uint16(hdr[4:6])) - 1
		if n < 5 {
			return
		}
		pdu := make([]byte, n)
		if _, err := io.ReadFull(c, pdu); err != nil {
			return
		}
		if pdu[0] != 0x10 {
			return
		}

		s.mu.Lock()
		s.writes++
		s.mu.Unlock()

		// transaction + protocol id, length, unit id, then fc/address/quantity
		resp := make([]byte, 12)
		copy(resp[0:4], hdr[0:4])
		binary.BigEndian.PutUint16(resp[4:6], 6)
		resp[6] = hdr[6]
		copy(resp[7:12], pdu[0:5])
		if _, err := c.Write(resp); err != nil {
			return
		}
	}
}

func (s *registerSink) counts() (accepted, closed, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted, s.closed, s.writes
}

func TestRun_StatusConnectionClosedAfterFinalWrites(t *testing.T) {
	sink := newRegisterSink(t)

	path := filepath.Join(t.TempDir(), "master.yaml")
	cfg := fmt.Sprintf(`
master:
  adapter: sim
status:
  endpoint: tcp://%s
  unit_id: 1
  base_slot: 0
`, sink.ln.Addr().String())
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if out, err := execute("sim0", "--config", path, "-n", "5", "--cycle-us", "100", "--log-level", "error"); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	// the server notices the hang-up asynchronously
	deadline := time.Now().Add(2 * time.Second)
	for {
		accepted, closed, writes := sink.counts()
		if accepted > 0 && closed == accepted {
			if accepted != 1 {
				t.Fatalf("status client dialed %d connections, want 1", accepted)
			}
			// start-up block plus the disabled marks on stop
			if writes < 2 {
				t.Fatalf("writes=%d, want at least 2", writes)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("status connection left open: accepted=%d closed=%d", accepted, closed)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
