package cxmx

import "testing"

// TestReactorFiresScheduledTimer verifies that a single scheduled
// timer fires once and Run returns cleanly once it's the only
// outstanding work.
func TestReactorFiresScheduledTimer(t *testing.T) {
	r, err := NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}

	fired := false
	r.Schedule(nowSeconds()+0.01, func(rr *Reactor) { fired = true })

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !fired {
		t.Fatal("scheduled timer never fired")
	}
}

// TestReactorTCPEchoRoundTrip verifies a listener and a client
// connection driven by the same single-threaded reactor, where the
// server echoes back whatever the client sends and the client shuts
// the reactor down once it observes the echo.
func TestReactorTCPEchoRoundTrip(t *testing.T) {
	r, err := NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}

	lfd, err := r.ListenStream("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}
	host, port, err := r.LocalAddr(lfd)
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}

	cfd, err := r.ConnectStream(host, port)
	if err != nil {
		t.Fatalf("ConnectStream: %v", err)
	}

	const payload = "ping"
	var serverFd int
	var received []byte

	r.SetOnConnect(func(rr *Reactor, fd int) {
		serverFd = fd
	})
	r.SetOnSocket(func(rr *Reactor, fd int, data []byte) {
		switch fd {
		case serverFd:
			rr.Send(fd, data) // echo
		case cfd:
			received = append(received, data...)
			if len(received) >= len(payload) {
				rr.Shutdown()
			}
		}
	})

	if err := r.Send(cfd, []byte(payload)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(received) != payload {
		t.Fatalf("client received %q, want %q", received, payload)
	}
}
