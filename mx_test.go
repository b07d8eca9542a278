package cxmx

import "testing"

// TestMXTypedMessageDispatch verifies that a typed message sent over a
// framed stream connection reaches the subscriber registered for its
// type, with type/version/payload preserved.
func TestMXTypedMessageDispatch(t *testing.T) {
	cx, err := NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	mx := NewMX(cx, 0)

	lfd, err := mx.ListenStream("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}
	host, port, err := mx.LocalAddr(lfd)
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}
	cfd, err := mx.ConnectStream(host, port)
	if err != nil {
		t.Fatalf("ConnectStream: %v", err)
	}

	const msgType = 42
	var gotPayload []byte
	var gotVersion uint32
	mx.Subscribe(msgType, func(mx *MX, fd int, msg Frame) {
		gotPayload = append([]byte(nil), msg.Payload...)
		gotVersion = msg.Version
		mx.Shutdown()
	})

	if err := mx.SendMessage(cfd, msgType, 3, []byte("hello")); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := mx.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(gotPayload) != "hello" || gotVersion != 3 {
		t.Fatalf("got payload=%q version=%d, want hello/3", gotPayload, gotVersion)
	}
}

// TestMXNoSubscriberIsDroppedSilently verifies that a message with no
// matching subscriber does not stall or crash dispatch, and doesn't
// prevent later messages on other types from being delivered.
func TestMXNoSubscriberIsDroppedSilently(t *testing.T) {
	cx, err := NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	mx := NewMX(cx, 0)

	lfd, err := mx.ListenStream("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("ListenStream: %v", err)
	}
	host, port, err := mx.LocalAddr(lfd)
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}
	cfd, err := mx.ConnectStream(host, port)
	if err != nil {
		t.Fatalf("ConnectStream: %v", err)
	}

	const unsubscribed = 1
	const subscribed = 2
	var delivered bool
	mx.Subscribe(subscribed, func(mx *MX, fd int, msg Frame) {
		delivered = true
		mx.Shutdown()
	})

	if err := mx.SendMessage(cfd, unsubscribed, 0, []byte("ignored")); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := mx.SendMessage(cfd, subscribed, 0, []byte("seen")); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := mx.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !delivered {
		t.Fatal("subscribed message was never delivered")
	}
}
