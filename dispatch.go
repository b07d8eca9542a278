package cxmx

// Run drives MX's main loop: events left over from an in-progress
// Await are delivered first, in the order they arrived; once drained,
// more are collected from the reactor. It returns nil once the
// reactor reports no remaining fds or timers, or the readiness
// primitive's error otherwise.
func (mx *MX) Run() error {
	for {
		mx.pending.PushBackList(mx.waiting)
		mx.waiting.Init()

		if mx.pending.Len() == 0 {
			evs, done, err := mx.collectOnce()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			for _, e := range evs {
				mx.pending.PushBack(e)
			}
			if mx.pending.Len() == 0 {
				continue
			}
		}

		front := mx.pending.Front()
		mx.pending.Remove(front)
		mx.dispatchOne(front.Value.(*Event))
	}
}

// dispatchOne is the only place MX invokes a caller-installed hook,
// the property that lets Await siphon events into waiting without
// ever running a handler out of turn.
func (mx *MX) dispatchOne(e *Event) {
	switch e.kind {
	case evDataReady:
		c := mx.cx.fds.get(e.fd)
		if c == nil || c.Handler == nil {
			return
		}
		data := append([]byte(nil), c.Ingress.Bytes()...)
		c.Ingress.Reset()
		c.Handler(mx.cx, e.fd, data)

	case evMessage:
		if h, ok := mx.subs.lookup(e.msgType); ok {
			h(mx, e.fd, Frame{Type: e.msgType, Version: e.version, Payload: e.payload})
		}
		// No subscriber for this type: the message is dropped silently.

	case evTimerFired:
		// AwaitDeadline timers are only ever consumed from inside an
		// in-progress Await call, which removes its own timer before it
		// could otherwise reach here; a UserTimer is the only kind this
		// loop expects to see.
		if e.timer.Category == CategoryUserTimer && e.timer.Callback != nil {
			e.timer.Callback(mx.cx)
		}

	case evAccepted:
		if h := mx.cx.onConnect; h != nil {
			h(mx.cx, e.fd)
		}

	case evDisconnect:
		if h := mx.cx.onDisconnect; h != nil {
			h(mx.cx, e.fd, e.origin)
		}

	case evError:
		if h := mx.cx.onError; h != nil {
			h(mx.cx, e.fd, e.origin, e.err)
		}
	}
}
