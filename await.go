package cxmx

// AwaitResult reports the outcome of a synchronous Await call.
// When Await returns a nil error, exactly one of Delivered or
// TimedOut is true; when it returns an error, both are false.
type AwaitResult struct {
	Delivered bool
	TimedOut  bool
	Version   uint32
	Payload   []byte
}

// Await blocks the calling goroutine (by looping the reactor itself,
// not by actually parking a goroutine — cxmx has only the one) until
// a Message of msgType arrives on fd, or deadline (absolute
// wall-clock seconds) passes, whichever comes first. Events that
// don't match are not lost: they're appended to pending, where Run's
// normal dispatch loop delivers them afterward in arrival order. No
// handler runs during an Await call; only the matching message or the
// timeout short-circuits it.
func (mx *MX) Await(fd int, msgType uint32, deadline float64) (AwaitResult, error) {
	handle := mx.cx.timers.insert(deadline, CategoryAwaitDeadline, nil)

	for {
		if mx.waiting.Len() == 0 {
			evs, done, err := mx.collectOnce()
			if err != nil {
				mx.cx.timers.removeByHandle(handle)
				return AwaitResult{}, err
			}
			if done {
				mx.cx.timers.removeByHandle(handle)
				return AwaitResult{}, newf("cxmx: await on fd %d: reactor has no remaining work", fd)
			}
			for _, e := range evs {
				mx.waiting.PushBack(e)
			}
			continue
		}

		front := mx.waiting.Front()
		mx.waiting.Remove(front)
		e := front.Value.(*Event)

		if e.kind == evMessage && e.fd == fd && e.msgType == msgType {
			mx.cx.timers.removeByHandle(handle)
			return AwaitResult{Delivered: true, Version: e.version, Payload: e.payload}, nil
		}
		if e.kind == evTimerFired && e.timer.Handle == handle {
			return AwaitResult{TimedOut: true}, nil
		}

		mx.pending.PushBack(e)
	}
}
