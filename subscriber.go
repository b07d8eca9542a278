package cxmx

// MessageHandler is invoked for every decoded Message whose type
// matches a subscription. Handlers capture their own state via
// closure rather than an opaque user-data pointer.
type MessageHandler func(mx *MX, fd int, msg Frame)

// SubscriberTable maps message type to at most one handler. Adding a
// subscription for a type that already has one replaces it.
type SubscriberTable struct {
	subs map[uint32]MessageHandler
}

func newSubscriberTable() *SubscriberTable {
	return &SubscriberTable{subs: make(map[uint32]MessageHandler)}
}

// Subscribe installs handler for messages of the given type,
// replacing any existing subscription.
func (t *SubscriberTable) Subscribe(msgType uint32, handler MessageHandler) {
	t.subs[msgType] = handler
}

// Drop removes the subscription for msgType, if any.
func (t *SubscriberTable) Drop(msgType uint32) {
	delete(t.subs, msgType)
}

// lookup returns the handler for msgType, if present.
func (t *SubscriberTable) lookup(msgType uint32) (MessageHandler, bool) {
	h, ok := t.subs[msgType]
	return h, ok
}
