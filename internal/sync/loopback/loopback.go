// ABOUTME: In-memory paired transport providing both direct and queued channels.
// ABOUTME: Lets two devices in one process talk without Redis or Charm.
package loopback

import (
	"context"
	"sync"

	fitsync "github.com/harperreed/fitcore/internal/sync"
)

// End is one side of a pair. It is a DirectChannel and a QueuedChannel.
type End struct {
	mu      sync.Mutex
	peer    *End
	online  bool
	handler func([]byte)
	inbox   [][]byte
	sent    int
}

// NewPair returns two connected ends, both offline until Listen is called.
func NewPair() (*End, *End) {
	a, b := &End{}, &End{}
	a.peer, b.peer = b, a
	return a, b
}

// Listen registers the inbound handler and brings this end online.
func (e *End) Listen(fn func([]byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = fn
	e.online = true
}

// SetOnline toggles reachability of this end as seen by its peer.
func (e *End) SetOnline(online bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online = online
}

// Reachable reports whether the peer is online.
func (e *End) Reachable(context.Context) bool {
	_, ok := e.peer.target()
	return ok
}

// Send delivers raw to the peer synchronously.
func (e *End) Send(_ context.Context, raw []byte) error {
	fn, ok := e.peer.target()
	if !ok {
		return fitsync.ErrUnreachable
	}
	e.mu.Lock()
	e.sent++
	e.mu.Unlock()
	fn(append([]byte(nil), raw...))
	return nil
}

// Enqueue stores raw in the peer's inbox until the peer drains it.
func (e *End) Enqueue(_ context.Context, raw []byte) error {
	p := e.peer
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbox = append(p.inbox, append([]byte(nil), raw...))
	return nil
}

// Drain hands every queued message to the handler in arrival order.
func (e *End) Drain(context.Context) (int, error) {
	e.mu.Lock()
	msgs := e.inbox
	e.inbox = nil
	fn := e.handler
	e.mu.Unlock()
	if fn == nil {
		e.mu.Lock()
		e.inbox = append(msgs, e.inbox...)
		e.mu.Unlock()
		return 0, nil
	}
	for _, raw := range msgs {
		fn(raw)
	}
	return len(msgs), nil
}

// Pending returns the number of queued messages waiting for this end.
func (e *End) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inbox)
}

// Sent returns how many direct messages this end delivered.
func (e *End) Sent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sent
}

func (e *End) target() (func([]byte), bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.online || e.handler == nil {
		return nil, false
	}
	return e.handler, true
}
