package broadcast

import (
	"context"
	"sync"
)

// Transport moves pose broadcasts between vehicles. Send delivers to every
// other vehicle and must not block on slow receivers.
type Transport interface {
	Send(ctx context.Context, m Message) error
	Recv(ctx context.Context) (Message, error)
	Close() error
}

// Bus is an in-process broadcast medium. Frames are encoded on send and
// decoded on receive like on a real link.
type Bus struct {
	mu        sync.Mutex
	endpoints map[*Endpoint]struct{}
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{endpoints: make(map[*Endpoint]struct{})}
}

// Endpoint attaches a new receiver buffering up to size frames. Frames
// arriving at a full endpoint are dropped.
func (b *Bus) Endpoint(size int) *Endpoint {
	if size < 1 {
		size = 1
	}
	e := &Endpoint{bus: b, frames: make(chan []byte, size)}
	b.mu.Lock()
	b.endpoints[e] = struct{}{}
	b.mu.Unlock()
	return e
}

func (b *Bus) deliver(from *Endpoint, frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for e := range b.endpoints {
		if e == from {
			continue
		}
		select {
		case e.frames <- frame:
		default:
			e.mu.Lock()
			e.dropped++
			e.mu.Unlock()
		}
	}
}

func (b *Bus) detach(e *Endpoint) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.endpoints[e]; !ok {
		return false
	}
	delete(b.endpoints, e)
	close(e.frames)
	return true
}

// Endpoint is one vehicle's attachment to a Bus.
type Endpoint struct {
	bus    *Bus
	frames chan []byte

	mu      sync.Mutex
	dropped int
	closed  bool
}

var _ Transport = (*Endpoint)(nil)

// Send broadcasts m to every other endpoint.
func (e *Endpoint) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	e.bus.deliver(e, frame)
	return nil
}

// Recv blocks until a frame arrives, ctx is done or the endpoint is closed.
func (e *Endpoint) Recv(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case frame, ok := <-e.frames:
		if !ok {
			return Message{}, ErrClosed
		}
		return Decode(frame)
	}
}

// Dropped returns the number of frames lost to a full buffer.
func (e *Endpoint) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Close detaches the endpoint. Pending Recv calls return ErrClosed.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.bus.detach(e)
	return nil
}
