package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

const (
	maxFrameSize = 1024
	pollInterval = 100 * time.Millisecond
)

// UDPTransport sends every broadcast to a fixed list of peers and receives
// on a single socket.
type UDPTransport struct {
	conn *net.UDPConn

	mu    sync.RWMutex
	peers []*net.UDPAddr
}

var _ Transport = (*UDPTransport)(nil)

// ListenUDP opens a socket on listen and resolves every peer address.
func ListenUDP(listen string, peers []string) (*UDPTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen address %q: %w", listen, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", listen, err)
	}
	t := &UDPTransport{conn: conn}
	for _, p := range peers {
		if err := t.AddPeer(p); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return t, nil
}

// AddPeer adds a destination for future broadcasts.
func (t *UDPTransport) AddPeer(addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve peer %q: %w", addr, err)
	}
	t.mu.Lock()
	t.peers = append(t.peers, raddr)
	t.mu.Unlock()
	return nil
}

// LocalAddr returns the address the transport receives on.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Send writes m to every peer. A peer that cannot be reached does not stop
// delivery to the others; the first error is returned.
func (t *UDPTransport) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	t.mu.RLock()
	peers := t.peers
	t.mu.RUnlock()

	var firstErr error
	for _, p := range peers {
		if _, err := t.conn.WriteToUDP(frame, p); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to send to %s: %w", p, err)
		}
	}
	return firstErr
}

// Recv waits for the next frame. The socket is polled so that a done ctx is
// noticed within pollInterval.
func (t *UDPTransport) Recv(ctx context.Context) (Message, error) {
	buf := make([]byte, maxFrameSize)
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		if err := t.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return Message{}, err
		}
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return Message{}, ErrClosed
			}
			return Message{}, err
		}
		return Decode(buf[:n])
	}
}

// Close releases the socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
