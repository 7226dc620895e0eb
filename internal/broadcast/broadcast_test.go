package broadcast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/pose"
)

func TestMessageCarriesPose(t *testing.T) {
	stamp := time.Unix(12, 345)
	m := NewMessage(3, pose.New(common.NewVec2(1.5, -2), 7), stamp)
	assert.Equal(t, 3, m.ID)
	assert.Equal(t, stamp, m.Time())

	p := m.Pose()
	assert.Equal(t, 1.5, p.Position.X)
	assert.Equal(t, -2.0, p.Position.Y)
	assert.InDelta(t, 7-common.FullTurn, p.Yaw(), 1e-12)
}

func TestEncodeIsDeterministic(t *testing.T) {
	m := Message{ID: 1, X: 0.25, Y: -1, Yaw: 3, Stamp: 99}
	a, err := Encode(m)
	require.NoError(t, err)
	b, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	got, err := Decode(a)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)

	unknown, err := cbor.Marshal(map[int]int{1: 2, 9: 3})
	require.NoError(t, err)
	_, err = Decode(unknown)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsNonFinite(t *testing.T) {
	for name, m := range map[string]Message{
		"nan x":    {ID: 1, X: math.NaN()},
		"inf y":    {ID: 1, Y: math.Inf(-1)},
		"inf yaw":  {ID: 1, Yaw: math.Inf(1)},
		"nan both": {ID: 1, X: math.NaN(), Yaw: math.Inf(1)},
	} {
		t.Run(name, func(t *testing.T) {
			frame, err := Encode(m)
			require.NoError(t, err)
			_, err = Decode(frame)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestBusDeliversToOthers(t *testing.T) {
	bus := NewBus()
	a, b, c := bus.Endpoint(4), bus.Endpoint(4), bus.Endpoint(4)
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, Message{ID: 0, X: 1}))

	for _, e := range []*Endpoint{b, c} {
		m, err := e.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, m.ID)
		assert.Equal(t, 1.0, m.X)
	}

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err := a.Recv(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBusRecvRejectsNonFinite(t *testing.T) {
	bus := NewBus()
	a, b := bus.Endpoint(4), bus.Endpoint(4)
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, Message{ID: 0, X: math.NaN(), Yaw: math.Inf(1)}))
	require.NoError(t, a.Send(ctx, Message{ID: 0, X: 2, Yaw: 1}))

	_, err := b.Recv(ctx)
	assert.ErrorIs(t, err, ErrMalformed)
	m, err := b.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, m.X)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus()
	a, b := bus.Endpoint(2), bus.Endpoint(2)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Send(ctx, Message{ID: i}))
	}
	assert.Equal(t, 3, b.Dropped())

	m, err := b.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, m.ID)
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	a, b := bus.Endpoint(1), bus.Endpoint(1)
	require.NoError(t, b.Close())

	_, err := b.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Send(context.Background(), Message{}), ErrClosed)
	assert.NoError(t, a.Send(context.Background(), Message{}))
	assert.NoError(t, b.Close())
}

func TestUDPTransportRoundTrip(t *testing.T) {
	rx, err := ListenUDP("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer rx.Close()

	tx, err := ListenUDP("127.0.0.1:0", []string{rx.LocalAddr().String()})
	require.NoError(t, err)
	defer tx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sent := NewMessage(2, pose.New(common.NewVec2(3, 4), 1), time.Unix(5, 0))
	require.NoError(t, tx.Send(ctx, sent))

	got, err := rx.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, sent, got)
}

func TestUDPRecvHonoursContext(t *testing.T) {
	rx, err := ListenUDP("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer rx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = rx.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListenUDPRejectsBadPeer(t *testing.T) {
	_, err := ListenUDP("127.0.0.1:0", []string{"not an address"})
	assert.Error(t, err)
}
