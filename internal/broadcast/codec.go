// Package broadcast carries pose broadcasts between vehicles.
package broadcast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fxamacker/cbor/v2"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/pose"
)

// ErrMalformed wraps frames that do not decode to a Message.
var ErrMalformed = errors.New("malformed pose broadcast")

// ErrClosed is returned by transports that have been closed.
var ErrClosed = errors.New("transport closed")

// Message is one vehicle's pose as put on the wire.
type Message struct {
	ID    int     `cbor:"1,keyasint"`
	X     float64 `cbor:"2,keyasint"`
	Y     float64 `cbor:"3,keyasint"`
	Yaw   float64 `cbor:"4,keyasint"`
	Stamp int64   `cbor:"5,keyasint"` // unix nanoseconds
}

// NewMessage builds the broadcast of p by vehicle id at stamp.
func NewMessage(id int, p pose.Pose, stamp time.Time) Message {
	return Message{
		ID:    id,
		X:     p.Position.X,
		Y:     p.Position.Y,
		Yaw:   p.Yaw(),
		Stamp: stamp.UnixNano(),
	}
}

// Pose returns the pose carried by m.
func (m Message) Pose() pose.Pose {
	return pose.New(common.NewVec2(m.X, m.Y), m.Yaw)
}

// Time returns the send time of m.
func (m Message) Time() time.Time {
	return time.Unix(0, m.Stamp)
}

// encMode uses Core Deterministic Encoding so equal messages produce equal frames.
var encMode cbor.EncMode

// decMode rejects unknown fields and duplicate keys.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("broadcast: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("broadcast: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes m into a frame.
func Encode(m Message) ([]byte, error) {
	return encMode.Marshal(m)
}

// Decode parses a frame produced by Encode. Frames carrying a non-finite
// coordinate or yaw are rejected.
func Decode(frame []byte) (Message, error) {
	var m Message
	if err := decMode.Unmarshal(frame, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{{"x", m.X}, {"y", m.Y}, {"yaw", m.Yaw}} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return Message{}, fmt.Errorf("%w: vehicle %d %s is %v", ErrMalformed, m.ID, f.name, f.value)
		}
	}
	return m, nil
}
