package sink

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/opd-ai/videoeffector/capture"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

var (
	// ErrShortFrame indicates a reassembled payload without a complete frame header.
	ErrShortFrame = errors.New("frame payload too short")

	// ErrUnexpectedSSRC indicates a packet from a different stream.
	ErrUnexpectedSSRC = errors.New("unexpected SSRC")
)

// Reassembler rebuilds frames written by RTPSink. Packets must arrive in
// order. A frame only starts on a packet carrying the start-of-frame bit; a
// gap, a new timestamp or a missing start discards the frame, and the rest of
// a damaged frame is skipped.
type Reassembler struct {
	ssrc    uint32
	hasSSRC bool

	timestamp uint32
	nextSeq   uint16
	partial   []byte
	active    bool
	skipping  bool

	dropped uint64
}

// NewReassembler creates an empty reassembler that locks onto the first SSRC
// it sees.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Push consumes one marshalled RTP packet. It returns the frame once the
// packet carrying the marker bit completes it, and nil otherwise.
func (r *Reassembler) Push(data []byte) (*capture.ByteBufferFrame, error) {
	packet := &rtp.Packet{}
	if err := packet.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("unmarshal RTP packet: %w", err)
	}

	if !r.hasSSRC {
		r.ssrc = packet.SSRC
		r.hasSSRC = true
	} else if packet.SSRC != r.ssrc {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrUnexpectedSSRC, r.ssrc, packet.SSRC)
	}

	if len(packet.Payload) == 0 {
		return nil, fmt.Errorf("%w: missing payload descriptor", ErrShortFrame)
	}
	startOfFrame := packet.Payload[0]&startOfFrameBit != 0
	chunk := packet.Payload[1:]

	if startOfFrame {
		if r.active {
			r.discard("frame incomplete")
		}
		r.skipping = false
		r.active = true
		r.timestamp = packet.Timestamp
		r.partial = r.partial[:0]
	} else {
		switch {
		case r.skipping:
			if packet.Timestamp != r.timestamp {
				r.timestamp = packet.Timestamp
				r.discard("missing start of frame")
			}
			r.skipping = !packet.Marker
			return nil, nil
		case !r.active:
			r.timestamp = packet.Timestamp
			r.discard("missing start of frame")
			r.skipping = !packet.Marker
			return nil, nil
		case packet.Timestamp != r.timestamp || packet.SequenceNumber != r.nextSeq:
			r.discard("gap in sequence")
			r.timestamp = packet.Timestamp
			r.skipping = !packet.Marker
			return nil, nil
		}
	}
	r.partial = append(r.partial, chunk...)
	r.nextSeq = packet.SequenceNumber + 1

	if !packet.Marker {
		return nil, nil
	}

	r.active = false
	return decodeFrame(r.partial, packet.Timestamp)
}

// Dropped returns how many frames were discarded incomplete.
func (r *Reassembler) Dropped() uint64 {
	return r.dropped
}

func (r *Reassembler) discard(reason string) {
	r.dropped++
	r.active = false
	logrus.WithFields(logrus.Fields{
		"function":  "Reassembler.Push",
		"timestamp": r.timestamp,
		"reason":    reason,
	}).Debug("Discarding partial frame")
}

// decodeFrame parses the sink framing. The timestamp is converted back from
// the 90 kHz clock, so sub-clock precision is lost.
func decodeFrame(payload []byte, clock uint32) (*capture.ByteBufferFrame, error) {
	if len(payload) < frameHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(payload))
	}
	return &capture.ByteBufferFrame{
		Width:     int(binary.BigEndian.Uint16(payload[0:])),
		Height:    int(binary.BigEndian.Uint16(payload[2:])),
		Rotation:  int(binary.BigEndian.Uint16(payload[4:])),
		Format:    capture.PixelFormat(payload[6]),
		Data:      append([]byte(nil), payload[frameHeaderSize:]...),
		Timestamp: int64(clock) * 1000000 / ClockRate * 1000,
	}, nil
}
