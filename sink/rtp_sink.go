// Package sink provides a capture.Observer that ships raw captured frames
// over RTP.
//
// Each byte-buffer frame is prefixed with a small header and split into RTP
// packets (github.com/pion/rtp) sharing one 90 kHz timestamp, with the marker
// bit on the last packet. Every payload opens with a one-byte descriptor whose
// S bit marks the first packet of a frame. Packets are written to an io.Writer, typically a
// connected UDP socket:
//
//	conn, _ := net.Dial("udp", "127.0.0.1:5004")
//	s, err := sink.NewRTPSink(conn, helper)
//
// Texture frames cannot be read from the CPU; the sink counts them and hands
// the texture straight back to the capture source.
package sink

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/opd-ai/videoeffector/capture"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

const (
	// DefaultPayloadType is the dynamic payload type used for raw video.
	DefaultPayloadType = 96
	// DefaultMTU bounds the marshalled size of each packet.
	DefaultMTU = 1200
	// ClockRate is the RTP video clock.
	ClockRate = 90000

	rtpHeaderSize   = 12
	descriptorSize  = 1
	frameHeaderSize = 7 // width(2) height(2) rotation(2) format(1)

	startOfFrameBit = 0x10 // S bit
	maxFrameField   = 0xFFFF
)

var (
	// ErrNilWriter indicates the sink was built without a destination.
	ErrNilWriter = errors.New("writer cannot be nil")

	// ErrMTUTooSmall indicates an MTU that leaves no room for payload.
	ErrMTUTooSmall = errors.New("mtu too small")

	// ErrEmptyFrame indicates a frame without pixel data.
	ErrEmptyFrame = errors.New("frame data cannot be empty")

	// ErrFrameOutOfRange indicates dimensions or rotation the frame header
	// cannot carry.
	ErrFrameOutOfRange = errors.New("frame field out of range")
)

// TextureReturner takes texture frames back from a consumer.
type TextureReturner interface {
	ReturnTextureFrame()
}

// Option customizes an RTPSink.
type Option func(*RTPSink)

// WithPayloadType sets the RTP payload type.
func WithPayloadType(pt uint8) Option {
	return func(s *RTPSink) { s.payloadType = pt }
}

// WithMTU sets the maximum marshalled packet size.
func WithMTU(mtu int) Option {
	return func(s *RTPSink) { s.mtu = mtu }
}

// WithSSRC fixes the synchronization source instead of picking a random one.
func WithSSRC(ssrc uint32) Option {
	return func(s *RTPSink) { s.ssrc = ssrc }
}

// Stats is a snapshot of RTPSink counters.
type Stats struct {
	Started        bool
	StartFailures  uint64
	Stops          uint64
	Frames         uint64
	TextureFrames  uint64
	Packets        uint64
	Bytes          uint64
	WriteErrors    uint64
	LastTimestamp  uint32
	LastSequenceNo uint16
}

// RTPSink is the consumer end of a capture pipeline.
type RTPSink struct {
	writer   io.Writer
	returner TextureReturner

	payloadType uint8
	mtu         int
	ssrc        uint32

	mu             sync.Mutex
	started        bool
	sequenceNumber uint16
	lastTimestamp  uint32

	startFailures atomic.Uint64
	stops         atomic.Uint64
	frames        atomic.Uint64
	textureFrames atomic.Uint64
	packets       atomic.Uint64
	bytes         atomic.Uint64
	writeErrors   atomic.Uint64
}

var _ capture.Observer = (*RTPSink)(nil)

// NewRTPSink creates a sink writing to w. returner may be nil when the
// capturer never produces texture frames.
func NewRTPSink(w io.Writer, returner TextureReturner, opts ...Option) (*RTPSink, error) {
	if w == nil {
		return nil, ErrNilWriter
	}

	s := &RTPSink{
		writer:      w,
		returner:    returner,
		payloadType: DefaultPayloadType,
		mtu:         DefaultMTU,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.mtu <= rtpHeaderSize+descriptorSize+frameHeaderSize {
		return nil, fmt.Errorf("%w: %d", ErrMTUTooSmall, s.mtu)
	}
	if s.ssrc == 0 {
		ssrc, err := randomUint32()
		if err != nil {
			return nil, fmt.Errorf("generate SSRC: %w", err)
		}
		s.ssrc = ssrc
	}
	seq, err := randomUint32()
	if err != nil {
		return nil, fmt.Errorf("generate sequence number: %w", err)
	}
	s.sequenceNumber = uint16(seq)

	logrus.WithFields(logrus.Fields{
		"function":     "NewRTPSink",
		"ssrc":         s.ssrc,
		"payload_type": s.payloadType,
		"mtu":          s.mtu,
	}).Info("RTP sink created")

	return s, nil
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// SSRC returns the synchronization source of the stream.
func (s *RTPSink) SSRC() uint32 { return s.ssrc }

// OnCapturerStarted records whether the capturer came up.
func (s *RTPSink) OnCapturerStarted(success bool) {
	s.mu.Lock()
	s.started = success
	s.mu.Unlock()

	if !success {
		s.startFailures.Inc()
	}
	logrus.WithFields(logrus.Fields{
		"function": "RTPSink.OnCapturerStarted",
		"success":  success,
	}).Info("Capturer started")
}

// OnCapturerStopped records the end of capture.
func (s *RTPSink) OnCapturerStopped() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	s.stops.Inc()
	logrus.WithFields(logrus.Fields{
		"function": "RTPSink.OnCapturerStopped",
	}).Info("Capturer stopped")
}

// OnByteBufferFrameCaptured packetizes and writes the frame.
func (s *RTPSink) OnByteBufferFrameCaptured(frame capture.ByteBufferFrame) {
	if err := s.WriteFrame(frame); err != nil {
		s.writeErrors.Inc()
		logrus.WithFields(logrus.Fields{
			"function":  "RTPSink.OnByteBufferFrameCaptured",
			"timestamp": frame.Timestamp,
			"error":     err.Error(),
		}).Warn("Dropping frame")
	}
}

// OnTextureFrameCaptured counts the frame and returns its texture.
func (s *RTPSink) OnTextureFrameCaptured(frame capture.TextureFrame) {
	s.textureFrames.Inc()

	logrus.WithFields(logrus.Fields{
		"function":   "RTPSink.OnTextureFrameCaptured",
		"texture_id": frame.TextureID,
		"timestamp":  frame.Timestamp,
	}).Debug("Texture frame consumed")

	if s.returner != nil {
		s.returner.ReturnTextureFrame()
	}
}

// WriteFrame packetizes frame and writes every packet.
func (s *RTPSink) WriteFrame(frame capture.ByteBufferFrame) error {
	packets, err := s.Packetize(frame)
	if err != nil {
		return err
	}

	for _, packet := range packets {
		data, err := packet.Marshal()
		if err != nil {
			return fmt.Errorf("marshal RTP packet: %w", err)
		}
		if _, err := s.writer.Write(data); err != nil {
			return fmt.Errorf("write RTP packet: %w", err)
		}
		s.packets.Inc()
		s.bytes.Add(uint64(len(data)))
	}
	s.frames.Inc()
	return nil
}

// Packetize splits frame into RTP packets without writing them.
func (s *RTPSink) Packetize(frame capture.ByteBufferFrame) ([]*rtp.Packet, error) {
	if len(frame.Data) == 0 {
		return nil, ErrEmptyFrame
	}
	if err := checkFrameFields(frame); err != nil {
		return nil, err
	}

	payload := encodeFrame(frame)
	maxPayload := s.mtu - rtpHeaderSize - descriptorSize
	count := (len(payload) + maxPayload - 1) / maxPayload
	timestamp := toClock(frame.Timestamp)

	s.mu.Lock()
	defer s.mu.Unlock()

	packets := make([]*rtp.Packet, 0, count)
	for i := 0; i < count; i++ {
		start := i * maxPayload
		end := start + maxPayload
		if end > len(payload) {
			end = len(payload)
		}
		chunk := make([]byte, descriptorSize+end-start)
		if i == 0 {
			chunk[0] = startOfFrameBit
		}
		copy(chunk[descriptorSize:], payload[start:end])

		packets = append(packets, &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == count-1,
				PayloadType:    s.payloadType,
				SequenceNumber: s.sequenceNumber,
				Timestamp:      timestamp,
				SSRC:           s.ssrc,
			},
			Payload: chunk,
		})
		s.sequenceNumber++
	}
	s.lastTimestamp = timestamp

	return packets, nil
}

// toClock converts a nanosecond capture timestamp to the 90 kHz RTP clock.
func toClock(ns int64) uint32 {
	return uint32(uint64(ns) / 1000 * ClockRate / 1000000)
}

func checkFrameFields(frame capture.ByteBufferFrame) error {
	for _, field := range []struct {
		name  string
		value int
	}{
		{"width", frame.Width},
		{"height", frame.Height},
		{"rotation", frame.Rotation},
	} {
		if field.value < 0 || field.value > maxFrameField {
			return fmt.Errorf("%w: %s %d", ErrFrameOutOfRange, field.name, field.value)
		}
	}
	return nil
}

func encodeFrame(frame capture.ByteBufferFrame) []byte {
	out := make([]byte, frameHeaderSize+len(frame.Data))
	binary.BigEndian.PutUint16(out[0:], uint16(frame.Width))
	binary.BigEndian.PutUint16(out[2:], uint16(frame.Height))
	binary.BigEndian.PutUint16(out[4:], uint16(frame.Rotation))
	out[6] = byte(frame.Format)
	copy(out[frameHeaderSize:], frame.Data)
	return out
}

// Stats returns a snapshot of the sink counters.
func (s *RTPSink) Stats() Stats {
	s.mu.Lock()
	started, ts, seq := s.started, s.lastTimestamp, s.sequenceNumber
	s.mu.Unlock()

	return Stats{
		Started:        started,
		StartFailures:  s.startFailures.Load(),
		Stops:          s.stops.Load(),
		Frames:         s.frames.Load(),
		TextureFrames:  s.textureFrames.Load(),
		Packets:        s.packets.Load(),
		Bytes:          s.bytes.Load(),
		WriteErrors:    s.writeErrors.Load(),
		LastTimestamp:  ts,
		LastSequenceNo: seq - 1,
	}
}
