package sink

import (
	"errors"
	"testing"
	"time"

	"github.com/opd-ai/videoeffector/capture"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// packetRecorder captures every write as a separate datagram.
type packetRecorder struct {
	packets [][]byte
	err     error
}

func (p *packetRecorder) Write(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	p.packets = append(p.packets, append([]byte(nil), b...))
	return len(b), nil
}

type countingReturner struct {
	returned int
}

func (c *countingReturner) ReturnTextureFrame() { c.returned++ }

func testFrame(size int, ts time.Duration) capture.ByteBufferFrame {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	return capture.ByteBufferFrame{
		Data:      data,
		Format:    capture.FormatNV21,
		Width:     8,
		Height:    6,
		Rotation:  270,
		Timestamp: int64(ts),
	}
}

func TestNewRTPSink_Validation(t *testing.T) {
	s, err := NewRTPSink(nil, nil)
	assert.ErrorIs(t, err, ErrNilWriter)
	assert.Nil(t, s)

	s, err = NewRTPSink(&packetRecorder{}, nil, WithMTU(rtpHeaderSize+descriptorSize+frameHeaderSize))
	assert.ErrorIs(t, err, ErrMTUTooSmall)
	assert.Nil(t, s)

	s, err = NewRTPSink(&packetRecorder{}, nil)
	require.NoError(t, err)
	assert.NotZero(t, s.SSRC())
}

func TestRTPSink_PacketizeSinglePacket(t *testing.T) {
	s, err := NewRTPSink(&packetRecorder{}, nil, WithSSRC(0xCAFE), WithPayloadType(100))
	require.NoError(t, err)

	frame := testFrame(6, time.Second)
	packets, err := s.Packetize(frame)
	require.NoError(t, err)
	require.Len(t, packets, 1)

	p := packets[0]
	assert.Equal(t, uint8(2), p.Version)
	assert.True(t, p.Marker)
	assert.Equal(t, uint8(100), p.PayloadType)
	assert.Equal(t, uint32(0xCAFE), p.SSRC)
	assert.Equal(t, uint32(ClockRate), p.Timestamp)
	assert.Equal(t, []byte{startOfFrameBit, 0, 8, 0, 6, 1, 14, byte(capture.FormatNV21), 0, 1, 2, 3, 4, 5}, p.Payload)
}

func TestRTPSink_PacketizeSplitsOnMTU(t *testing.T) {
	s, err := NewRTPSink(&packetRecorder{}, nil, WithMTU(32))
	require.NoError(t, err)

	// 7 header bytes + 50 pixel bytes in 19-byte chunks behind the descriptor.
	packets, err := s.Packetize(testFrame(50, time.Second))
	require.NoError(t, err)
	require.Len(t, packets, 3)

	for i, p := range packets {
		assert.Equal(t, i == len(packets)-1, p.Marker, "packet %d", i)
		assert.Equal(t, i == 0, p.Payload[0]&startOfFrameBit != 0, "packet %d", i)
		assert.Equal(t, packets[0].Timestamp, p.Timestamp)
		assert.Equal(t, packets[0].SequenceNumber+uint16(i), p.SequenceNumber)

		data, err := p.Marshal()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(data), 32)
	}
	assert.Len(t, packets[2].Payload, descriptorSize+19)
}

func TestRTPSink_PacketizeEmptyFrame(t *testing.T) {
	s, err := NewRTPSink(&packetRecorder{}, nil)
	require.NoError(t, err)

	_, err = s.Packetize(capture.ByteBufferFrame{})
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestRTPSink_FramesSurviveReassembly(t *testing.T) {
	w := &packetRecorder{}
	s, err := NewRTPSink(w, nil, WithMTU(32), WithSSRC(42))
	require.NoError(t, err)

	frame := testFrame(50, 2*time.Second)
	s.OnByteBufferFrameCaptured(frame)
	require.Len(t, w.packets, 3)

	r := NewReassembler()
	var got *capture.ByteBufferFrame
	for i, data := range w.packets {
		got, err = r.Push(data)
		require.NoError(t, err)
		if i < len(w.packets)-1 {
			assert.Nil(t, got)
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, frame, *got)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Frames)
	assert.Equal(t, uint64(3), stats.Packets)
	assert.Equal(t, uint64(3*(rtpHeaderSize+descriptorSize)+57), stats.Bytes)
	assert.Equal(t, uint32(2*ClockRate), stats.LastTimestamp)
	assert.Zero(t, stats.WriteErrors)
}

func TestRTPSink_PacketizeRejectsOutOfRangeFields(t *testing.T) {
	s, err := NewRTPSink(&packetRecorder{}, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*capture.ByteBufferFrame)
	}{
		{"wide", func(f *capture.ByteBufferFrame) { f.Width = 70000 }},
		{"negative height", func(f *capture.ByteBufferFrame) { f.Height = -1 }},
		{"negative rotation", func(f *capture.ByteBufferFrame) { f.Rotation = -90 }},
		{"huge rotation", func(f *capture.ByteBufferFrame) { f.Rotation = 1 << 16 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := testFrame(6, 0)
			tt.mutate(&frame)
			_, err := s.Packetize(frame)
			assert.ErrorIs(t, err, ErrFrameOutOfRange)
		})
	}

	frame := testFrame(6, 0)
	frame.Width = maxFrameField
	_, err = s.Packetize(frame)
	assert.NoError(t, err)
}

func TestRTPSink_WriteErrorIsCounted(t *testing.T) {
	w := &packetRecorder{err: errors.New("connection refused")}
	s, err := NewRTPSink(w, nil)
	require.NoError(t, err)

	assert.ErrorContains(t, s.WriteFrame(testFrame(10, 0)), "connection refused")

	s.OnByteBufferFrameCaptured(testFrame(10, 0))
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.WriteErrors)
	assert.Zero(t, stats.Frames)
}

func TestRTPSink_TextureFramesAreReturned(t *testing.T) {
	returner := &countingReturner{}
	w := &packetRecorder{}
	s, err := NewRTPSink(w, returner)
	require.NoError(t, err)

	s.OnTextureFrameCaptured(capture.TextureFrame{Width: 4, Height: 4, TextureID: 7})
	s.OnTextureFrameCaptured(capture.TextureFrame{Width: 4, Height: 4, TextureID: 7})

	assert.Equal(t, 2, returner.returned)
	assert.Equal(t, uint64(2), s.Stats().TextureFrames)
	assert.Empty(t, w.packets)

	nilReturner, err := NewRTPSink(w, nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() { nilReturner.OnTextureFrameCaptured(capture.TextureFrame{}) })
}

func TestRTPSink_CapturerLifecycle(t *testing.T) {
	s, err := NewRTPSink(&packetRecorder{}, nil)
	require.NoError(t, err)

	s.OnCapturerStarted(false)
	assert.False(t, s.Stats().Started)
	assert.Equal(t, uint64(1), s.Stats().StartFailures)

	s.OnCapturerStarted(true)
	assert.True(t, s.Stats().Started)

	s.OnCapturerStopped()
	stats := s.Stats()
	assert.False(t, stats.Started)
	assert.Equal(t, uint64(1), stats.Stops)
}

func TestToClock(t *testing.T) {
	assert.Equal(t, uint32(0), toClock(0))
	assert.Equal(t, uint32(ClockRate), toClock(int64(time.Second)))
	assert.Equal(t, uint32(3000), toClock(int64(time.Second/30)))
}

// packetsFor packetizes size-byte frames at the given timestamps.
func packetsFor(t *testing.T, s *RTPSink, size int, timestamps ...time.Duration) [][][]byte {
	t.Helper()
	var frames [][][]byte
	for _, ts := range timestamps {
		packets, err := s.Packetize(testFrame(size, ts))
		require.NoError(t, err)
		var raw [][]byte
		for _, p := range packets {
			data, err := p.Marshal()
			require.NoError(t, err)
			raw = append(raw, data)
		}
		frames = append(frames, raw)
	}
	return frames
}

func TestReassembler_DropsFrameWithGap(t *testing.T) {
	s, err := NewRTPSink(&packetRecorder{}, nil, WithMTU(32), WithSSRC(9))
	require.NoError(t, err)

	// 66 bytes + 7 header bytes span four packets.
	frames := packetsFor(t, s, 66, time.Second, 2*time.Second)
	require.Len(t, frames[0], 4)

	r := NewReassembler()
	for i, data := range frames[0] {
		if i == 1 {
			continue
		}
		got, err := r.Push(data)
		require.NoError(t, err)
		assert.Nil(t, got, "packet %d", i)
	}
	assert.Equal(t, uint64(1), r.Dropped())

	var got *capture.ByteBufferFrame
	for _, data := range frames[1] {
		got, err = r.Push(data)
		require.NoError(t, err)
	}
	require.NotNil(t, got)
	assert.Equal(t, testFrame(66, 2*time.Second), *got)
}

func TestReassembler_DropsFrameMissingItsFirstPacket(t *testing.T) {
	s, err := NewRTPSink(&packetRecorder{}, nil, WithMTU(32), WithSSRC(9))
	require.NoError(t, err)

	frames := packetsFor(t, s, 66, time.Second, 2*time.Second, 3*time.Second)

	r := NewReassembler()
	var got *capture.ByteBufferFrame
	for _, data := range frames[0] {
		got, err = r.Push(data)
		require.NoError(t, err)
	}
	require.NotNil(t, got)

	for i, data := range frames[1][1:] {
		got, err = r.Push(data)
		require.NoError(t, err)
		assert.Nil(t, got, "packet %d", i+1)
	}
	assert.Equal(t, uint64(1), r.Dropped())

	for _, data := range frames[2] {
		got, err = r.Push(data)
		require.NoError(t, err)
	}
	require.NotNil(t, got)
	assert.Equal(t, testFrame(66, 3*time.Second), *got)
	assert.Equal(t, uint64(1), r.Dropped())
}

func TestReassembler_FirstPacketLostBeforeAnyFrame(t *testing.T) {
	s, err := NewRTPSink(&packetRecorder{}, nil, WithMTU(32))
	require.NoError(t, err)

	frames := packetsFor(t, s, 50, time.Second, 2*time.Second)

	r := NewReassembler()
	for _, data := range frames[0][1:] {
		got, err := r.Push(data)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, uint64(1), r.Dropped())

	var got *capture.ByteBufferFrame
	for _, data := range frames[1] {
		got, err = r.Push(data)
		require.NoError(t, err)
	}
	require.NotNil(t, got)
	assert.Equal(t, int64(2*time.Second), got.Timestamp)
}

func TestReassembler_DropsIncompleteFrameOnNewTimestamp(t *testing.T) {
	s, err := NewRTPSink(&packetRecorder{}, nil, WithMTU(32))
	require.NoError(t, err)

	frames := packetsFor(t, s, 50, time.Second, 2*time.Second)

	r := NewReassembler()
	got, err := r.Push(frames[0][0])
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, data := range frames[1] {
		got, err = r.Push(data)
		require.NoError(t, err)
	}
	require.NotNil(t, got)
	assert.Equal(t, int64(2*time.Second), got.Timestamp)
	assert.Equal(t, uint64(1), r.Dropped())
}

func TestReassembler_Errors(t *testing.T) {
	r := NewReassembler()

	_, err := r.Push([]byte{0x80})
	assert.Error(t, err)

	short := &rtp.Packet{
		Header:  rtp.Header{Version: 2, Marker: true, SSRC: 1, Timestamp: 10},
		Payload: []byte{startOfFrameBit, 0, 1, 0},
	}
	data, err := short.Marshal()
	require.NoError(t, err)
	_, err = r.Push(data)
	assert.ErrorIs(t, err, ErrShortFrame)

	empty := &rtp.Packet{Header: rtp.Header{Version: 2, Marker: true, SSRC: 1, Timestamp: 15}}
	data, err = empty.Marshal()
	require.NoError(t, err)
	_, err = r.Push(data)
	assert.ErrorIs(t, err, ErrShortFrame)

	other := &rtp.Packet{
		Header:  rtp.Header{Version: 2, Marker: true, SSRC: 2, Timestamp: 20},
		Payload: make([]byte, descriptorSize+frameHeaderSize),
	}
	data, err = other.Marshal()
	require.NoError(t, err)
	_, err = r.Push(data)
	assert.ErrorIs(t, err, ErrUnexpectedSSRC)
}
