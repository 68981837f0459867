package firmware

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/vboard/internal/wire"
)

// fakeHost answers requests with handler until the request stream closes.
func fakeHost(t *testing.T, m wire.Manifest, handler func(wire.Request) wire.Response) *Board {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	go func() {
		br := bufio.NewReader(reqR)
		for {
			req, err := wire.ReadRequest(br)
			if err != nil {
				respW.Close()
				return
			}
			if err := wire.WriteResponse(respW, handler(req)); err != nil {
				return
			}
		}
	}()
	b := newBoard(m, reqW, respR)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestPinRoundTrip(t *testing.T) {
	pins := map[uint16]uint32{}
	b := fakeHost(t, wire.Manifest{}, func(req wire.Request) wire.Response {
		switch req.Op {
		case wire.OpDigitalWrite, wire.OpAnalogWrite:
			pins[req.Device] = req.Arg
			return wire.Response{}
		case wire.OpDigitalRead, wire.OpAnalogRead:
			return wire.Response{Value: pins[req.Device]}
		}
		return wire.Response{Status: wire.StatusBadRequest}
	})

	require.NoError(t, b.DigitalWrite(2, true))
	v, err := b.DigitalRead(2)
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, b.AnalogWrite(5, 1023))
	a, err := b.AnalogRead(5)
	require.NoError(t, err)
	assert.Equal(t, uint16(1023), a)
}

func TestStatusErrors(t *testing.T) {
	b := fakeHost(t, wire.Manifest{}, func(req wire.Request) wire.Response {
		if req.Device == 1 {
			return wire.Response{Status: wire.StatusDenied}
		}
		return wire.Response{Status: wire.StatusNoDevice}
	})

	_, err := b.DigitalRead(1)
	assert.ErrorIs(t, err, ErrDenied)
	err = b.DigitalWrite(9, true)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestSerialFlushThreshold(t *testing.T) {
	var sent []byte
	m := wire.Manifest{Uarts: []wire.Uart{{BaudRate: 9600, RxBufferLength: 64, TxBufferLength: 64, FlushThreshold: 4}}}
	b := fakeHost(t, m, func(req wire.Request) wire.Response {
		if req.Op == wire.OpUartWrite {
			sent = append(sent, req.Payload...)
			return wire.Response{Value: uint32(len(req.Payload))}
		}
		return wire.Response{Status: wire.StatusBadRequest}
	})

	s, err := b.Serial(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(9600), s.BaudRate())

	_, err = s.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Empty(t, sent)

	_, err = s.Write([]byte("cd"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(sent))

	_, err = b.Serial(1)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestSerialFlushKeepsRejectedBytes(t *testing.T) {
	accept := 2
	m := wire.Manifest{Uarts: []wire.Uart{{TxBufferLength: 2}}}
	b := fakeHost(t, m, func(req wire.Request) wire.Response {
		n := accept
		if n > len(req.Payload) {
			n = len(req.Payload)
		}
		accept -= n
		return wire.Response{Value: uint32(n)}
	})

	s, err := b.Serial(0)
	require.NoError(t, err)
	_, err = s.Write([]byte("xyz"))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Flush(), ErrTxFull)
	assert.Equal(t, "z", string(s.pending))

	accept = 8
	assert.NoError(t, s.Flush())
	assert.Empty(t, s.pending)
}

func TestSerialRead(t *testing.T) {
	queued := []byte("HELLO")
	m := wire.Manifest{Uarts: []wire.Uart{{RxBufferLength: 64}}}
	b := fakeHost(t, m, func(req wire.Request) wire.Response {
		switch req.Op {
		case wire.OpUartAvailable:
			return wire.Response{Value: uint32(len(queued))}
		case wire.OpUartRead:
			n := copy(make([]byte, req.Arg), queued)
			out := queued[:n]
			queued = queued[n:]
			return wire.Response{Value: uint32(n), Payload: out}
		}
		return wire.Response{Status: wire.StatusBadRequest}
	})

	s, err := b.Serial(0)
	require.NoError(t, err)
	n, err := s.Available()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 3)
	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "HEL", string(buf[:n]))

	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "LO", string(buf[:n]))

	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFrameBufferLookup(t *testing.T) {
	var geo wire.Geometry
	m := wire.Manifest{FrameBuffers: []wire.FrameBuffer{{Key: 0, Input: true}}}
	b := fakeHost(t, m, func(req wire.Request) wire.Response {
		if req.Op == wire.OpFrameGeometry {
			geo, _ = wire.DecodeGeometry(req.Payload)
		}
		return wire.Response{}
	})

	fb, err := b.FrameBuffer(0)
	require.NoError(t, err)
	assert.True(t, fb.Input())
	require.NoError(t, fb.Begin(Geometry{Width: 2, Height: 2, Freq: 10}))
	assert.Equal(t, uint16(2), geo.Width)
	assert.Equal(t, uint16(2), fb.Geometry().Height)

	_, err = b.FrameBuffer(3)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestSDCardStaysInRoot(t *testing.T) {
	root := t.TempDir()
	b := newBoard(wire.Manifest{SDCards: []wire.SDCard{{ChipSelect: 10, Root: root}}}, nopWriteCloser{}, io.NopCloser(nil))

	card, err := b.SD(10)
	require.NoError(t, err)

	f, err := card.Create("../../logs/boot.txt")
	require.NoError(t, err)
	_, err = f.WriteString("ok")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(root, "logs", "boot.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))

	_, err = b.SD(11)
	assert.ErrorIs(t, err, ErrNoDevice)
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
