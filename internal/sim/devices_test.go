package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/vboard/internal/wire"
)

func TestPinPermissions(t *testing.T) {
	d := newDevices(Config{Pins: []PinConfig{
		{ID: 0, Digital: true, AllowRead: true},
		{ID: 1, Analog: true, AllowWrite: true},
	}})

	tests := []struct {
		name string
		req  wire.Request
		want wire.Status
	}{
		{"read allowed", wire.Request{Op: wire.OpDigitalRead, Device: 0}, wire.StatusOK},
		{"write denied", wire.Request{Op: wire.OpDigitalWrite, Device: 0, Arg: 1}, wire.StatusDenied},
		{"analog on digital pin", wire.Request{Op: wire.OpAnalogRead, Device: 0}, wire.StatusNoDevice},
		{"analog write allowed", wire.Request{Op: wire.OpAnalogWrite, Device: 1, Arg: 512}, wire.StatusOK},
		{"analog read denied", wire.Request{Op: wire.OpAnalogRead, Device: 1}, wire.StatusDenied},
		{"missing pin", wire.Request{Op: wire.OpDigitalRead, Device: 9}, wire.StatusNoDevice},
		{"unknown op", wire.Request{Op: 200}, wire.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.handle(tt.req).Status)
		})
	}
	assert.Equal(t, uint16(512), d.pins[1].AnalogRead())
}

func TestHostPinAccessIgnoresSketchPermissions(t *testing.T) {
	d := newDevices(Config{Pins: []PinConfig{{ID: 3, Digital: true, AllowRead: true}}})
	p := d.pins[3]
	p.DigitalWrite(true)

	resp := d.handle(wire.Request{Op: wire.OpDigitalRead, Device: 3})
	assert.Equal(t, wire.StatusOK, resp.Status)
	assert.Equal(t, uint32(1), resp.Value)
}

func TestUartDirections(t *testing.T) {
	d := newDevices(Config{Uarts: []UartConfig{{RxBufferLength: 4, TxBufferLength: 3}}})
	u := d.uarts[0]
	assert.Equal(t, 4, u.MaxWrite())
	assert.Equal(t, 3, u.MaxRead())

	// host to sketch
	assert.Equal(t, 4, u.Write([]byte("HELLO")))
	assert.Equal(t, 0, u.Write([]byte("!")))
	resp := d.handle(wire.Request{Op: wire.OpUartAvailable})
	assert.Equal(t, uint32(4), resp.Value)
	resp = d.handle(wire.Request{Op: wire.OpUartRead, Arg: 64})
	assert.Equal(t, "HELL", string(resp.Payload))

	// sketch to host
	resp = d.handle(wire.Request{Op: wire.OpUartWrite, Payload: []byte("abcd")})
	assert.Equal(t, uint32(3), resp.Value)
	assert.Equal(t, 3, u.Readable())
	buf := make([]byte, 2)
	assert.Equal(t, 2, u.Read(buf))
	assert.Equal(t, "ab", string(buf))
	assert.Equal(t, 1, u.Readable())

	assert.Equal(t, wire.StatusNoDevice, d.handle(wire.Request{Op: wire.OpUartRead, Device: 1}).Status)
}

func TestFrameBufferFormats(t *testing.T) {
	d := newDevices(Config{FrameBuffers: []FrameBufferConfig{
		{Key: 0, AllowWrite: true, Width: 2, Height: 1, Freq: 30},
		{Key: 1},
	}})
	cam, display := d.frames[0], d.frames[1]

	assert.False(t, cam.WriteRGB888(make([]byte, 5)), "short frame")
	require.True(t, cam.WriteRGB888([]byte{1, 2, 3, 4, 5, 6}))
	resp := d.handle(wire.Request{Op: wire.OpFrameRead, Device: 0})
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, resp.Payload)

	require.True(t, cam.WriteRGB444([]byte{0x0f, 0x80, 0x01, 0x23}))
	resp = d.handle(wire.Request{Op: wire.OpFrameRead, Device: 0})
	assert.Equal(t, []byte{0xff, 0x88, 0x00, 0x11, 0x22, 0x33}, resp.Payload)

	assert.Equal(t, wire.StatusDenied, d.handle(wire.Request{Op: wire.OpFrameWrite, Device: 0}).Status)

	// the display has no geometry until the sketch sets one
	assert.False(t, display.WriteRGB888(nil))
	geo := wire.Geometry{Width: 1, Height: 1, Freq: 60, HFlip: true}
	assert.Equal(t, wire.StatusOK, d.handle(wire.Request{Op: wire.OpFrameGeometry, Device: 1, Payload: geo.Encode()}).Status)
	assert.Equal(t, uint16(1), display.Width())
	assert.True(t, display.NeedsHorizontalFlip())
	assert.False(t, display.NeedsVerticalFlip())

	assert.Equal(t, wire.StatusBadRequest, d.handle(wire.Request{Op: wire.OpFrameWrite, Device: 1, Payload: []byte{1}}).Status)
	assert.Equal(t, wire.StatusOK, d.handle(wire.Request{Op: wire.OpFrameWrite, Device: 1, Payload: []byte{9, 8, 7}}).Status)
	out := make([]byte, 3)
	assert.Equal(t, 3, display.ReadRGB888(out))
	assert.Equal(t, []byte{9, 8, 7}, out)
	assert.False(t, display.WriteRGB888([]byte{1, 2, 3}), "display is not host-writable")
}

func TestRejectedFrameKeepsPrevious(t *testing.T) {
	d := newDevices(Config{FrameBuffers: []FrameBufferConfig{
		{Key: 0, AllowWrite: true, Width: 2, Height: 1},
		{Key: 1},
	}})
	cam, display := d.frames[0], d.frames[1]

	first := []byte{1, 2, 3, 4, 5, 6}
	require.True(t, cam.WriteRGB888(first))
	assert.False(t, cam.WriteRGB888([]byte{9, 9, 9, 9, 9, 9, 9, 9, 9}))
	assert.False(t, cam.WriteRGB888([]byte{9, 9}))
	assert.False(t, cam.WriteRGB444([]byte{9, 9, 9}))
	resp := d.handle(wire.Request{Op: wire.OpFrameRead, Device: 0})
	assert.Equal(t, first, resp.Payload)

	geo := wire.Geometry{Width: 1, Height: 1}
	require.Equal(t, wire.StatusOK, d.handle(wire.Request{Op: wire.OpFrameGeometry, Device: 1, Payload: geo.Encode()}).Status)
	require.Equal(t, wire.StatusOK, d.handle(wire.Request{Op: wire.OpFrameWrite, Device: 1, Payload: []byte{4, 5, 6}}).Status)
	assert.Equal(t, wire.StatusBadRequest, d.handle(wire.Request{Op: wire.OpFrameWrite, Device: 1, Payload: []byte{7, 7, 7, 7}}).Status)
	out := make([]byte, 3)
	assert.Equal(t, 3, display.ReadRGB888(out))
	assert.Equal(t, []byte{4, 5, 6}, out)
}

func TestConfigCloneIsDeep(t *testing.T) {
	rx := uint16(7)
	c := Config{Uarts: []UartConfig{{RxPinOverride: &rx}}}
	clone := c.Clone()
	*c.Uarts[0].RxPinOverride = 8
	assert.Equal(t, uint16(7), *clone.Uarts[0].RxPinOverride)
}
