package vboard

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/vboard/internal/sim"
	"github.com/buckleypaul/vboard/internal/testfw"
)

const settle = 5 * time.Second

func runnableSketch(t *testing.T) *Sketch {
	t.Helper()
	sk := newTestSketch(t)
	sk.markCompiled(testfw.Artifact(t))
	return sk
}

func pinConfig() BoardConfig {
	return BoardConfig{
		GpioDrivers: []GpioDriver{
			{PinID: 0, AllowRead: true, AllowWrite: true},
			{PinID: 1, Mode: AnalogPin, AllowWrite: true},
			{PinID: 2, AllowWrite: true},
		},
		UartChannels: []UartConfig{DefaultUartConfig()},
	}
}

// startBoard runs the named test sketch and stops it when the test ends.
func startBoard(t *testing.T, sketch string, cfg BoardConfig) (*Board, *BoardHandle) {
	t.Helper()
	b := NewBoard(WithSketchEnv(testfw.Select(sketch)))
	h, err := b.Start(cfg, runnableSketch(t))
	require.NoError(t, err)
	t.Cleanup(func() { h.Stop() })
	return b, h
}

type countingBackend struct {
	sim.Backend
	sessions int
}

func (c *countingBackend) NewSession() sim.Session {
	c.sessions++
	return c.Backend.NewSession()
}

type refusingBackend struct {
	sim.Backend
}

func (r refusingBackend) NewSession() sim.Session {
	return refusingSession{r.Backend.NewSession()}
}

type refusingSession struct {
	sim.Session
}

func (refusingSession) Configure(sim.Config) bool { return false }

func TestStartRequiresCompiledSketch(t *testing.T) {
	backend := &countingBackend{Backend: sim.NewHost()}
	b := NewBoard(withBackend(backend))

	_, err := b.Start(pinConfig(), newTestSketch(t))
	assert.ErrorIs(t, err, ErrSketchNotCompiled)
	_, err = b.Start(pinConfig(), nil)
	assert.ErrorIs(t, err, ErrSketchNotCompiled)
	assert.Zero(t, backend.sessions)
	assert.Equal(t, Stopped, b.Status())
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	b := NewBoard()
	cfg := BoardConfig{GpioDrivers: []GpioDriver{{PinID: 1}, {PinID: 1}}}
	_, err := b.Start(cfg, runnableSketch(t))
	assert.Error(t, err)
	assert.Equal(t, Stopped, b.Status())
}

func TestStartWhileRunning(t *testing.T) {
	b, h := startBoard(t, "counter", pinConfig())

	_, err := b.Start(pinConfig(), runnableSketch(t))
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	assert.Equal(t, Running, h.Status())
	pin := h.View().Pin(1)
	require.NotNil(t, pin)
	assert.Eventually(t, func() bool {
		v, err := pin.AnalogRead()
		return err == nil && v > 0
	}, settle, time.Millisecond)
}

func TestStartPanicsWhenBackendFails(t *testing.T) {
	b := NewBoard(withBackend(refusingBackend{sim.NewHost()}))
	assert.Panics(t, func() { b.Start(pinConfig(), runnableSketch(t)) })
}

func TestPinFollowsInverted(t *testing.T) {
	_, h := startBoard(t, "invert", pinConfig())
	view := h.View()
	in, out := view.Pin(0), view.Pin(2)
	require.NotNil(t, in)
	require.NotNil(t, out)
	assert.Equal(t, []uint16{0, 1, 2}, view.PinIDs())
	assert.Nil(t, view.Pin(7))

	for _, v := range []bool{true, false, true} {
		require.NoError(t, in.DigitalWrite(v))
		assert.Eventually(t, func() bool {
			got, err := out.DigitalRead()
			return err == nil && got == !v
		}, settle, time.Millisecond, "pin 0 = %v", v)
	}
}

func TestPinCapabilities(t *testing.T) {
	_, h := startBoard(t, "counter", pinConfig())
	digital, analog := h.View().Pin(0), h.View().Pin(1)

	_, err := digital.AnalogRead()
	assert.ErrorIs(t, err, ErrNotAnalog)
	assert.ErrorIs(t, digital.AnalogWrite(1), ErrNotAnalog)
	_, err = analog.DigitalRead()
	assert.ErrorIs(t, err, ErrNotDigital)
	assert.ErrorIs(t, analog.DigitalWrite(true), ErrNotDigital)
	assert.Equal(t, AnalogPin, analog.Info().Mode)
}

func TestUartEcho(t *testing.T) {
	_, h := startBoard(t, "echo", pinConfig())
	u := h.View().Uart(0)
	require.NotNil(t, u)
	assert.Nil(t, h.View().Uart(1))
	assert.Equal(t, 64, u.MaxRead())
	assert.Equal(t, 64, u.MaxWrite())
	assert.Equal(t, uint32(DefaultBaudRate), u.Info().BaudRate)

	n, err := u.Write([]byte("HELLO"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	var got []byte
	buf := make([]byte, 64)
	assert.Eventually(t, func() bool {
		n, err := u.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
		return len(got) >= 5
	}, settle, time.Millisecond)
	assert.Equal(t, "HELLO", string(got))
}

func TestUartEchoOnEveryChannel(t *testing.T) {
	cfg := pinConfig()
	second := DefaultUartConfig()
	second.BaudRate = 115200
	cfg.UartChannels = append(cfg.UartChannels, second)
	_, h := startBoard(t, "echo", cfg)
	u := h.View().Uart(1)
	require.NotNil(t, u)
	assert.Equal(t, uint32(115200), u.Info().BaudRate)

	_, err := u.Write([]byte("ping"))
	require.NoError(t, err)
	var got []byte
	buf := make([]byte, 64)
	assert.Eventually(t, func() bool {
		n, err := u.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
		return len(got) >= 4
	}, settle, time.Millisecond)
	assert.Equal(t, "ping", string(got))
}

func TestUartWouldBlock(t *testing.T) {
	cfg := pinConfig()
	cfg.UartChannels[0].RxBufferLength = 4
	_, h := startBoard(t, "counter", cfg)
	u := h.View().Uart(0)

	n, err := u.Write([]byte("HELLO"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = u.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrWouldBlock)
	assert.Zero(t, n)

	n, err = u.Write(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)

	n, err = u.Read(make([]byte, 8))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSuspendResume(t *testing.T) {
	_, h := startBoard(t, "counter", pinConfig())
	assert.Equal(t, Running, h.Status())

	assert.True(t, h.Suspend())
	assert.Equal(t, Suspended, h.Status())
	assert.True(t, h.Resume())
	assert.Equal(t, Running, h.Status())

	assert.False(t, h.Resume())
	assert.Equal(t, Running, h.Status())
}

func TestTickReportsExit(t *testing.T) {
	b := NewBoard(WithSketchEnv(testfw.Select("exit:7")))
	h, err := b.Start(pinConfig(), runnableSketch(t))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return h.Tick() != nil }, settle, time.Millisecond)
	for i := 0; i < 3; i++ {
		var exit *ExitError
		require.ErrorAs(t, h.Tick(), &exit)
		assert.Equal(t, 7, exit.Code)
	}
	assert.Equal(t, Stopped, h.Status())

	pin := h.View().Pin(0)
	_, err = pin.DigitalRead()
	assert.NoError(t, err, "the exited session stays readable")
	assert.ErrorIs(t, pin.DigitalWrite(true), ErrBoardExited)
	_, err = h.View().Uart(0).Write([]byte("x"))
	assert.ErrorIs(t, err, ErrBoardExited)

	var out bytes.Buffer
	require.NoError(t, h.Log().Drain(context.Background(), &out, time.Millisecond))
	assert.Equal(t, "bye\n", out.String())

	assert.Equal(t, 7, h.Stop())
	assert.Equal(t, Stopped, b.Status())
}

func TestStopInvalidatesSession(t *testing.T) {
	b := NewBoard(WithSketchEnv(testfw.Select("counter")))
	sk := runnableSketch(t)
	h, err := b.Start(pinConfig(), sk)
	require.NoError(t, err)
	view := h.View()
	log := h.Log()

	assert.Equal(t, 0, h.Stop())

	_, err = view.Pin(1).AnalogRead()
	assert.ErrorIs(t, err, ErrSessionEnded)
	_, err = view.Uart(0).Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.ErrorIs(t, h.Tick(), ErrSessionEnded)
	assert.False(t, h.Suspend())
	assert.False(t, h.Terminate())
	assert.Equal(t, Stopped, h.Status())
	assert.Nil(t, h.View())
	assert.True(t, log.Disconnected())
	assert.Equal(t, 0, h.Stop())

	// the sketch can run again on the same board
	h2, err := b.Start(pinConfig(), sk)
	require.NoError(t, err)
	defer h2.Stop()
	assert.Equal(t, Running, h2.Status())
	_, err = view.Pin(1).AnalogRead()
	assert.ErrorIs(t, err, ErrSessionEnded, "old accessors stay stale")
}

func TestTerminateThenReboot(t *testing.T) {
	_, h := startBoard(t, "counter", pinConfig())
	old := h.View().Pin(1)

	assert.True(t, h.Terminate())
	assert.Equal(t, Stopped, h.Status())
	assert.False(t, h.Terminate())
	assert.NoError(t, h.Tick(), "terminated firmware did not exit on its own")

	require.NoError(t, h.Reboot())
	assert.Equal(t, Running, h.Status())
	_, err := old.AnalogRead()
	assert.ErrorIs(t, err, ErrSessionEnded)

	pin := h.View().Pin(1)
	assert.Eventually(t, func() bool {
		v, err := pin.AnalogRead()
		return err == nil && v > 0
	}, settle, time.Millisecond)

	require.NoError(t, h.Reboot(), "reboot while running")
	assert.Equal(t, Running, h.Status())
}

func TestFrameBuffers(t *testing.T) {
	cfg := BoardConfig{FrameBuffers: []FrameBufferConfig{
		{Key: 0, AllowWrite: true, Width: 2, Height: 1, Freq: 30},
		{Key: 1},
	}}
	_, h := startBoard(t, "mirror", cfg)
	cam, display := h.View().FrameBuffer(0), h.View().FrameBuffer(1)
	require.NotNil(t, cam)
	require.NotNil(t, display)
	assert.Nil(t, h.View().FrameBuffer(2))

	assert.Equal(t, uint16(2), cam.Width())
	assert.Equal(t, uint16(1), cam.Height())
	assert.Equal(t, uint8(30), cam.Freq())
	assert.ErrorIs(t, cam.Write(make([]byte, 5), RGB888), ErrFrameSize)
	assert.ErrorIs(t, cam.Write(make([]byte, 6), RGB444), ErrFrameSize)
	_, err := cam.Read(make([]byte, 6))
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.ErrorIs(t, display.Write(make([]byte, 6), RGB888), ErrFrameReadOnly)

	assert.Eventually(t, display.NeedsVerticalFlip, settle, time.Millisecond)
	assert.False(t, display.NeedsHorizontalFlip())

	require.NoError(t, cam.Write([]byte{1, 2, 3, 4, 5, 6}, RGB888))
	frame := make([]byte, 6)
	assert.Eventually(t, func() bool {
		n, err := display.Read(frame)
		return err == nil && n == 6 && bytes.Equal(frame, []byte{1, 2, 3, 4, 5, 6})
	}, settle, time.Millisecond)

	assert.ErrorIs(t, cam.Write(make([]byte, 9), RGB888), ErrFrameSize)
	assert.ErrorIs(t, cam.Write(make([]byte, 3), RGB444), ErrFrameSize)
	assert.Never(t, func() bool {
		n, err := display.Read(frame)
		return err != nil || n != 6 || !bytes.Equal(frame, []byte{1, 2, 3, 4, 5, 6})
	}, 100*time.Millisecond, 5*time.Millisecond, "rejected frame reached the firmware")

	require.NoError(t, cam.Write([]byte{0x0f, 0x80, 0x01, 0x23}, RGB444))
	assert.Eventually(t, func() bool {
		n, err := display.Read(frame)
		return err == nil && n == 6 && bytes.Equal(frame, []byte{0xff, 0x88, 0x00, 0x11, 0x22, 0x33})
	}, settle, time.Millisecond)
}

func TestStaleFrameBuffers(t *testing.T) {
	cfg := BoardConfig{FrameBuffers: []FrameBufferConfig{
		{Key: 0, AllowWrite: true, Width: 2, Height: 1},
		{Key: 1},
	}}
	b := NewBoard(WithSketchEnv(testfw.Select("mirror")))
	h, err := b.Start(cfg, runnableSketch(t))
	require.NoError(t, err)
	cam, display := h.View().FrameBuffer(0), h.View().FrameBuffer(1)
	h.Stop()

	assert.ErrorIs(t, display.Write(make([]byte, 6), RGB888), ErrSessionEnded)
	assert.ErrorIs(t, cam.Write(make([]byte, 6), RGB888), ErrSessionEnded)
	_, err = cam.Read(make([]byte, 6))
	assert.ErrorIs(t, err, ErrSessionEnded)
	_, err = display.Read(make([]byte, 6))
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestSDCardRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "card")
	cfg := BoardConfig{SDCards: []SDCardConfig{{ChipSelect: 10, RootDir: root}}}
	b := NewBoard(WithSketchEnv(testfw.Select("sd")))
	h, err := b.Start(cfg, runnableSketch(t))
	require.NoError(t, err)

	var exit *ExitError
	assert.Eventually(t, func() bool { return h.Tick() != nil }, settle, time.Millisecond)
	require.ErrorAs(t, h.Tick(), &exit)
	assert.Zero(t, exit.Code)
	h.Stop()

	data, err := os.ReadFile(filepath.Join(root, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello from the card", string(data))
}

func TestCompileAndRun(t *testing.T) {
	resdir, opts := fakeToolchain(t)
	tc, log, err := NewToolchain(resdir, opts...)
	require.NoError(t, err)

	sk := newTestSketch(t)
	_, err = compile(t, tc, log, sk)
	require.NoError(t, err)

	b := NewBoard(WithSketchEnv(testfw.Select("echo")))
	h, err := b.Start(BoardConfig{UartChannels: []UartConfig{DefaultUartConfig()}}, sk)
	require.NoError(t, err)
	defer h.Stop()

	u := h.View().Uart(0)
	_, err = u.Write([]byte("HELLO"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return u.Readable() == 5 }, settle, time.Millisecond)
}
