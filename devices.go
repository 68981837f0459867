package vboard

import (
	"github.com/buckleypaul/vboard/internal/sim"
)

// GpioPin reads and writes one simulated pin. Each call is atomic with
// respect to the firmware.
type GpioPin struct {
	b     *Board
	epoch uint64
	info  GpioDriver
}

// Info returns the pin's configuration.
func (p *GpioPin) Info() GpioDriver {
	return p.info
}

func (p *GpioPin) pin(s sim.Session) (sim.Pin, error) {
	pin := s.Pin(p.info.PinID)
	if pin == nil {
		return nil, ErrSessionEnded
	}
	return pin, nil
}

func (p *GpioPin) DigitalRead() (bool, error) {
	var v bool
	err := p.b.device(p.epoch, false, func(s sim.Session) error {
		pin, err := p.pin(s)
		if err != nil {
			return err
		}
		if !pin.IsDigital() {
			return ErrNotDigital
		}
		v = pin.DigitalRead()
		return nil
	})
	return v, err
}

func (p *GpioPin) DigitalWrite(v bool) error {
	return p.b.device(p.epoch, true, func(s sim.Session) error {
		pin, err := p.pin(s)
		if err != nil {
			return err
		}
		if !pin.IsDigital() {
			return ErrNotDigital
		}
		pin.DigitalWrite(v)
		return nil
	})
}

func (p *GpioPin) AnalogRead() (uint16, error) {
	var v uint16
	err := p.b.device(p.epoch, false, func(s sim.Session) error {
		pin, err := p.pin(s)
		if err != nil {
			return err
		}
		if !pin.IsAnalog() {
			return ErrNotAnalog
		}
		v = pin.AnalogRead()
		return nil
	})
	return v, err
}

func (p *GpioPin) AnalogWrite(v uint16) error {
	return p.b.device(p.epoch, true, func(s sim.Session) error {
		pin, err := p.pin(s)
		if err != nil {
			return err
		}
		if !pin.IsAnalog() {
			return ErrNotAnalog
		}
		pin.AnalogWrite(v)
		return nil
	})
}

// UartChannel is the host end of a serial channel. Writes go to the
// firmware's receive buffer; reads drain what the firmware transmitted.
type UartChannel struct {
	b     *Board
	epoch uint64
	index int
	info  UartConfig
}

func (u *UartChannel) Info() UartConfig {
	return u.info
}

func (u *UartChannel) Index() int {
	return u.index
}

func (u *UartChannel) uart(s sim.Session) (sim.Uart, error) {
	ch := s.Uart(u.index)
	if ch == nil {
		return nil, ErrSessionEnded
	}
	return ch, nil
}

func (u *UartChannel) stat(fn func(sim.Uart) int) int {
	var n int
	u.b.device(u.epoch, false, func(s sim.Session) error {
		ch, err := u.uart(s)
		if err != nil {
			return err
		}
		n = fn(ch)
		return nil
	})
	return n
}

// Readable returns how many transmitted bytes are waiting to be read.
func (u *UartChannel) Readable() int {
	return u.stat(sim.Uart.Readable)
}

// MaxRead is the capacity of the firmware's transmit buffer.
func (u *UartChannel) MaxRead() int {
	return u.stat(sim.Uart.MaxRead)
}

// MaxWrite is the capacity of the firmware's receive buffer.
func (u *UartChannel) MaxWrite() int {
	return u.stat(sim.Uart.MaxWrite)
}

// Read copies waiting bytes into p. It never blocks and returns 0 when
// nothing is waiting; the only error is ErrSessionEnded.
func (u *UartChannel) Read(p []byte) (int, error) {
	var n int
	err := u.b.device(u.epoch, false, func(s sim.Session) error {
		ch, err := u.uart(s)
		if err != nil {
			return err
		}
		n = ch.Read(p)
		return nil
	})
	return n, err
}

// Write queues as much of p as the firmware's receive buffer takes and
// returns the count. It fails with ErrWouldBlock if the buffer is full.
func (u *UartChannel) Write(p []byte) (int, error) {
	var n int
	err := u.b.device(u.epoch, true, func(s sim.Session) error {
		ch, err := u.uart(s)
		if err != nil {
			return err
		}
		n = ch.Write(p)
		if n == 0 && len(p) > 0 {
			return ErrWouldBlock
		}
		return nil
	})
	return n, err
}

// PixelFormat is the layout of a frame passed to FrameBuffer.Write.
type PixelFormat int

const (
	// RGB888 is three bytes per pixel.
	RGB888 PixelFormat = iota
	// RGB444 is two bytes per pixel: red in the low nibble of the first
	// byte, green and blue in the high and low nibbles of the second.
	RGB444
)

func (f PixelFormat) BytesPerPixel() int {
	if f == RGB444 {
		return 2
	}
	return 3
}

func (f PixelFormat) String() string {
	if f == RGB444 {
		return "rgb444"
	}
	return "rgb888"
}

// FrameBuffer is a simulated camera or display.
type FrameBuffer struct {
	b     *Board
	epoch uint64
	info  FrameBufferConfig
}

func (f *FrameBuffer) Info() FrameBufferConfig {
	return f.info
}

func (f *FrameBuffer) fb(s sim.Session) (sim.FrameBuffer, error) {
	fb := s.FrameBuffer(f.info.Key)
	if fb == nil {
		return nil, ErrSessionEnded
	}
	return fb, nil
}

func (f *FrameBuffer) query(fn func(sim.FrameBuffer)) error {
	return f.b.device(f.epoch, false, func(s sim.Session) error {
		fb, err := f.fb(s)
		if err != nil {
			return err
		}
		fn(fb)
		return nil
	})
}

// Width is 0 until the geometry is known.
func (f *FrameBuffer) Width() uint16 {
	var v uint16
	f.query(func(fb sim.FrameBuffer) { v = fb.Width() })
	return v
}

func (f *FrameBuffer) Height() uint16 {
	var v uint16
	f.query(func(fb sim.FrameBuffer) { v = fb.Height() })
	return v
}

func (f *FrameBuffer) Freq() uint8 {
	var v uint8
	f.query(func(fb sim.FrameBuffer) { v = fb.Freq() })
	return v
}

func (f *FrameBuffer) NeedsHorizontalFlip() bool {
	var v bool
	f.query(func(fb sim.FrameBuffer) { v = fb.NeedsHorizontalFlip() })
	return v
}

func (f *FrameBuffer) NeedsVerticalFlip() bool {
	var v bool
	f.query(func(fb sim.FrameBuffer) { v = fb.NeedsVerticalFlip() })
	return v
}

// Write replaces the frame the firmware sees. buf must hold exactly
// Width*Height pixels in format; anything else is rejected whole.
func (f *FrameBuffer) Write(buf []byte, format PixelFormat) error {
	return f.b.device(f.epoch, true, func(s sim.Session) error {
		fb, err := f.fb(s)
		if err != nil {
			return err
		}
		if !f.info.AllowWrite {
			return ErrFrameReadOnly
		}
		want := int(fb.Width()) * int(fb.Height()) * format.BytesPerPixel()
		if want == 0 || len(buf) != want {
			return ErrFrameSize
		}
		var ok bool
		if format == RGB444 {
			ok = fb.WriteRGB444(buf)
		} else {
			ok = fb.WriteRGB888(buf)
		}
		if !ok {
			return ErrFrameSize
		}
		return nil
	})
}

// Read copies the latest frame drawn by the firmware into buf as RGB888
// and returns its length. Camera buffers cannot be read back.
func (f *FrameBuffer) Read(buf []byte) (int, error) {
	var n int
	err := f.b.device(f.epoch, false, func(s sim.Session) error {
		fb, err := f.fb(s)
		if err != nil {
			return err
		}
		if f.info.AllowWrite {
			return ErrAccessDenied
		}
		n = fb.ReadRGB888(buf)
		return nil
	})
	return n, err
}
