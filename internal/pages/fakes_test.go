package pages

import (
	"github.com/buckleypaul/vboard"
)

// fakeUart loops host writes back as firmware output when echo is set.
type fakeUart struct {
	index int
	tx    []byte
	rx    []byte
	room  int
	echo  bool
	err   error
}

func (u *fakeUart) Index() int { return u.index }

func (u *fakeUart) Read(p []byte) (int, error) {
	if u.err != nil {
		return 0, u.err
	}
	n := copy(p, u.tx)
	u.tx = u.tx[n:]
	return n, nil
}

func (u *fakeUart) Write(p []byte) (int, error) {
	n := len(p)
	if u.room >= 0 && n > u.room {
		n = u.room
	}
	if n == 0 && len(p) > 0 {
		return 0, vboard.ErrWouldBlock
	}
	if u.room >= 0 {
		u.room -= n
	}
	u.rx = append(u.rx, p[:n]...)
	if u.echo {
		u.tx = append(u.tx, p[:n]...)
	}
	return n, nil
}

type fakePin struct {
	info    vboard.GpioDriver
	digital bool
	analog  uint16
}

func (p *fakePin) Info() vboard.GpioDriver { return p.info }

func (p *fakePin) DigitalRead() (bool, error) {
	if p.info.Mode == vboard.AnalogPin {
		return false, vboard.ErrNotDigital
	}
	return p.digital, nil
}

func (p *fakePin) DigitalWrite(v bool) error {
	if p.info.Mode == vboard.AnalogPin {
		return vboard.ErrNotDigital
	}
	p.digital = v
	return nil
}

func (p *fakePin) AnalogRead() (uint16, error) {
	if p.info.Mode == vboard.DigitalPin {
		return 0, vboard.ErrNotAnalog
	}
	return p.analog, nil
}

func (p *fakePin) AnalogWrite(v uint16) error {
	if p.info.Mode == vboard.DigitalPin {
		return vboard.ErrNotAnalog
	}
	p.analog = v
	return nil
}

type fakeFrame struct {
	info vboard.FrameBufferConfig
}

func (f *fakeFrame) Info() vboard.FrameBufferConfig { return f.info }
func (f *fakeFrame) Width() uint16                  { return f.info.Width }
func (f *fakeFrame) Height() uint16                 { return f.info.Height }
func (f *fakeFrame) Freq() uint8                    { return f.info.Freq }
func (f *fakeFrame) NeedsHorizontalFlip() bool      { return false }
func (f *fakeFrame) NeedsVerticalFlip() bool        { return true }
