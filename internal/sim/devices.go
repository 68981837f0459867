package sim

import (
	"sync"
	"sync/atomic"

	"github.com/buckleypaul/vboard/internal/wire"
)

// devices holds the live peripheral state of one configured session. It is
// shared by host-side handles and the goroutine serving the sketch.
type devices struct {
	pins   map[uint16]*pinState
	uarts  []*uartState
	frames map[int]*frameState
}

func newDevices(cfg Config) *devices {
	d := &devices{
		pins:   make(map[uint16]*pinState, len(cfg.Pins)),
		uarts:  make([]*uartState, 0, len(cfg.Uarts)),
		frames: make(map[int]*frameState, len(cfg.FrameBuffers)),
	}
	for _, p := range cfg.Pins {
		d.pins[p.ID] = &pinState{cfg: p}
	}
	for _, u := range cfg.Uarts {
		d.uarts = append(d.uarts, &uartState{
			cfg: u,
			rx:  newByteQueue(u.RxBufferLength),
			tx:  newByteQueue(u.TxBufferLength),
		})
	}
	for _, f := range cfg.FrameBuffers {
		d.frames[f.Key] = &frameState{
			cfg:    f,
			width:  f.Width,
			height: f.Height,
			freq:   f.Freq,
		}
	}
	return d
}

// handle answers one sketch request.
func (d *devices) handle(req wire.Request) wire.Response {
	switch req.Op {
	case wire.OpDigitalRead, wire.OpDigitalWrite, wire.OpAnalogRead, wire.OpAnalogWrite:
		p, ok := d.pins[req.Device]
		if !ok {
			return wire.Response{Status: wire.StatusNoDevice}
		}
		return p.handle(req)
	case wire.OpUartAvailable, wire.OpUartRead, wire.OpUartWrite:
		if int(req.Device) >= len(d.uarts) {
			return wire.Response{Status: wire.StatusNoDevice}
		}
		return d.uarts[req.Device].handle(req)
	case wire.OpFrameGeometry, wire.OpFrameRead, wire.OpFrameWrite:
		f, ok := d.frames[int(req.Device)]
		if !ok {
			return wire.Response{Status: wire.StatusNoDevice}
		}
		return f.handle(req)
	default:
		return wire.Response{Status: wire.StatusBadRequest}
	}
}

type pinState struct {
	cfg     PinConfig
	digital atomic.Bool
	analog  atomic.Uint32
}

func (p *pinState) IsDigital() bool      { return p.cfg.Digital }
func (p *pinState) IsAnalog() bool       { return p.cfg.Analog }
func (p *pinState) DigitalRead() bool    { return p.digital.Load() }
func (p *pinState) DigitalWrite(v bool)  { p.digital.Store(v) }
func (p *pinState) AnalogRead() uint16   { return uint16(p.analog.Load()) }
func (p *pinState) AnalogWrite(v uint16) { p.analog.Store(uint32(v)) }

func (p *pinState) handle(req wire.Request) wire.Response {
	digital := req.Op == wire.OpDigitalRead || req.Op == wire.OpDigitalWrite
	if digital && !p.cfg.Digital || !digital && !p.cfg.Analog {
		return wire.Response{Status: wire.StatusNoDevice}
	}
	switch req.Op {
	case wire.OpDigitalRead:
		if !p.cfg.AllowRead {
			return wire.Response{Status: wire.StatusDenied}
		}
		return wire.Response{Value: boolValue(p.DigitalRead())}
	case wire.OpDigitalWrite:
		if !p.cfg.AllowWrite {
			return wire.Response{Status: wire.StatusDenied}
		}
		p.DigitalWrite(req.Arg != 0)
	case wire.OpAnalogRead:
		if !p.cfg.AllowRead {
			return wire.Response{Status: wire.StatusDenied}
		}
		return wire.Response{Value: uint32(p.AnalogRead())}
	case wire.OpAnalogWrite:
		if !p.cfg.AllowWrite {
			return wire.Response{Status: wire.StatusDenied}
		}
		p.AnalogWrite(uint16(req.Arg))
	}
	return wire.Response{}
}

func boolValue(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

// uartState is a channel as seen from the host: rx carries bytes towards
// the sketch, tx carries bytes the sketch has sent.
type uartState struct {
	cfg UartConfig
	rx  *byteQueue
	tx  *byteQueue
}

func (u *uartState) Readable() int        { return u.tx.len() }
func (u *uartState) MaxRead() int         { return u.tx.capacity() }
func (u *uartState) MaxWrite() int        { return u.rx.capacity() }
func (u *uartState) Read(buf []byte) int  { return u.tx.pop(buf) }
func (u *uartState) Write(buf []byte) int { return u.rx.push(buf) }

func (u *uartState) handle(req wire.Request) wire.Response {
	switch req.Op {
	case wire.OpUartAvailable:
		return wire.Response{Value: uint32(u.rx.len())}
	case wire.OpUartRead:
		n := int(req.Arg)
		if n > u.rx.capacity() {
			n = u.rx.capacity()
		}
		buf := make([]byte, n)
		n = u.rx.pop(buf)
		return wire.Response{Value: uint32(n), Payload: buf[:n]}
	case wire.OpUartWrite:
		return wire.Response{Value: uint32(u.tx.push(req.Payload))}
	}
	return wire.Response{Status: wire.StatusBadRequest}
}

// byteQueue is a bounded FIFO of bytes.
type byteQueue struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

func newByteQueue(size int) *byteQueue {
	return &byteQueue{buf: make([]byte, 0, size), size: size}
}

// push appends as much of p as fits and returns how much was accepted.
func (q *byteQueue) push(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.size - len(q.buf)
	if n > len(p) {
		n = len(p)
	}
	q.buf = append(q.buf, p[:n]...)
	return n
}

func (q *byteQueue) pop(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := copy(p, q.buf)
	q.buf = append(q.buf[:0], q.buf[n:]...)
	return n
}

func (q *byteQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

func (q *byteQueue) capacity() int {
	return q.size
}

// frameState stores frames as RGB888.
type frameState struct {
	cfg FrameBufferConfig

	mu     sync.Mutex
	width  uint16
	height uint16
	freq   uint8
	hflip  bool
	vflip  bool
	// input is the latest host-written frame, output the latest
	// sketch-written one.
	input  []byte
	output []byte
}

func (f *frameState) Width() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width
}

func (f *frameState) Height() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height
}

func (f *frameState) Freq() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.freq
}

func (f *frameState) NeedsHorizontalFlip() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hflip
}

func (f *frameState) NeedsVerticalFlip() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vflip
}

func (f *frameState) pixels() int {
	return int(f.width) * int(f.height)
}

func (f *frameState) WriteRGB888(buf []byte) bool {
	if !f.cfg.AllowWrite {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pixels() == 0 || len(buf) != f.pixels()*3 {
		return false
	}
	f.input = append(f.input[:0], buf...)
	return true
}

// WriteRGB444 takes two bytes per pixel: red in the low nibble of the
// first byte, green and blue in the high and low nibbles of the second.
func (f *frameState) WriteRGB444(buf []byte) bool {
	if !f.cfg.AllowWrite {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pixels() == 0 || len(buf) != f.pixels()*2 {
		return false
	}
	frame := make([]byte, 0, f.pixels()*3)
	for i := 0; i < len(buf); i += 2 {
		frame = append(frame,
			expandNibble(buf[i]&0x0f),
			expandNibble(buf[i+1]>>4),
			expandNibble(buf[i+1]&0x0f),
		)
	}
	f.input = frame
	return true
}

func expandNibble(n byte) byte {
	return n<<4 | n
}

func (f *frameState) ReadRGB888(buf []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copy(buf, f.output)
}

func (f *frameState) handle(req wire.Request) wire.Response {
	switch req.Op {
	case wire.OpFrameGeometry:
		g, err := wire.DecodeGeometry(req.Payload)
		if err != nil {
			return wire.Response{Status: wire.StatusBadRequest}
		}
		f.mu.Lock()
		f.width, f.height, f.freq = g.Width, g.Height, g.Freq
		f.hflip, f.vflip = g.HFlip, g.VFlip
		f.input, f.output = nil, nil
		f.mu.Unlock()
	case wire.OpFrameRead:
		f.mu.Lock()
		frame := append([]byte(nil), f.input...)
		f.mu.Unlock()
		return wire.Response{Value: uint32(len(frame)), Payload: frame}
	case wire.OpFrameWrite:
		if f.cfg.AllowWrite {
			return wire.Response{Status: wire.StatusDenied}
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(req.Payload) != f.pixels()*3 {
			return wire.Response{Status: wire.StatusBadRequest}
		}
		f.output = append(f.output[:0], req.Payload...)
	default:
		return wire.Response{Status: wire.StatusBadRequest}
	}
	return wire.Response{}
}
