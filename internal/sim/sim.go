// Package sim is the contract between a board and the engine that actually
// runs a compiled sketch, together with the process-based Host engine.
package sim

// Status is the engine-side run state of a session.
type Status int

const (
	StatusClean Status = iota
	StatusConfigured
	StatusRunning
	StatusSuspended
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusConfigured:
		return "configured"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ExitInfo is reported by Tick.
type ExitInfo struct {
	Exited bool
	Code   int
}

// Config is the engine's copy of a board configuration.
type Config struct {
	Pins         []PinConfig
	Uarts        []UartConfig
	SDCards      []SDCardConfig
	FrameBuffers []FrameBufferConfig
}

type PinConfig struct {
	ID         uint16
	Digital    bool
	Analog     bool
	AllowRead  bool
	AllowWrite bool
}

type UartConfig struct {
	BaudRate       uint32
	RxBufferLength int
	TxBufferLength int
	FlushThreshold int
	RxPinOverride  *uint16
	TxPinOverride  *uint16
}

type SDCardConfig struct {
	ChipSelect uint16
	RootDir    string
}

type FrameBufferConfig struct {
	Key        int
	AllowWrite bool
	Width      uint16
	Height     uint16
	Freq       uint8
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := Config{
		Pins:         append([]PinConfig(nil), c.Pins...),
		Uarts:        make([]UartConfig, len(c.Uarts)),
		SDCards:      append([]SDCardConfig(nil), c.SDCards...),
		FrameBuffers: append([]FrameBufferConfig(nil), c.FrameBuffers...),
	}
	for i, u := range c.Uarts {
		if u.RxPinOverride != nil {
			v := *u.RxPinOverride
			u.RxPinOverride = &v
		}
		if u.TxPinOverride != nil {
			v := *u.TxPinOverride
			u.TxPinOverride = &v
		}
		out.Uarts[i] = u
	}
	return out
}

// Backend creates sessions.
type Backend interface {
	NewSession() Session
}

// Session is one simulated board. Lifecycle methods must not be called
// concurrently with each other; device handles may be used from any
// goroutine.
type Session interface {
	Configure(cfg Config) bool
	Attach(artifact string) bool
	Start() bool
	Tick() ExitInfo
	Status() Status
	Suspend() bool
	Resume() bool
	Terminate() bool
	Reset() bool

	// RuntimeLog copies unread runtime output into buf without blocking.
	RuntimeLog(buf []byte) int
	// RuntimeLogClosed reports whether the runtime log has no further
	// producer.
	RuntimeLogClosed() bool

	// Device resolution returns nil for devices that were not configured.
	Pin(id uint16) Pin
	Uart(index int) Uart
	FrameBuffer(key int) FrameBuffer
}

type Pin interface {
	IsDigital() bool
	IsAnalog() bool
	DigitalRead() bool
	DigitalWrite(v bool)
	AnalogRead() uint16
	AnalogWrite(v uint16)
}

type Uart interface {
	// Readable is the number of bytes the sketch has sent that are waiting.
	Readable() int
	MaxRead() int
	MaxWrite() int
	Read(buf []byte) int
	Write(buf []byte) int
}

type FrameBuffer interface {
	Width() uint16
	Height() uint16
	Freq() uint8
	NeedsHorizontalFlip() bool
	NeedsVerticalFlip() bool
	WriteRGB888(buf []byte) bool
	WriteRGB444(buf []byte) bool
	// ReadRGB888 copies the latest sketch-written frame into buf.
	ReadRGB888(buf []byte) int
}
