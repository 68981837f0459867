package vboard

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/buckleypaul/vboard/internal/sim"
)

// UART defaults applied to descriptor files.
const (
	DefaultBaudRate       = 9600
	DefaultUartBufferSize = 64
)

// BoardConfig declares the devices of a virtual board.
type BoardConfig struct {
	GpioDrivers  []GpioDriver        `yaml:"gpio_drivers,omitempty"`
	UartChannels []UartConfig        `yaml:"uart_channels,omitempty"`
	SDCards      []SDCardConfig      `yaml:"sd_cards,omitempty"`
	FrameBuffers []FrameBufferConfig `yaml:"frame_buffers,omitempty"`
}

// PinMode selects which operations a pin supports.
type PinMode int

const (
	DigitalPin PinMode = iota
	AnalogPin
	DualPin
)

func (m PinMode) String() string {
	switch m {
	case DigitalPin:
		return "digital"
	case AnalogPin:
		return "analog"
	case DualPin:
		return "dual"
	default:
		return "unknown"
	}
}

func (m PinMode) digital() bool { return m == DigitalPin || m == DualPin }
func (m PinMode) analog() bool  { return m == AnalogPin || m == DualPin }

func (m PinMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func (m *PinMode) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "", "digital":
		*m = DigitalPin
	case "analog":
		*m = AnalogPin
	case "dual":
		*m = DualPin
	default:
		return errors.Errorf("line %d: unknown pin mode %q", value.Line, value.Value)
	}
	return nil
}

// GpioDriver declares one pin. AllowRead and AllowWrite govern what the
// firmware may do; the host side can always read and write.
type GpioDriver struct {
	PinID      uint16  `yaml:"pin"`
	Mode       PinMode `yaml:"mode"`
	AllowRead  bool    `yaml:"allow_read"`
	AllowWrite bool    `yaml:"allow_write"`
}

// UartConfig declares one UART channel. Rx is the direction towards the
// firmware, Tx the direction out of it.
type UartConfig struct {
	BaudRate          uint32  `yaml:"baud_rate"`
	RxBufferLength    int     `yaml:"rx_buffer_length"`
	TxBufferLength    int     `yaml:"tx_buffer_length"`
	FlushingThreshold int     `yaml:"flushing_threshold"`
	RxPinOverride     *uint16 `yaml:"rx_pin_override,omitempty"`
	TxPinOverride     *uint16 `yaml:"tx_pin_override,omitempty"`
}

// DefaultUartConfig returns a 9600 baud channel with 64 byte buffers.
func DefaultUartConfig() UartConfig {
	return UartConfig{
		BaudRate:       DefaultBaudRate,
		RxBufferLength: DefaultUartBufferSize,
		TxBufferLength: DefaultUartBufferSize,
	}
}

// SDCardConfig maps a chip select pin to a host directory.
type SDCardConfig struct {
	ChipSelect uint16 `yaml:"cspin"`
	RootDir    string `yaml:"root_dir"`
}

// FrameBufferConfig declares a frame buffer. Writable buffers are camera
// inputs fed by the host; the others are displays written by the firmware.
// Width, Height and Freq may be left zero for the firmware to set.
type FrameBufferConfig struct {
	Key        int    `yaml:"key"`
	AllowWrite bool   `yaml:"allow_write"`
	Width      uint16 `yaml:"width,omitempty"`
	Height     uint16 `yaml:"height,omitempty"`
	Freq       uint8  `yaml:"freq,omitempty"`
}

// Validate reports structural problems that would leave devices ambiguous.
func (c BoardConfig) Validate() error {
	pins := make(map[uint16]bool, len(c.GpioDrivers))
	for _, g := range c.GpioDrivers {
		if pins[g.PinID] {
			return errors.Errorf("pin %d declared twice", g.PinID)
		}
		if g.Mode < DigitalPin || g.Mode > DualPin {
			return errors.Errorf("pin %d has invalid mode %d", g.PinID, g.Mode)
		}
		pins[g.PinID] = true
	}
	for i, u := range c.UartChannels {
		if u.RxBufferLength <= 0 || u.TxBufferLength <= 0 {
			return errors.Errorf("uart %d needs positive buffer lengths", i)
		}
		if u.FlushingThreshold < 0 {
			return errors.Errorf("uart %d has a negative flushing threshold", i)
		}
	}
	cs := make(map[uint16]bool, len(c.SDCards))
	for _, sd := range c.SDCards {
		if cs[sd.ChipSelect] {
			return errors.Errorf("sd card chip select %d declared twice", sd.ChipSelect)
		}
		if sd.RootDir == "" {
			return errors.Errorf("sd card on pin %d has no root directory", sd.ChipSelect)
		}
		cs[sd.ChipSelect] = true
	}
	keys := make(map[int]bool, len(c.FrameBuffers))
	for _, f := range c.FrameBuffers {
		if keys[f.Key] {
			return errors.Errorf("frame buffer %d declared twice", f.Key)
		}
		keys[f.Key] = true
	}
	return nil
}

// Clone returns a deep copy of c.
func (c BoardConfig) Clone() BoardConfig {
	out := BoardConfig{
		GpioDrivers:  append([]GpioDriver(nil), c.GpioDrivers...),
		UartChannels: make([]UartConfig, len(c.UartChannels)),
		SDCards:      append([]SDCardConfig(nil), c.SDCards...),
		FrameBuffers: append([]FrameBufferConfig(nil), c.FrameBuffers...),
	}
	for i, u := range c.UartChannels {
		u.RxPinOverride = clonePin(u.RxPinOverride)
		u.TxPinOverride = clonePin(u.TxPinOverride)
		out.UartChannels[i] = u
	}
	return out
}

func clonePin(p *uint16) *uint16 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (c BoardConfig) simConfig() sim.Config {
	var out sim.Config
	for _, g := range c.GpioDrivers {
		out.Pins = append(out.Pins, sim.PinConfig{
			ID:         g.PinID,
			Digital:    g.Mode.digital(),
			Analog:     g.Mode.analog(),
			AllowRead:  g.AllowRead,
			AllowWrite: g.AllowWrite,
		})
	}
	for _, u := range c.UartChannels {
		out.Uarts = append(out.Uarts, sim.UartConfig{
			BaudRate:       u.BaudRate,
			RxBufferLength: u.RxBufferLength,
			TxBufferLength: u.TxBufferLength,
			FlushThreshold: u.FlushingThreshold,
			RxPinOverride:  u.RxPinOverride,
			TxPinOverride:  u.TxPinOverride,
		})
	}
	for _, sd := range c.SDCards {
		out.SDCards = append(out.SDCards, sim.SDCardConfig{ChipSelect: sd.ChipSelect, RootDir: sd.RootDir})
	}
	for _, f := range c.FrameBuffers {
		out.FrameBuffers = append(out.FrameBuffers, sim.FrameBufferConfig{
			Key:        f.Key,
			AllowWrite: f.AllowWrite,
			Width:      f.Width,
			Height:     f.Height,
			Freq:       f.Freq,
		})
	}
	return out
}
