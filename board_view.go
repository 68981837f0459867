package vboard

import (
	"sort"

	"github.com/pkg/errors"
)

// BoardView holds the device accessors of one session. The accessors stay
// valid until the session is stopped or rebooted.
type BoardView struct {
	GpioPins     map[uint16]*GpioPin
	UartChannels []*UartChannel
	FrameBuffers map[int]*FrameBuffer
}

// buildView resolves every configured device against the session. The
// caller holds b.mu.
func (b *Board) buildView(epoch uint64) *BoardView {
	v := &BoardView{
		GpioPins:     make(map[uint16]*GpioPin, len(b.cfg.GpioDrivers)),
		UartChannels: make([]*UartChannel, 0, len(b.cfg.UartChannels)),
		FrameBuffers: make(map[int]*FrameBuffer, len(b.cfg.FrameBuffers)),
	}
	for _, g := range b.cfg.GpioDrivers {
		if b.session.Pin(g.PinID) == nil {
			panic(errors.Errorf("vboard: backend has no pin %d", g.PinID))
		}
		v.GpioPins[g.PinID] = &GpioPin{b: b, epoch: epoch, info: g}
	}
	for i, u := range b.cfg.UartChannels {
		if b.session.Uart(i) == nil {
			panic(errors.Errorf("vboard: backend has no uart %d", i))
		}
		v.UartChannels = append(v.UartChannels, &UartChannel{b: b, epoch: epoch, index: i, info: u})
	}
	for _, f := range b.cfg.FrameBuffers {
		if b.session.FrameBuffer(f.Key) == nil {
			panic(errors.Errorf("vboard: backend has no frame buffer %d", f.Key))
		}
		v.FrameBuffers[f.Key] = &FrameBuffer{b: b, epoch: epoch, info: f}
	}
	return v
}

// Pin returns the accessor for pin id, or nil if the pin is not configured.
func (v *BoardView) Pin(id uint16) *GpioPin {
	return v.GpioPins[id]
}

// Uart returns channel i in declaration order, or nil.
func (v *BoardView) Uart(i int) *UartChannel {
	if i < 0 || i >= len(v.UartChannels) {
		return nil
	}
	return v.UartChannels[i]
}

// FrameBuffer returns the frame buffer registered under key, or nil.
func (v *BoardView) FrameBuffer(key int) *FrameBuffer {
	return v.FrameBuffers[key]
}

// PinIDs returns the configured pin ids in ascending order.
func (v *BoardView) PinIDs() []uint16 {
	ids := make([]uint16, 0, len(v.GpioPins))
	for id := range v.GpioPins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
