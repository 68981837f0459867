package firmware

import (
	"github.com/pkg/errors"

	"github.com/buckleypaul/vboard/internal/wire"
)

// ErrTxFull is returned by Flush when the host has not drained the channel.
var ErrTxFull = errors.New("serial transmit buffer full")

// Serial is one UART channel. Reads never block; writes are held back until
// the flushing threshold is reached.
type Serial struct {
	b       *Board
	index   int
	cfg     wire.Uart
	pending []byte
}

// Serial returns UART channel i.
func (b *Board) Serial(i int) (*Serial, error) {
	if i < 0 || i >= len(b.manifest.Uarts) {
		return nil, errors.Wrapf(ErrNoDevice, "uart %d", i)
	}
	if s, ok := b.serials[i]; ok {
		return s, nil
	}
	s := &Serial{b: b, index: i, cfg: b.manifest.Uarts[i]}
	b.serials[i] = s
	return s, nil
}

func (s *Serial) BaudRate() uint32 {
	return s.cfg.BaudRate
}

// Available reports how many received bytes are waiting.
func (s *Serial) Available() (int, error) {
	resp, err := s.b.call(wire.Request{Op: wire.OpUartAvailable, Device: uint16(s.index)})
	return int(resp.Value), err
}

// Read copies waiting bytes into p. It returns 0 when nothing is waiting.
func (s *Serial) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	resp, err := s.b.call(wire.Request{Op: wire.OpUartRead, Device: uint16(s.index), Arg: uint32(len(p))})
	if err != nil {
		return 0, err
	}
	return copy(p, resp.Payload), nil
}

// Write queues p for transmission.
func (s *Serial) Write(p []byte) (int, error) {
	s.pending = append(s.pending, p...)
	if len(s.pending) >= s.cfg.FlushThreshold {
		if err := s.Flush(); err != nil && !errors.Is(err, ErrTxFull) {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush hands queued bytes to the host. Bytes the host could not accept
// stay queued and ErrTxFull is returned.
func (s *Serial) Flush() error {
	for len(s.pending) > 0 {
		resp, err := s.b.call(wire.Request{Op: wire.OpUartWrite, Device: uint16(s.index), Payload: s.pending})
		if err != nil {
			return err
		}
		n := int(resp.Value)
		s.pending = s.pending[n:]
		if n == 0 {
			return ErrTxFull
		}
	}
	s.pending = nil
	return nil
}
