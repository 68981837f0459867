package serial

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/buckleypaul/vboard"
)

// Channel is the board side of a bridge. Both calls return immediately;
// Write may accept fewer bytes than offered and fails with
// vboard.ErrWouldBlock when it accepts none. *vboard.UartChannel
// implements it.
type Channel interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Open opens a host serial port in 8N1 mode.
func Open(portName string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", portName)
	}
	return port, nil
}

// Bridge copies bytes between a board UART and a host port. Bytes from
// the port that the UART cannot take yet are held back and retried on
// the next poll.
type Bridge struct {
	ch       Channel
	port     io.ReadWriteCloser
	interval time.Duration
	log      zerolog.Logger

	toBoard   atomic.Int64
	fromBoard atomic.Int64
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithInterval sets how often the UART is polled. Default 10ms.
func WithInterval(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l zerolog.Logger) BridgeOption {
	return func(b *Bridge) { b.log = l }
}

// NewBridge creates a bridge. The bridge owns port and closes it when Run
// returns.
func NewBridge(ch Channel, port io.ReadWriteCloser, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		ch:       ch,
		port:     port,
		interval: 10 * time.Millisecond,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Stats returns the bytes moved to and from the board so far.
func (b *Bridge) Stats() (toBoard, fromBoard int64) {
	return b.toBoard.Load(), b.fromBoard.Load()
}

// Run pumps data until ctx is cancelled, the port fails, or the board
// session ends. Cancellation returns nil.
func (b *Bridge) Run(ctx context.Context) error {
	dataCh := make(chan []byte, 16)
	errCh := make(chan error, 1)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.readLoop(dataCh, errCh, done)
	}()
	defer func() {
		close(done)
		b.port.Close()
		wg.Wait()
	}()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	buf := make([]byte, 1024)
	var pending []byte
	for {
		if err := b.fromUart(buf); err != nil {
			return err
		}
		var err error
		if pending, err = b.toUart(pending); err != nil {
			return err
		}

		// Take new port data only once the held-back bytes are delivered.
		var in <-chan []byte
		if len(pending) == 0 {
			in = dataCh
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			b.log.Error().Err(err).Msg("serial port read failed")
			return errors.Wrap(err, "read serial port")
		case data := <-in:
			pending = data
		case <-ticker.C:
		}
	}
}

func (b *Bridge) fromUart(buf []byte) error {
	for {
		n, err := b.ch.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := b.port.Write(buf[:n]); err != nil {
			b.log.Error().Err(err).Msg("serial port write failed")
			return errors.Wrap(err, "write serial port")
		}
		b.fromBoard.Add(int64(n))
	}
}

func (b *Bridge) toUart(pending []byte) ([]byte, error) {
	for len(pending) > 0 {
		n, err := b.ch.Write(pending)
		pending = pending[n:]
		b.toBoard.Add(int64(n))
		if errors.Is(err, vboard.ErrWouldBlock) {
			return pending, nil
		}
		if err != nil {
			return pending, err
		}
		if n == 0 {
			return pending, nil
		}
	}
	return nil, nil
}

func (b *Bridge) readLoop(dataCh chan<- []byte, errCh chan<- error, done <-chan struct{}) {
	buf := make([]byte, 1024)
	for {
		n, err := b.port.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case dataCh <- data:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case <-done:
			case errCh <- err:
			}
			return
		}
	}
}
