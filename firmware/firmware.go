// Package firmware is the sketch-side runtime. A compiled sketch calls
// Connect once at startup and then drives the board's devices through the
// returned Board.
package firmware

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/buckleypaul/vboard/internal/wire"
)

var (
	ErrNoDevice   = errors.New("no such device")
	ErrDenied     = errors.New("access denied")
	ErrBadRequest = errors.New("bad request")
)

type (
	Manifest = wire.Manifest
	Geometry = wire.Geometry
)

// Board is the sketch's connection to the host.
type Board struct {
	manifest wire.Manifest

	mu   sync.Mutex
	req  io.WriteCloser
	resp *bufio.Reader
	rc   io.Closer

	serials map[int]*Serial
}

// Connect attaches to the host that started this process.
func Connect() (*Board, error) {
	raw, ok := os.LookupEnv(wire.EnvManifest)
	if !ok {
		return nil, errors.Errorf("%s is not set, not running under a board", wire.EnvManifest)
	}
	m, err := wire.DecodeManifest(raw)
	if err != nil {
		return nil, err
	}
	resp := os.NewFile(wire.ResponseFD, "vboard-response")
	req := os.NewFile(wire.RequestFD, "vboard-request")
	if resp == nil || req == nil {
		return nil, errors.New("board descriptors are not open")
	}
	return newBoard(m, req, resp), nil
}

func newBoard(m wire.Manifest, req io.WriteCloser, resp io.ReadCloser) *Board {
	return &Board{
		manifest: m,
		req:      req,
		resp:     bufio.NewReader(resp),
		rc:       resp,
		serials:  make(map[int]*Serial),
	}
}

// Manifest returns the devices the board exposes.
func (b *Board) Manifest() Manifest {
	return b.manifest
}

// Close flushes pending serial output and releases the connection.
func (b *Board) Close() error {
	for _, s := range b.serials {
		s.Flush()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.req.Close()
	if cerr := b.rc.Close(); err == nil {
		err = cerr
	}
	return err
}

func (b *Board) call(req wire.Request) (wire.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := wire.WriteRequest(b.req, req); err != nil {
		return wire.Response{}, errors.Wrapf(err, "send %s", req.Op)
	}
	resp, err := wire.ReadResponse(b.resp)
	if err != nil {
		return wire.Response{}, errors.Wrapf(err, "receive %s", req.Op)
	}
	switch resp.Status {
	case wire.StatusOK:
		return resp, nil
	case wire.StatusNoDevice:
		return resp, errors.Wrapf(ErrNoDevice, "%s device %d", req.Op, req.Device)
	case wire.StatusDenied:
		return resp, errors.Wrapf(ErrDenied, "%s device %d", req.Op, req.Device)
	default:
		return resp, errors.Wrapf(ErrBadRequest, "%s device %d", req.Op, req.Device)
	}
}

func (b *Board) DigitalRead(pin uint16) (bool, error) {
	resp, err := b.call(wire.Request{Op: wire.OpDigitalRead, Device: pin})
	return resp.Value != 0, err
}

func (b *Board) DigitalWrite(pin uint16, v bool) error {
	var arg uint32
	if v {
		arg = 1
	}
	_, err := b.call(wire.Request{Op: wire.OpDigitalWrite, Device: pin, Arg: arg})
	return err
}

func (b *Board) AnalogRead(pin uint16) (uint16, error) {
	resp, err := b.call(wire.Request{Op: wire.OpAnalogRead, Device: pin})
	return uint16(resp.Value), err
}

func (b *Board) AnalogWrite(pin uint16, v uint16) error {
	_, err := b.call(wire.Request{Op: wire.OpAnalogWrite, Device: pin, Arg: uint32(v)})
	return err
}
