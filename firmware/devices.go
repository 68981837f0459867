package firmware

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/buckleypaul/vboard/internal/wire"
)

// FrameBuffer is a camera input or display output.
type FrameBuffer struct {
	b    *Board
	key  int
	info wire.FrameBuffer
	geo  Geometry
}

// FrameBuffer returns the frame buffer registered under key.
func (b *Board) FrameBuffer(key int) (*FrameBuffer, error) {
	for _, f := range b.manifest.FrameBuffers {
		if f.Key == key {
			return &FrameBuffer{b: b, key: key, info: f}, nil
		}
	}
	return nil, errors.Wrapf(ErrNoDevice, "frame buffer %d", key)
}

// Geometry returns the geometry set by Begin.
func (f *FrameBuffer) Geometry() Geometry {
	return f.geo
}

// Input reports whether the host feeds this buffer.
func (f *FrameBuffer) Input() bool {
	return f.info.Input
}

// Begin sets the buffer geometry. Earlier frames are discarded.
func (f *FrameBuffer) Begin(g Geometry) error {
	if _, err := f.b.call(wire.Request{Op: wire.OpFrameGeometry, Device: uint16(f.key), Payload: g.Encode()}); err != nil {
		return err
	}
	f.geo = g
	return nil
}

// Read returns the latest host frame in RGB888. It is empty until the host
// has written one.
func (f *FrameBuffer) Read() ([]byte, error) {
	resp, err := f.b.call(wire.Request{Op: wire.OpFrameRead, Device: uint16(f.key)})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Write publishes an RGB888 frame to the host.
func (f *FrameBuffer) Write(frame []byte) error {
	_, err := f.b.call(wire.Request{Op: wire.OpFrameWrite, Device: uint16(f.key), Payload: frame})
	return err
}

// SDCard exposes the directory backing a simulated card.
type SDCard struct {
	root string
}

// SD returns the card wired to chip select pin cs.
func (b *Board) SD(cs uint16) (*SDCard, error) {
	for _, sd := range b.manifest.SDCards {
		if sd.ChipSelect == cs {
			return &SDCard{root: sd.Root}, nil
		}
	}
	return nil, errors.Wrapf(ErrNoDevice, "sd card on pin %d", cs)
}

func (c *SDCard) FS() fs.FS {
	return os.DirFS(c.root)
}

// path maps a card path onto the root directory. Names cannot climb out of
// the root.
func (c *SDCard) path(name string) string {
	return filepath.Join(c.root, filepath.Clean("/"+name))
}

func (c *SDCard) Open(name string) (*os.File, error) {
	return os.Open(c.path(name))
}

func (c *SDCard) Create(name string) (*os.File, error) {
	p := c.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return os.Create(p)
}

func (c *SDCard) Remove(name string) error {
	return os.Remove(c.path(name))
}
