// Package wire defines the framed protocol spoken between the host engine
// and a running sketch process.
//
// The sketch sends requests on file descriptor 4 and receives responses on
// file descriptor 3. Exactly one request is in flight at a time. All integers
// are little-endian.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// File descriptors inherited by the sketch process.
const (
	ResponseFD = 3
	RequestFD  = 4
)

// MaxPayload bounds the payload of a single frame.
const MaxPayload = 16 << 20

// Op identifies a request.
type Op uint8

const (
	OpDigitalRead Op = iota + 1
	OpDigitalWrite
	OpAnalogRead
	OpAnalogWrite
	OpUartAvailable
	OpUartRead
	OpUartWrite
	OpFrameGeometry
	OpFrameRead
	OpFrameWrite
)

func (o Op) String() string {
	switch o {
	case OpDigitalRead:
		return "digital-read"
	case OpDigitalWrite:
		return "digital-write"
	case OpAnalogRead:
		return "analog-read"
	case OpAnalogWrite:
		return "analog-write"
	case OpUartAvailable:
		return "uart-available"
	case OpUartRead:
		return "uart-read"
	case OpUartWrite:
		return "uart-write"
	case OpFrameGeometry:
		return "frame-geometry"
	case OpFrameRead:
		return "frame-read"
	case OpFrameWrite:
		return "frame-write"
	default:
		return "unknown"
	}
}

// Status is the outcome of a request.
type Status uint8

const (
	StatusOK Status = iota
	StatusNoDevice
	StatusDenied
	StatusBadRequest
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoDevice:
		return "no such device"
	case StatusDenied:
		return "access denied"
	case StatusBadRequest:
		return "bad request"
	default:
		return "unknown status"
	}
}

// Request is sent by the sketch.
type Request struct {
	Op      Op
	Device  uint16
	Arg     uint32
	Payload []byte
}

// Response is sent by the host for every request.
type Response struct {
	Status  Status
	Value   uint32
	Payload []byte
}

const (
	requestHeaderLen  = 1 + 2 + 4 + 4
	responseHeaderLen = 1 + 4 + 4
)

// WriteRequest encodes r onto w.
func WriteRequest(w io.Writer, r Request) error {
	if len(r.Payload) > MaxPayload {
		return errors.Errorf("payload of %d bytes exceeds limit", len(r.Payload))
	}
	buf := make([]byte, requestHeaderLen, requestHeaderLen+len(r.Payload))
	buf[0] = byte(r.Op)
	binary.LittleEndian.PutUint16(buf[1:], r.Device)
	binary.LittleEndian.PutUint32(buf[3:], r.Arg)
	binary.LittleEndian.PutUint32(buf[7:], uint32(len(r.Payload)))
	buf = append(buf, r.Payload...)
	_, err := w.Write(buf)
	return err
}

// ReadRequest decodes one request from r.
func ReadRequest(r io.Reader) (Request, error) {
	var hdr [requestHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Request{}, err
	}
	req := Request{
		Op:     Op(hdr[0]),
		Device: binary.LittleEndian.Uint16(hdr[1:]),
		Arg:    binary.LittleEndian.Uint32(hdr[3:]),
	}
	payload, err := readPayload(r, binary.LittleEndian.Uint32(hdr[7:]))
	if err != nil {
		return Request{}, err
	}
	req.Payload = payload
	return req, nil
}

// WriteResponse encodes r onto w.
func WriteResponse(w io.Writer, r Response) error {
	if len(r.Payload) > MaxPayload {
		return errors.Errorf("payload of %d bytes exceeds limit", len(r.Payload))
	}
	buf := make([]byte, responseHeaderLen, responseHeaderLen+len(r.Payload))
	buf[0] = byte(r.Status)
	binary.LittleEndian.PutUint32(buf[1:], r.Value)
	binary.LittleEndian.PutUint32(buf[5:], uint32(len(r.Payload)))
	buf = append(buf, r.Payload...)
	_, err := w.Write(buf)
	return err
}

// ReadResponse decodes one response from r.
func ReadResponse(r io.Reader) (Response, error) {
	var hdr [responseHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Response{}, err
	}
	resp := Response{
		Status: Status(hdr[0]),
		Value:  binary.LittleEndian.Uint32(hdr[1:]),
	}
	payload, err := readPayload(r, binary.LittleEndian.Uint32(hdr[5:]))
	if err != nil {
		return Response{}, err
	}
	resp.Payload = payload
	return resp, nil
}

func readPayload(r io.Reader, n uint32) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if n > MaxPayload {
		return nil, errors.Errorf("payload of %d bytes exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "read payload")
	}
	return payload, nil
}

// Geometry describes a frame buffer as configured by the sketch.
type Geometry struct {
	Width  uint16
	Height uint16
	Freq   uint8
	HFlip  bool
	VFlip  bool
}

const geometryLen = 6

// Encode packs g into a request payload.
func (g Geometry) Encode() []byte {
	buf := make([]byte, geometryLen)
	binary.LittleEndian.PutUint16(buf[0:], g.Width)
	binary.LittleEndian.PutUint16(buf[2:], g.Height)
	buf[4] = g.Freq
	if g.HFlip {
		buf[5] |= 1
	}
	if g.VFlip {
		buf[5] |= 2
	}
	return buf
}

// DecodeGeometry unpacks a payload produced by Geometry.Encode.
func DecodeGeometry(p []byte) (Geometry, error) {
	if len(p) != geometryLen {
		return Geometry{}, errors.Errorf("geometry payload has %d bytes, want %d", len(p), geometryLen)
	}
	return Geometry{
		Width:  binary.LittleEndian.Uint16(p[0:]),
		Height: binary.LittleEndian.Uint16(p[2:]),
		Freq:   p[4],
		HFlip:  p[5]&1 != 0,
		VFlip:  p[5]&2 != 0,
	}, nil
}
