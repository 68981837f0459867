package wire

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// EnvManifest names the environment variable carrying the board manifest.
const EnvManifest = "VBOARD_BOARD"

// Manifest tells a sketch which devices the board exposes.
type Manifest struct {
	Pins         []Pin         `json:"pins,omitempty"`
	Uarts        []Uart        `json:"uarts,omitempty"`
	SDCards      []SDCard      `json:"sd_cards,omitempty"`
	FrameBuffers []FrameBuffer `json:"frame_buffers,omitempty"`
}

type Pin struct {
	ID      uint16 `json:"id"`
	Digital bool   `json:"digital"`
	Analog  bool   `json:"analog"`
	Read    bool   `json:"read"`
	Write   bool   `json:"write"`
}

type Uart struct {
	BaudRate       uint32  `json:"baud_rate"`
	RxBufferLength int     `json:"rx_buffer_length"`
	TxBufferLength int     `json:"tx_buffer_length"`
	FlushThreshold int     `json:"flushing_threshold"`
	RxPin          *uint16 `json:"rx_pin,omitempty"`
	TxPin          *uint16 `json:"tx_pin,omitempty"`
}

type SDCard struct {
	ChipSelect uint16 `json:"cspin"`
	Root       string `json:"root_dir"`
}

type FrameBuffer struct {
	Key int `json:"key"`
	// Input frame buffers are written by the host and read by the sketch.
	Input bool `json:"input"`
}

// Encode renders m for the environment.
func (m Manifest) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "encode manifest")
	}
	return string(data), nil
}

// DecodeManifest parses a manifest produced by Encode.
func DecodeManifest(s string) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Manifest{}, errors.Wrap(err, "decode manifest")
	}
	return m, nil
}
