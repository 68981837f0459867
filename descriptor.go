package vboard

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadBoardConfig reads a YAML board descriptor. UART fields left at zero
// take the defaults.
func LoadBoardConfig(path string) (BoardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BoardConfig{}, errors.Wrap(err, "read board descriptor")
	}
	cfg, err := ParseBoardConfig(data)
	if err != nil {
		return BoardConfig{}, errors.Wrap(err, path)
	}
	return cfg, nil
}

// ParseBoardConfig decodes and validates a YAML board descriptor.
func ParseBoardConfig(data []byte) (BoardConfig, error) {
	var cfg BoardConfig
	if err := decodeStrict(data, &cfg); err != nil {
		return BoardConfig{}, errors.Wrap(err, "parse board descriptor")
	}
	for i := range cfg.UartChannels {
		u := &cfg.UartChannels[i]
		if u.BaudRate == 0 {
			u.BaudRate = DefaultBaudRate
		}
		if u.RxBufferLength == 0 {
			u.RxBufferLength = DefaultUartBufferSize
		}
		if u.TxBufferLength == 0 {
			u.TxBufferLength = DefaultUartBufferSize
		}
	}
	if err := cfg.Validate(); err != nil {
		return BoardConfig{}, err
	}
	return cfg, nil
}

// LoadSketchConfig reads a YAML sketch descriptor.
func LoadSketchConfig(path string) (SketchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SketchConfig{}, errors.Wrap(err, "read sketch descriptor")
	}
	cfg, err := ParseSketchConfig(data)
	if err != nil {
		return SketchConfig{}, errors.Wrap(err, path)
	}
	return cfg, nil
}

// ParseSketchConfig decodes and validates a YAML sketch descriptor.
func ParseSketchConfig(data []byte) (SketchConfig, error) {
	var cfg SketchConfig
	if err := decodeStrict(data, &cfg); err != nil {
		return SketchConfig{}, errors.Wrap(err, "parse sketch descriptor")
	}
	if err := cfg.Validate(); err != nil {
		return SketchConfig{}, err
	}
	return cfg, nil
}

func decodeStrict(data []byte, v interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
