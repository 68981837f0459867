package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultLogLevel       = "info"
	DefaultPollInterval   = 20 * time.Millisecond
	DefaultSerialBaudRate = 115200
	DefaultHistoryLimit   = 100
)

// Environment overrides, applied after the config files.
const (
	EnvResourceDir  = "VBOARD_RESOURCE_DIR"
	EnvCMake        = "VBOARD_CMAKE"
	EnvLogLevel     = "VBOARD_LOG_LEVEL"
	EnvPollInterval = "VBOARD_POLL_INTERVAL"
)

// Config holds harness settings.
type Config struct {
	ResourceDir    string   `json:"resource_dir,omitempty"`
	CMake          string   `json:"cmake,omitempty"`
	ToolPath       []string `json:"tool_path,omitempty"`
	LogLevel       string   `json:"log_level,omitempty"`
	PollInterval   Duration `json:"poll_interval,omitempty"`
	SerialPort     string   `json:"serial_port,omitempty"`
	SerialBaudRate int      `json:"serial_baud_rate,omitempty"`
	HistoryLimit   int      `json:"history_limit,omitempty"`
}

// Duration is a time.Duration stored as a string such as "50ms".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		LogLevel:       DefaultLogLevel,
		PollInterval:   Duration(DefaultPollInterval),
		SerialBaudRate: DefaultSerialBaudRate,
		HistoryLimit:   DefaultHistoryLimit,
	}
}

// Load reads and merges the config layers.
// Order: defaults → global (~/.config/vboard/config.json) → project
// (<project>/.vboard/config.json) → environment.
func Load(projectRoot string) (Config, error) {
	cfg := Defaults()

	if home, err := os.UserHomeDir(); err == nil {
		mergeFromFile(&cfg, filepath.Join(home, ".config", "vboard", "config.json"))
	}
	if projectRoot != "" {
		mergeFromFile(&cfg, filepath.Join(projectRoot, ".vboard", "config.json"))
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to the project .vboard/config.json by default, or to the
// global config if global is true.
func Save(cfg Config, projectRoot string, global bool) error {
	var dir string
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".config", "vboard")
	} else {
		dir = filepath.Join(projectRoot, ".vboard")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Logger returns a console logger at the configured level.
func (c Config) Logger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "log level %q", c.LogLevel)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger(), nil
}

// Poll returns the polling interval for logs and board ticks.
func (c Config) Poll() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.PollInterval)
}

func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}

	if fileCfg.ResourceDir != "" {
		cfg.ResourceDir = fileCfg.ResourceDir
	}
	if fileCfg.CMake != "" {
		cfg.CMake = fileCfg.CMake
	}
	if len(fileCfg.ToolPath) > 0 {
		cfg.ToolPath = fileCfg.ToolPath
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.PollInterval != 0 {
		cfg.PollInterval = fileCfg.PollInterval
	}
	if fileCfg.SerialPort != "" {
		cfg.SerialPort = fileCfg.SerialPort
	}
	if fileCfg.SerialBaudRate != 0 {
		cfg.SerialBaudRate = fileCfg.SerialBaudRate
	}
	if fileCfg.HistoryLimit != 0 {
		cfg.HistoryLimit = fileCfg.HistoryLimit
	}
}
