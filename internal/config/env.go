package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

func envString(key string, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, errors.Wrapf(err, "parse %s", key)
		}
		return d, nil
	}
	return def, nil
}

func applyEnv(cfg *Config) error {
	cfg.ResourceDir = envString(EnvResourceDir, cfg.ResourceDir)
	cfg.CMake = envString(EnvCMake, cfg.CMake)
	cfg.LogLevel = envString(EnvLogLevel, cfg.LogLevel)
	poll, err := envDuration(EnvPollInterval, time.Duration(cfg.PollInterval))
	if err != nil {
		return err
	}
	cfg.PollInterval = Duration(poll)
	return nil
}
