package vboard

import (
	"github.com/rs/zerolog"

	"github.com/buckleypaul/vboard/internal/sim"
)

type options struct {
	logger    zerolog.Logger
	cmake     string
	toolPath  []string
	sketchEnv []string
	workDir   string
	backend   sim.Backend
}

func newOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Toolchain or a Board.
type Option func(*options)

// WithLogger sets the logger for lifecycle and build events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCMake overrides the cmake executable used by a Toolchain.
func WithCMake(path string) Option {
	return func(o *options) { o.cmake = path }
}

// WithToolPath prepends directories to PATH for the build.
func WithToolPath(dirs ...string) Option {
	return func(o *options) { o.toolPath = append(o.toolPath, dirs...) }
}

// WithSketchEnv adds KEY=VALUE pairs to the environment of sketches run by
// a Board.
func WithSketchEnv(env ...string) Option {
	return func(o *options) { o.sketchEnv = append(o.sketchEnv, env...) }
}

// WithWorkDir sets the working directory of sketches run by a Board.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

func withBackend(b sim.Backend) Option {
	return func(o *options) { o.backend = b }
}
