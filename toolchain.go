package vboard

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/buckleypaul/vboard/internal/cmake"
	"github.com/buckleypaul/vboard/internal/logbuf"
)

const (
	toolchainReady int32 = iota
	toolchainConsumed
)

// Toolchain builds one sketch. Compile may be called once; the paired
// BuildLogReader can be drained from another goroutine while it runs.
type Toolchain struct {
	driver *cmake.Driver
	log    *logbuf.Buffer
	logger zerolog.Logger
	state  atomic.Int32
}

// NewToolchain probes resourceDir and the CMake installation. Probe
// failures are returned as a ToolchainError.
func NewToolchain(resourceDir string, opts ...Option) (*Toolchain, *BuildLogReader, error) {
	o := newOptions(opts)
	driver := cmake.New(resourceDir,
		cmake.WithCMake(o.cmake),
		cmake.WithToolPath(o.toolPath...),
		cmake.WithLogger(o.logger),
	)
	log := logbuf.New()
	if err := toolchainError(driver.CheckEnvironment(log)); err != nil {
		o.logger.Error().Err(err).Str("resource_dir", resourceDir).Msg("toolchain environment unusable")
		return nil, nil, err
	}
	t := &Toolchain{
		driver: driver,
		log:    log,
		logger: o.logger,
	}
	return t, &BuildLogReader{logReader{src: log}, log}, nil
}

// ResourceDir returns the directory sketches are built against.
func (t *Toolchain) ResourceDir() string {
	return t.driver.ResourceDir()
}

// Compile builds sk. On success sk becomes compiled; on failure it is left
// untouched. The build log is closed when Compile returns.
func (t *Toolchain) Compile(sk *Sketch) error {
	if !t.state.CompareAndSwap(toolchainReady, toolchainConsumed) {
		return ToolchainAlreadyUsed
	}
	defer t.log.Close()

	if sk == nil {
		return SketchInvalid
	}
	if sk.IsCompiled() {
		fmt.Fprintf(t.log, "sketch %s is already compiled\n", sk.ID())
		return SketchInvalid
	}

	start := time.Now()
	log := t.logger.With().Str("sketch", sk.ID().String()).Logger()
	log.Info().Str("source", sk.Source()).Msg("compiling sketch")

	artifact, res := t.driver.Compile(sk.Config().request(sk.ID().String(), sk.Source()), t.log)
	if err := toolchainError(res); err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("compile failed")
		return err
	}
	sk.markCompiled(artifact)
	log.Info().Dur("duration", time.Since(start)).Msg("compile finished")
	return nil
}
