package vboard

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/buckleypaul/vboard/internal/sim"
)

// Status is the run state of a board session as seen by the caller.
type Status int

const (
	Stopped Status = iota
	Running
	Suspended
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	default:
		return "stopped"
	}
}

func statusOf(s sim.Status) Status {
	switch s {
	case sim.StatusRunning:
		return Running
	case sim.StatusSuspended:
		return Suspended
	default:
		return Stopped
	}
}

// Board owns at most one simulation session at a time.
type Board struct {
	backend sim.Backend
	log     zerolog.Logger

	mu      sync.RWMutex
	session sim.Session
	view    *BoardView
	// epoch changes whenever the session is torn down or rebuilt, which
	// invalidates handles and accessors from earlier sessions.
	epoch  uint64
	cfg    BoardConfig
	sketch *Sketch
}

// NewBoard returns a board without a session.
func NewBoard(opts ...Option) *Board {
	o := newOptions(opts)
	backend := o.backend
	if backend == nil {
		backend = sim.NewHost(
			sim.WithLogger(o.logger),
			sim.WithEnv(o.sketchEnv...),
			sim.WithDir(o.workDir),
		)
	}
	return &Board{
		backend: backend,
		log:     o.logger,
	}
}

// Status reports the state of the current session, or Stopped without one.
func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return Stopped
	}
	return statusOf(b.session.Status())
}

// Start runs sk on a fresh session configured with cfg.
//
// Start panics if the backend refuses to configure, attach or start once
// cfg and sk have been accepted; that means the simulation environment
// itself is broken.
func (b *Board) Start(cfg BoardConfig, sk *Sketch) (*BoardHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		return nil, ErrAlreadyRunning
	}
	if sk == nil || !sk.IsCompiled() {
		return nil, ErrSketchNotCompiled
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "board config")
	}

	b.cfg = cfg.Clone()
	b.sketch = sk
	b.session = b.backend.NewSession()
	b.boot()
	b.log.Info().Str("sketch", sk.ID().String()).Uint64("epoch", b.epoch).Msg("board started")
	return &BoardHandle{b: b, epoch: b.epoch}, nil
}

// boot configures, attaches and starts b.session and publishes a new view.
// The caller holds b.mu.
func (b *Board) boot() {
	s := b.session
	if !s.Configure(b.cfg.simConfig()) {
		panic(errors.New("vboard: backend rejected board configuration"))
	}
	if !s.Attach(b.sketch.Artifact()) {
		panic(errors.Errorf("vboard: backend could not attach %s", b.sketch.Artifact()))
	}
	if !s.Start() {
		panic(errors.New("vboard: backend could not start the sketch"))
	}
	b.epoch++
	b.view = b.buildView(b.epoch)
}

// live returns the session if epoch is current. The caller holds b.mu.
func (b *Board) live(epoch uint64) (sim.Session, error) {
	if b.session == nil || b.epoch != epoch {
		return nil, ErrSessionEnded
	}
	return b.session, nil
}

// device runs fn against the session of epoch under the read lock. When
// write is set, fn is refused once the firmware has exited.
func (b *Board) device(epoch uint64, write bool, fn func(sim.Session) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, err := b.live(epoch)
	if err != nil {
		return err
	}
	if write && s.Tick().Exited {
		return ErrBoardExited
	}
	return fn(s)
}

// BoardHandle controls the session started by Board.Start. It must not be
// used concurrently with itself or the Board.
type BoardHandle struct {
	b     *Board
	epoch uint64
}

func (h *BoardHandle) Status() Status {
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()
	s, err := h.b.live(h.epoch)
	if err != nil {
		return Stopped
	}
	return statusOf(s.Status())
}

// Suspend pauses the firmware. It returns false unless the session was
// running.
func (h *BoardHandle) Suspend() bool {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	s, err := h.b.live(h.epoch)
	if err != nil {
		return false
	}
	ok := s.Suspend()
	h.b.log.Debug().Bool("ok", ok).Stringer("status", statusOf(s.Status())).Msg("suspend")
	return ok
}

// Resume continues a suspended session. It returns false unless the
// session was suspended.
func (h *BoardHandle) Resume() bool {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	s, err := h.b.live(h.epoch)
	if err != nil {
		return false
	}
	ok := s.Resume()
	h.b.log.Debug().Bool("ok", ok).Stringer("status", statusOf(s.Status())).Msg("resume")
	return ok
}

// Tick polls the firmware. It returns an *ExitError once the firmware has
// exited on its own, and keeps returning the same error afterwards.
func (h *BoardHandle) Tick() error {
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()
	s, err := h.b.live(h.epoch)
	if err != nil {
		return err
	}
	if info := s.Tick(); info.Exited {
		return &ExitError{Code: info.Code}
	}
	return nil
}

// Terminate kills a running or suspended session. The session cannot be
// started again without Reboot.
func (h *BoardHandle) Terminate() bool {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	s, err := h.b.live(h.epoch)
	if err != nil {
		return false
	}
	ok := s.Terminate()
	h.b.log.Info().Bool("ok", ok).Msg("board terminated")
	return ok
}

// Reboot restarts the firmware from scratch with the same configuration
// and sketch. Accessors from before the reboot become stale; take a fresh
// View.
func (h *BoardHandle) Reboot() error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	s, err := h.b.live(h.epoch)
	if err != nil {
		return err
	}
	switch s.Status() {
	case sim.StatusRunning, sim.StatusSuspended:
		if !s.Terminate() {
			panic(errors.New("vboard: backend could not terminate the sketch"))
		}
	}
	if !s.Reset() {
		panic(errors.New("vboard: backend could not reset the session"))
	}
	h.b.boot()
	h.epoch = h.b.epoch
	h.b.log.Info().Uint64("epoch", h.epoch).Msg("board rebooted")
	return nil
}

// Stop ends the session and returns the firmware exit code, or 0 if it had
// to be terminated. The handle, its view and the Board's session are
// released; the Board can be started again.
func (h *BoardHandle) Stop() int {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	s, err := h.b.live(h.epoch)
	if err != nil {
		return 0
	}
	code := 0
	if info := s.Tick(); info.Exited {
		code = info.Code
	} else {
		s.Terminate()
	}
	s.Reset()

	h.b.session = nil
	h.b.view = nil
	h.b.sketch = nil
	h.b.epoch++
	h.b.log.Info().Int("exit_code", code).Msg("board stopped")
	return code
}

// View returns the device accessors of the session. It is nil once the
// handle is stale.
func (h *BoardHandle) View() *BoardView {
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()
	if _, err := h.b.live(h.epoch); err != nil {
		return nil
	}
	return h.b.view
}

// Log returns a reader over the firmware's runtime output.
func (h *BoardHandle) Log() *BoardLogReader {
	return &BoardLogReader{logReader{src: runtimeLog{b: h.b, epoch: h.epoch}}}
}

// runtimeLog reads the session log through the board so a stale reader
// reports a finished, empty log.
type runtimeLog struct {
	b     *Board
	epoch uint64
}

func (r runtimeLog) Read(p []byte) int {
	r.b.mu.RLock()
	defer r.b.mu.RUnlock()
	s, err := r.b.live(r.epoch)
	if err != nil {
		return 0
	}
	return s.RuntimeLog(p)
}

func (r runtimeLog) Finished() bool {
	r.b.mu.RLock()
	defer r.b.mu.RUnlock()
	s, err := r.b.live(r.epoch)
	if err != nil {
		return true
	}
	return s.RuntimeLogClosed()
}
