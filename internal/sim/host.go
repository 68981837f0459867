package sim

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/buckleypaul/vboard/internal/logbuf"
	"github.com/buckleypaul/vboard/internal/wire"
)

// Host runs each compiled sketch as a child process of the current program.
// Peripheral state stays in this process and the sketch reaches it through
// the wire protocol.
type Host struct {
	log     zerolog.Logger
	env     []string
	dir     string
	waitFor time.Duration
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the logger used for session events.
func WithLogger(l zerolog.Logger) HostOption {
	return func(h *Host) { h.log = l }
}

// WithEnv appends variables to the sketch process environment.
func WithEnv(env ...string) HostOption {
	return func(h *Host) { h.env = append(h.env, env...) }
}

// WithDir sets the working directory of sketch processes.
func WithDir(dir string) HostOption {
	return func(h *Host) { h.dir = dir }
}

// NewHost returns a Host backend.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		log:     zerolog.Nop(),
		waitFor: 2 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// NewSession returns a Clean session.
func (h *Host) NewSession() Session {
	return &hostSession{
		host:   h,
		runlog: logbuf.New(),
		gate:   newGate(),
	}
}

type hostSession struct {
	host *Host

	mu         sync.Mutex
	status     Status
	cfg        Config
	artifact   string
	devs       *devices
	proc       *os.Process
	done       chan struct{}
	exited     bool
	exitCode   int
	terminated bool

	gate   *gate
	runlog *logbuf.Buffer
}

func (s *hostSession) Configure(cfg Config) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusClean {
		return false
	}
	cfg = cfg.Clone()
	for _, sd := range cfg.SDCards {
		if err := os.MkdirAll(sd.RootDir, 0o755); err != nil {
			s.host.log.Error().Err(err).Str("root", sd.RootDir).Msg("prepare sd card")
			return false
		}
	}
	s.cfg = cfg
	s.devs = newDevices(cfg)
	s.status = StatusConfigured
	return true
}

func (s *hostSession) Attach(artifact string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusConfigured {
		return false
	}
	info, err := os.Stat(artifact)
	if err != nil || !info.Mode().IsRegular() {
		s.host.log.Error().Err(err).Str("artifact", artifact).Msg("attach sketch")
		return false
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		s.host.log.Error().Str("artifact", artifact).Msg("sketch artifact is not executable")
		return false
	}
	s.artifact = artifact
	return true
}

func (s *hostSession) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusConfigured || s.artifact == "" {
		return false
	}
	if err := s.spawn(); err != nil {
		s.host.log.Error().Err(err).Str("artifact", s.artifact).Msg("start sketch")
		return false
	}
	s.status = StatusRunning
	s.host.log.Debug().Str("artifact", s.artifact).Int("pid", s.proc.Pid).Msg("sketch started")
	return true
}

// spawn launches the sketch. The caller holds s.mu.
func (s *hostSession) spawn() error {
	manifest, err := s.manifest().Encode()
	if err != nil {
		return err
	}

	// responses flow host -> sketch, requests sketch -> host
	respR, respW, err := os.Pipe()
	if err != nil {
		return errors.Wrap(err, "response pipe")
	}
	reqR, reqW, err := os.Pipe()
	if err != nil {
		respR.Close()
		respW.Close()
		return errors.Wrap(err, "request pipe")
	}

	cmd := exec.Command(s.artifact)
	cmd.Dir = s.host.dir
	cmd.Env = append(append(os.Environ(), s.host.env...), wire.EnvManifest+"="+manifest)
	cmd.ExtraFiles = []*os.File{respR, reqW}
	cmd.Stdout = s.runlog
	cmd.Stderr = s.runlog
	cmd.WaitDelay = s.host.waitFor

	if err := cmd.Start(); err != nil {
		respR.Close()
		respW.Close()
		reqR.Close()
		reqW.Close()
		return errors.Wrap(err, "exec sketch")
	}
	// the child owns its ends now
	respR.Close()
	reqW.Close()

	s.proc = cmd.Process
	s.done = make(chan struct{})
	s.exited = false
	s.exitCode = 0
	s.terminated = false
	s.gate.open()

	go s.serve(s.devs, s.gate, reqR, respW)
	go s.wait(cmd, s.runlog, s.gate, reqR, respW, s.done)
	return nil
}

func (s *hostSession) manifest() wire.Manifest {
	var m wire.Manifest
	for _, p := range s.cfg.Pins {
		m.Pins = append(m.Pins, wire.Pin{
			ID:      p.ID,
			Digital: p.Digital,
			Analog:  p.Analog,
			Read:    p.AllowRead,
			Write:   p.AllowWrite,
		})
	}
	for _, u := range s.cfg.Uarts {
		m.Uarts = append(m.Uarts, wire.Uart{
			BaudRate:       u.BaudRate,
			RxBufferLength: u.RxBufferLength,
			TxBufferLength: u.TxBufferLength,
			FlushThreshold: u.FlushThreshold,
			RxPin:          u.RxPinOverride,
			TxPin:          u.TxPinOverride,
		})
	}
	for _, sd := range s.cfg.SDCards {
		m.SDCards = append(m.SDCards, wire.SDCard{ChipSelect: sd.ChipSelect, Root: sd.RootDir})
	}
	for _, f := range s.cfg.FrameBuffers {
		m.FrameBuffers = append(m.FrameBuffers, wire.FrameBuffer{Key: f.Key, Input: f.AllowWrite})
	}
	return m
}

// serve answers sketch requests until the request pipe closes.
func (s *hostSession) serve(devs *devices, g *gate, reqR io.Reader, respW io.Writer) {
	br := bufio.NewReader(reqR)
	for {
		req, err := wire.ReadRequest(br)
		if err != nil {
			return
		}
		if !g.wait() {
			return
		}
		resp := devs.handle(req)
		if resp.Status != wire.StatusOK {
			s.host.log.Debug().
				Stringer("op", req.Op).
				Uint16("device", req.Device).
				Stringer("status", resp.Status).
				Msg("sketch request refused")
		}
		if err := wire.WriteResponse(respW, resp); err != nil {
			return
		}
	}
}

func (s *hostSession) wait(cmd *exec.Cmd, runlog *logbuf.Buffer, g *gate, reqR, respW io.Closer, done chan struct{}) {
	err := cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	reqR.Close()
	respW.Close()
	runlog.Close()
	g.release()

	s.mu.Lock()
	s.exited = true
	s.exitCode = code
	if s.status == StatusRunning || s.status == StatusSuspended {
		s.status = StatusStopped
	}
	terminated := s.terminated
	s.mu.Unlock()
	close(done)

	if !terminated {
		s.host.log.Debug().Int("exit_code", code).Msg("sketch exited")
	}
}

func (s *hostSession) Tick() ExitInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited && !s.terminated {
		return ExitInfo{Exited: true, Code: s.exitCode}
	}
	return ExitInfo{}
}

func (s *hostSession) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *hostSession) Suspend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return false
	}
	s.gate.close()
	s.status = StatusSuspended
	return true
}

func (s *hostSession) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusSuspended {
		return false
	}
	s.gate.open()
	s.status = StatusRunning
	return true
}

func (s *hostSession) Terminate() bool {
	s.mu.Lock()
	if s.status != StatusRunning && s.status != StatusSuspended {
		s.mu.Unlock()
		return false
	}
	s.terminated = true
	proc, done, g := s.proc, s.done, s.gate
	s.mu.Unlock()

	g.release()
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.host.log.Error().Err(err).Int("pid", proc.Pid).Msg("kill sketch")
	}
	<-done

	s.mu.Lock()
	s.status = StatusStopped
	s.mu.Unlock()
	return true
}

func (s *hostSession) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusRunning, StatusSuspended:
		return false
	}
	s.cfg = Config{}
	s.artifact = ""
	s.devs = nil
	s.proc = nil
	s.done = nil
	s.exited = false
	s.exitCode = 0
	s.terminated = false
	s.runlog = logbuf.New()
	s.gate = newGate()
	s.status = StatusClean
	return true
}

func (s *hostSession) RuntimeLog(buf []byte) int {
	s.mu.Lock()
	log := s.runlog
	s.mu.Unlock()
	return log.Read(buf)
}

func (s *hostSession) RuntimeLogClosed() bool {
	s.mu.Lock()
	log := s.runlog
	s.mu.Unlock()
	return log.Finished()
}

func (s *hostSession) Pin(id uint16) Pin {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.devs == nil {
		return nil
	}
	if p, ok := s.devs.pins[id]; ok {
		return p
	}
	return nil
}

func (s *hostSession) Uart(index int) Uart {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.devs == nil || index < 0 || index >= len(s.devs.uarts) {
		return nil
	}
	return s.devs.uarts[index]
}

func (s *hostSession) FrameBuffer(key int) FrameBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.devs == nil {
		return nil
	}
	if f, ok := s.devs.frames[key]; ok {
		return f
	}
	return nil
}

// gate holds sketch requests while a session is suspended.
type gate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	closed   bool
	released bool
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// wait blocks while the gate is closed. It returns false once the gate has
// been released for shutdown.
func (g *gate) wait() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.closed && !g.released {
		g.cond.Wait()
	}
	return !g.released
}

func (g *gate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func (g *gate) open() {
	g.mu.Lock()
	g.closed = false
	g.released = false
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *gate) release() {
	g.mu.Lock()
	g.released = true
	g.mu.Unlock()
	g.cond.Broadcast()
}
