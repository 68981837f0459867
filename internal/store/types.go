package store

import "time"

// CompileRecord captures the result of a sketch compile.
type CompileRecord struct {
	SketchID  string    `json:"sketch_id"`
	Source    string    `json:"source"`
	FQBN      string    `json:"fqbn"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Duration  string    `json:"duration"`
	Artifact  string    `json:"artifact,omitempty"`
	LogFile   string    `json:"log_file,omitempty"`
}

// RunRecord captures one board session.
type RunRecord struct {
	SketchID  string    `json:"sketch_id"`
	Board     string    `json:"board"`
	Timestamp time.Time `json:"timestamp"`
	Duration  string    `json:"duration"`
	ExitCode  int       `json:"exit_code"`
	// Terminated is set when the session was stopped before the
	// firmware exited.
	Terminated bool   `json:"terminated,omitempty"`
	Bridge     string `json:"bridge,omitempty"`
	LogFile    string `json:"log_file,omitempty"`
}
