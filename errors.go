package vboard

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/buckleypaul/vboard/internal/cmake"
)

var (
	// ErrInvalidPath is returned when a sketch source is neither a sketch
	// file nor a directory holding one.
	ErrInvalidPath = errors.New("not a sketch file or sketch directory")

	ErrAlreadyRunning    = errors.New("board already has an active session")
	ErrSketchNotCompiled = errors.New("sketch is not compiled")

	// ErrSessionEnded is returned by handles and device accessors that
	// outlived the session they were created for.
	ErrSessionEnded = errors.New("board session has ended")
	// ErrBoardExited is returned by device writes once the firmware exited.
	ErrBoardExited = errors.New("firmware has exited")

	ErrNotDigital   = errors.New("pin is not digital")
	ErrNotAnalog    = errors.New("pin is not analog")
	ErrAccessDenied = errors.New("access denied")

	// ErrWouldBlock is returned by a UART write when the channel could not
	// accept a single byte. Retry later or enlarge the buffer.
	ErrWouldBlock = errors.New("uart send buffer full")

	ErrFrameSize     = errors.New("frame size does not match frame buffer geometry")
	ErrFrameReadOnly = errors.New("frame buffer is not writable from the host")
)

// ToolchainError is the failure code of a toolchain probe or compile.
type ToolchainError int

const (
	ResourceDirAbsent  = ToolchainError(cmake.ResourceDirAbsent)
	ResourceDirFile    = ToolchainError(cmake.ResourceDirFile)
	ResourceDirEmpty   = ToolchainError(cmake.ResourceDirEmpty)
	CMakeNotFound      = ToolchainError(cmake.CMakeNotFound)
	CMakeUnknownOutput = ToolchainError(cmake.CMakeUnknownOutput)
	CMakeFailing       = ToolchainError(cmake.CMakeFailing)
	SketchInvalid      = ToolchainError(cmake.SketchInvalid)
	ConfigureFailed    = ToolchainError(cmake.ConfigureFailed)
	BuildFailed        = ToolchainError(cmake.BuildFailed)
	// ToolchainAlreadyUsed is returned by a second Compile on one Toolchain.
	ToolchainAlreadyUsed ToolchainError = 254
	Generic                             = ToolchainError(cmake.Generic)
)

func (e ToolchainError) Error() string {
	if e == ToolchainAlreadyUsed {
		return "toolchain already used"
	}
	return cmake.Result(e).String()
}

// toolchainError maps a driver result onto the public codes.
func toolchainError(r cmake.Result) error {
	switch r {
	case cmake.OK:
		return nil
	case cmake.ResourceDirAbsent, cmake.ResourceDirFile, cmake.ResourceDirEmpty,
		cmake.CMakeNotFound, cmake.CMakeUnknownOutput, cmake.CMakeFailing,
		cmake.SketchInvalid, cmake.ConfigureFailed, cmake.BuildFailed:
		return ToolchainError(r)
	default:
		return Generic
	}
}

// ExitError is returned by Tick once the firmware has exited.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("firmware exited with code %d", e.Code)
}
