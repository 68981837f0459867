// Package cmake drives the sketch build: it probes the resource directory and
// the CMake installation, then configures and builds sketches out of tree.
package cmake

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Result is the outcome of an environment probe or a compile.
type Result int

const (
	OK Result = iota
	ResourceDirAbsent
	ResourceDirFile
	ResourceDirEmpty
	CMakeNotFound
	CMakeUnknownOutput
	CMakeFailing
	SketchInvalid
	ConfigureFailed
	BuildFailed
	Generic Result = 255
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case ResourceDirAbsent:
		return "resource directory does not exist"
	case ResourceDirFile:
		return "resource directory is a file"
	case ResourceDirEmpty:
		return "resource directory is empty"
	case CMakeNotFound:
		return "cmake not found in PATH"
	case CMakeUnknownOutput:
		return "cmake output unrecognized"
	case CMakeFailing:
		return "cmake failed"
	case SketchInvalid:
		return "sketch path is invalid"
	case ConfigureFailed:
		return "CMake configure failed"
	case BuildFailed:
		return "CMake build failed"
	default:
		return "generic toolchain failure"
	}
}

// Minimum CMake release able to configure the runtime.
const (
	minMajor = 3
	minMinor = 12
)

// maxLine bounds a single line of build output.
var maxLine = 1024 * 1024

var versionRe = regexp.MustCompile(`cmake version (\d+)\.(\d+)`)

// Driver runs CMake against one resource directory.
type Driver struct {
	resourceDir string
	cmake       string
	toolPath    []string
	log         zerolog.Logger

	resolved string
}

// Option configures a Driver.
type Option func(*Driver)

// WithCMake overrides the cmake executable name or path.
func WithCMake(path string) Option {
	return func(d *Driver) {
		if path != "" {
			d.cmake = path
		}
	}
}

// WithToolPath prepends directories to PATH for cmake and the compilers it
// spawns.
func WithToolPath(dirs ...string) Option {
	return func(d *Driver) { d.toolPath = append(d.toolPath, dirs...) }
}

// WithLogger sets the logger for build steps.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// New returns a Driver for resourceDir.
func New(resourceDir string, opts ...Option) *Driver {
	d := &Driver{
		resourceDir: resourceDir,
		cmake:       "cmake",
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ResourceDir returns the directory the driver builds against.
func (d *Driver) ResourceDir() string {
	return d.resourceDir
}

// CheckEnvironment verifies the resource directory and the CMake
// installation. The output of `cmake --version` is copied to out.
func (d *Driver) CheckEnvironment(out io.Writer) Result {
	info, err := os.Stat(d.resourceDir)
	switch {
	case err != nil:
		return ResourceDirAbsent
	case !info.IsDir():
		return ResourceDirFile
	}
	entries, err := os.ReadDir(d.resourceDir)
	if err != nil {
		return ResourceDirAbsent
	}
	if len(entries) == 0 {
		return ResourceDirEmpty
	}

	bin, err := d.lookPath()
	if err != nil {
		d.log.Debug().Err(err).Str("cmake", d.cmake).Msg("cmake lookup failed")
		return CMakeNotFound
	}
	d.resolved = bin

	var buf bytes.Buffer
	cmd := exec.Command(bin, "--version")
	cmd.Env = d.env()
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err = cmd.Run()
	out.Write(buf.Bytes())
	if err != nil {
		d.log.Debug().Err(err).Msg("cmake --version failed")
		return CMakeFailing
	}

	m := versionRe.FindSubmatch(buf.Bytes())
	if m == nil {
		return CMakeUnknownOutput
	}
	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	if major < minMajor || major == minMajor && minor < minMinor {
		fmt.Fprintf(out, "cmake %d.%d is older than %d.%d\n", major, minor, minMajor, minMinor)
		return CMakeFailing
	}
	d.log.Debug().Str("cmake", bin).Int("major", major).Int("minor", minor).Msg("cmake found")
	return OK
}

// lookPath resolves the cmake binary, searching the tool path first.
func (d *Driver) lookPath() (string, error) {
	if strings.ContainsRune(d.cmake, filepath.Separator) {
		return exec.LookPath(d.cmake)
	}
	for _, dir := range d.toolPath {
		candidate := filepath.Join(dir, exeName(d.cmake))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(d.cmake)
}

func exeName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		return name + ".exe"
	}
	return name
}

// env returns the process environment with the tool path prepended to PATH.
func (d *Driver) env() []string {
	env := os.Environ()
	if len(d.toolPath) == 0 {
		return env
	}
	prefix := strings.Join(d.toolPath, string(os.PathListSeparator))
	result := make([]string, 0, len(env)+1)
	pathSet := false
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			result = append(result, "PATH="+prefix+string(os.PathListSeparator)+e[5:])
			pathSet = true
		} else {
			result = append(result, e)
		}
	}
	if !pathSet {
		result = append(result, "PATH="+prefix)
	}
	return result
}

// stream runs cmake with args, copying its merged output to out line by
// line. It returns the exit code, or -1 if the process could not run.
func (d *Driver) stream(out io.Writer, args ...string) (int, error) {
	bin := d.resolved
	if bin == "" {
		bin = d.cmake
	}
	cmd := exec.Command(bin, args...)
	cmd.Env = d.env()
	cmd.Dir = d.resourceDir

	fmt.Fprintf(out, "$ %s %s\n", filepath.Base(bin), strings.Join(args, " "))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}
	cmd.Stderr = cmd.Stdout // merge stderr into stdout

	if err := cmd.Start(); err != nil {
		return -1, err
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLine)), maxLine)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		// Copy the rest unsplit; the pipe must keep draining.
		d.log.Debug().Err(err).Msg("cmake output no longer split into lines")
		io.Copy(out, stdout)
	}

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, err
	}
	return 0, nil
}
