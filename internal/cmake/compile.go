package cmake

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// LibraryKind selects how a library declaration is resolved.
type LibraryKind int

const (
	// RemoteLibrary is fetched by name and version.
	RemoteLibrary LibraryKind = iota
	// LocalLibrary is a source tree on disk.
	LocalLibrary
	// FreestandingLibrary is a prebuilt archive with its headers.
	FreestandingLibrary
)

// Library is a dependency declaration as passed to CMake.
type Library struct {
	Kind LibraryKind

	Name    string
	Version string

	RootDir  string
	PatchFor string

	IncludeDir  string
	ArchivePath string
	CompileDefs []string
}

// String renders the declaration as one CMake list entry.
func (l Library) String() string {
	switch l.Kind {
	case LocalLibrary:
		if l.PatchFor != "" {
			return "local:" + l.RootDir + "@" + l.PatchFor
		}
		return "local:" + l.RootDir
	case FreestandingLibrary:
		return "freestanding:" + l.IncludeDir + "|" + l.ArchivePath + "|" + strings.Join(l.CompileDefs, ",")
	default:
		if l.Version == "" {
			return l.Name
		}
		return l.Name + "@" + l.Version
	}
}

// Request describes one sketch build.
type Request struct {
	// ID names the build directory.
	ID     string
	Source string
	FQBN   string

	ExtraBoardURIs   []string
	PreprocLibs      []Library
	CompLinkLibs     []Library
	ExtraCompileDefs map[string]string
	ExtraCompileOpts []string
	Plugins          []Plugin
}

// BuildDir returns the build directory used for req.
func (d *Driver) BuildDir(req Request) string {
	return filepath.Join(d.resourceDir, "tmp", req.ID)
}

// ArtifactName is the file the runtime build produces in the build directory.
func ArtifactName() string {
	if runtime.GOOS == "windows" {
		return "Sketch.exe"
	}
	return "Sketch"
}

// Compile configures and builds req, streaming CMake output to out. On
// success it returns the path of the runnable artifact.
func (d *Driver) Compile(req Request, out io.Writer) (string, Result) {
	start := time.Now()
	log := d.log.With().Str("sketch", req.ID).Logger()

	if req.FQBN == "" {
		fmt.Fprintln(out, "sketch has no target board")
		return "", SketchInvalid
	}
	if _, err := os.Stat(req.Source); err != nil {
		fmt.Fprintf(out, "sketch source %s: %v\n", req.Source, err)
		return "", SketchInvalid
	}

	buildDir := d.BuildDir(req)
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		fmt.Fprintf(out, "create build directory: %v\n", err)
		return "", Generic
	}

	manifests, err := writePlugins(filepath.Join(buildDir, "manifests"), req.Plugins)
	if err != nil {
		fmt.Fprintf(out, "write plugin manifests: %v\n", err)
		return "", Generic
	}

	log.Info().Str("fqbn", req.FQBN).Str("build_dir", buildDir).Msg("configuring sketch")
	code, err := d.stream(out, configureArgs(d.resourceDir, buildDir, manifests, req)...)
	if err != nil {
		fmt.Fprintf(out, "run cmake: %v\n", err)
		log.Error().Err(err).Msg("cmake configure could not run")
		return "", ConfigureFailed
	}
	if code != 0 {
		log.Error().Int("exit_code", code).Msg("cmake configure failed")
		return "", ConfigureFailed
	}

	log.Info().Msg("building sketch")
	code, err = d.stream(out, "--build", buildDir)
	if err != nil {
		fmt.Fprintf(out, "run cmake: %v\n", err)
		log.Error().Err(err).Msg("cmake build could not run")
		return "", BuildFailed
	}
	if code != 0 {
		log.Error().Int("exit_code", code).Msg("cmake build failed")
		return "", BuildFailed
	}

	artifact := filepath.Join(buildDir, ArtifactName())
	if _, err := os.Stat(artifact); err != nil {
		fmt.Fprintf(out, "build produced no %s\n", ArtifactName())
		return "", BuildFailed
	}
	log.Info().Dur("duration", time.Since(start)).Str("artifact", artifact).Msg("sketch built")
	return artifact, OK
}

func configureArgs(resourceDir, buildDir, manifests string, req Request) []string {
	args := []string{
		"-S", resourceDir,
		"-B", buildDir,
		define("SKETCH_IDENT", req.ID),
		define("SKETCH_FQBN", req.FQBN),
		define("SKETCH_PATH", req.Source),
	}
	if len(req.ExtraBoardURIs) > 0 {
		args = append(args, define("SKETCH_EXTRA_BOARD_URIS", cmakeList(req.ExtraBoardURIs)))
	}
	if len(req.PreprocLibs) > 0 {
		args = append(args, define("SKETCH_PREPROC_LIBS", libraryList(req.PreprocLibs)))
	}
	if len(req.CompLinkLibs) > 0 {
		args = append(args, define("SKETCH_COMPLINK_LIBS", libraryList(req.CompLinkLibs)))
	}
	if len(req.ExtraCompileDefs) > 0 {
		args = append(args, define("SKETCH_EXTRA_COMPILE_DEFS", cmakeList(compileDefs(req.ExtraCompileDefs))))
	}
	if len(req.ExtraCompileOpts) > 0 {
		args = append(args, define("SKETCH_EXTRA_COMPILE_OPTS", cmakeList(req.ExtraCompileOpts)))
	}
	if manifests != "" {
		args = append(args, define("SKETCH_PLUGIN_MANIFESTS", manifests))
	}
	return args
}

func define(name, value string) string {
	return "-D" + name + "=" + value
}

func cmakeList(items []string) string {
	return strings.Join(items, ";")
}

func libraryList(libs []Library) string {
	items := make([]string, len(libs))
	for i, l := range libs {
		items[i] = l.String()
	}
	return cmakeList(items)
}

// compileDefs renders defines in a stable order.
func compileDefs(defs map[string]string) []string {
	keys := make([]string, 0, len(defs))
	for k := range defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]string, len(keys))
	for i, k := range keys {
		if defs[k] == "" {
			items[i] = k
		} else {
			items[i] = k + "=" + defs[k]
		}
	}
	return items
}
