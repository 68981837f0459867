package cmake

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeCMake = `#!/bin/sh
case "$1" in
--version)
	[ -n "%WARN%" ] && echo "%WARN%" >&2
	echo "cmake version %VERSION%"
	exit 0
	;;
--build)
	echo "building $2"
	if [ "%BUILD%" = "longline" ]; then
		printf '%0300d\n' 0
		echo "linked Sketch"
	fi
	[ "%BUILD%" = "fail" ] && exit 2
	[ "%BUILD%" = "empty" ] && exit 0
	printf '#!/bin/sh\n' > "$2/Sketch"
	chmod +x "$2/Sketch"
	exit 0
	;;
esac
for a in "$@"; do echo "arg $a"; done
[ "%CONFIGURE%" = "fail" ] && exit 1
exit 0
`

type fake struct {
	version   string
	configure string
	build     string
	warn      string
}

// setup returns a populated resource dir and a tool dir holding a fake cmake.
func setup(t *testing.T, f fake) (resdir, tooldir string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake cmake is a shell script")
	}
	if f.version == "" {
		f.version = "3.22.1"
	}
	resdir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(resdir, "CMakeLists.txt"), []byte("project(Sketch)\n"), 0o644))

	tooldir = t.TempDir()
	script := strings.NewReplacer("%VERSION%", f.version, "%CONFIGURE%", f.configure, "%BUILD%", f.build, "%WARN%", f.warn).Replace(fakeCMake)
	require.NoError(t, os.WriteFile(filepath.Join(tooldir, "cmake"), []byte(script), 0o755))
	return resdir, tooldir
}

func sketchFile(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "blink")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "blink.ino")
	require.NoError(t, os.WriteFile(path, []byte("void setup() {}\nvoid loop() {}\n"), 0o644))
	return path
}

func TestCheckEnvironmentResourceDir(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	empty := filepath.Join(tmp, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))

	tests := []struct {
		name string
		dir  string
		want Result
	}{
		{"absent", filepath.Join(tmp, "missing"), ResourceDirAbsent},
		{"file", file, ResourceDirFile},
		{"empty", empty, ResourceDirEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tt.want, New(tt.dir).CheckEnvironment(&out))
		})
	}
}

func TestCheckEnvironmentCMake(t *testing.T) {
	resdir, tooldir := setup(t, fake{})
	var out bytes.Buffer
	assert.Equal(t, OK, New(resdir, WithToolPath(tooldir)).CheckEnvironment(&out))
	assert.Contains(t, out.String(), "cmake version 3.22.1")

	assert.Equal(t, CMakeNotFound, New(resdir, WithCMake("vboard-no-such-cmake")).CheckEnvironment(&out))
}

func TestCheckEnvironmentCollectsBothStreams(t *testing.T) {
	resdir, tooldir := setup(t, fake{warn: "CMake Warning: no generator set"})
	var out bytes.Buffer
	require.Equal(t, OK, New(resdir, WithToolPath(tooldir)).CheckEnvironment(&out))
	assert.Contains(t, out.String(), "CMake Warning: no generator set")
	assert.Contains(t, out.String(), "cmake version 3.22.1")
}

func TestCheckEnvironmentCMakeVersion(t *testing.T) {
	tests := []struct {
		version string
		want    Result
	}{
		{"3.12.0", OK},
		{"4.0.2", OK},
		{"3.10.2", CMakeFailing},
		{"banana", CMakeUnknownOutput},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			resdir, tooldir := setup(t, fake{version: tt.version})
			var out bytes.Buffer
			assert.Equal(t, tt.want, New(resdir, WithToolPath(tooldir)).CheckEnvironment(&out))
		})
	}
}

func TestCompile(t *testing.T) {
	resdir, tooldir := setup(t, fake{})
	d := New(resdir, WithToolPath(tooldir))
	var out bytes.Buffer
	require.Equal(t, OK, d.CheckEnvironment(&out))

	req := Request{
		ID:               "0b6e7c1e",
		Source:           sketchFile(t),
		FQBN:             "arduino:avr:nano",
		ExtraBoardURIs:   []string{"https://a", "https://b"},
		PreprocLibs:      []Library{{Name: "MQTT", Version: "2.5.0"}},
		CompLinkLibs:     []Library{{Kind: LocalLibrary, RootDir: "/libs/wifi", PatchFor: "WiFi"}},
		ExtraCompileDefs: map[string]string{"B": "2", "A": ""},
		Plugins:          []Plugin{{Name: "smartcar", Version: "1.0", Sources: []string{"a.cpp", "b.cpp"}}},
	}
	artifact, res := d.Compile(req, &out)
	require.Equal(t, OK, res, out.String())
	assert.Equal(t, filepath.Join(resdir, "tmp", req.ID, "Sketch"), artifact)

	log := out.String()
	assert.Contains(t, log, "arg -DSKETCH_FQBN=arduino:avr:nano")
	assert.Contains(t, log, "arg -DSKETCH_EXTRA_BOARD_URIS=https://a;https://b")
	assert.Contains(t, log, "arg -DSKETCH_PREPROC_LIBS=MQTT@2.5.0")
	assert.Contains(t, log, "arg -DSKETCH_COMPLINK_LIBS=local:/libs/wifi@WiFi")
	assert.Contains(t, log, "arg -DSKETCH_EXTRA_COMPILE_DEFS=A;B=2")
	assert.Contains(t, log, "building "+d.BuildDir(req))

	plugin, err := os.ReadFile(filepath.Join(d.BuildDir(req), "manifests", "smartcar.cmake"))
	require.NoError(t, err)
	assert.Contains(t, string(plugin), `set (PLUGIN_SOURCES "a.cpp;b.cpp")`)
}

func TestCompileFailures(t *testing.T) {
	tests := []struct {
		name string
		fake fake
		fqbn string
		want Result
	}{
		{"no fqbn", fake{}, "", SketchInvalid},
		{"configure", fake{configure: "fail"}, "arduino:avr:uno", ConfigureFailed},
		{"build", fake{build: "fail"}, "arduino:avr:uno", BuildFailed},
		{"no artifact", fake{build: "empty"}, "arduino:avr:uno", BuildFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resdir, tooldir := setup(t, tt.fake)
			d := New(resdir, WithToolPath(tooldir))
			var out bytes.Buffer
			require.Equal(t, OK, d.CheckEnvironment(&out))

			artifact, res := d.Compile(Request{ID: "x", Source: sketchFile(t), FQBN: tt.fqbn}, &out)
			assert.Equal(t, tt.want, res)
			assert.Empty(t, artifact)
		})
	}
}

func TestCompileOverlongLine(t *testing.T) {
	old := maxLine
	maxLine = 64
	t.Cleanup(func() { maxLine = old })

	resdir, tooldir := setup(t, fake{build: "longline"})
	d := New(resdir, WithToolPath(tooldir))
	var out bytes.Buffer
	require.Equal(t, OK, d.CheckEnvironment(&out))

	artifact, res := d.Compile(Request{ID: "x", Source: sketchFile(t), FQBN: "arduino:avr:uno"}, &out)
	require.Equal(t, OK, res, out.String())
	assert.NotEmpty(t, artifact)
	assert.Contains(t, out.String(), "linked Sketch")
}

func TestCompileMissingSource(t *testing.T) {
	resdir, tooldir := setup(t, fake{})
	var out bytes.Buffer
	_, res := New(resdir, WithToolPath(tooldir)).Compile(Request{ID: "x", Source: "/nope/nope.ino", FQBN: "a:b:c"}, &out)
	assert.Equal(t, SketchInvalid, res)
}

func TestLibraryString(t *testing.T) {
	assert.Equal(t, "Servo", Library{Name: "Servo"}.String())
	assert.Equal(t, "local:/src/lib", Library{Kind: LocalLibrary, RootDir: "/src/lib"}.String())
	assert.Equal(t, "freestanding:/inc|/lib/libx.a|X=1,Y",
		Library{Kind: FreestandingLibrary, IncludeDir: "/inc", ArchivePath: "/lib/libx.a", CompileDefs: []string{"X=1", "Y"}}.String())
}
