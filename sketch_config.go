package vboard

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/buckleypaul/vboard/internal/cmake"
)

// SketchConfig describes how a sketch is built.
type SketchConfig struct {
	// FQBN is the fully qualified board name, e.g. "arduino:avr:nano".
	FQBN             string            `yaml:"fqbn"`
	ExtraBoardURIs   []string          `yaml:"extra_board_uris,omitempty"`
	PreprocLibs      []Library         `yaml:"preproc_libs,omitempty"`
	CompLinkLibs     []Library         `yaml:"complink_libs,omitempty"`
	ExtraCompileDefs map[string]string `yaml:"extra_compile_defs,omitempty"`
	ExtraCompileOpts []string          `yaml:"extra_compile_opts,omitempty"`
	Plugins          []PluginManifest  `yaml:"plugins,omitempty"`
}

// LibraryKind tells how a Library is obtained.
type LibraryKind int

const (
	RemoteLibrary LibraryKind = iota
	LocalLibrary
	FreestandingLibrary
)

func (k LibraryKind) String() string {
	switch k {
	case RemoteLibrary:
		return "remote"
	case LocalLibrary:
		return "local"
	case FreestandingLibrary:
		return "freestanding"
	default:
		return "unknown"
	}
}

func (k LibraryKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

func (k *LibraryKind) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "", "remote":
		*k = RemoteLibrary
	case "local":
		*k = LocalLibrary
	case "freestanding":
		*k = FreestandingLibrary
	default:
		return errors.Errorf("line %d: unknown library kind %q", value.Line, value.Value)
	}
	return nil
}

// Library is a dependency of a sketch. Which fields apply depends on Kind:
// remote libraries use Name and Version, local ones RootDir and optionally
// PatchFor, freestanding ones IncludeDir, ArchivePath and CompileDefs.
type Library struct {
	Kind LibraryKind `yaml:"kind"`

	Name    string `yaml:"name,omitempty"`
	Version string `yaml:"version,omitempty"`

	RootDir  string `yaml:"root_dir,omitempty"`
	PatchFor string `yaml:"patch_for,omitempty"`

	IncludeDir  string   `yaml:"include_dir,omitempty"`
	ArchivePath string   `yaml:"archive_path,omitempty"`
	CompileDefs []string `yaml:"compile_defs,omitempty"`
}

func (l Library) validate() error {
	switch l.Kind {
	case RemoteLibrary:
		if l.Name == "" {
			return errors.New("remote library needs a name")
		}
	case LocalLibrary:
		if l.RootDir == "" {
			return errors.New("local library needs a root_dir")
		}
	case FreestandingLibrary:
		if l.IncludeDir == "" || l.ArchivePath == "" {
			return errors.New("freestanding library needs include_dir and archive_path")
		}
	default:
		return errors.Errorf("invalid library kind %d", l.Kind)
	}
	return nil
}

func (l Library) driver() cmake.Library {
	kind := cmake.RemoteLibrary
	switch l.Kind {
	case LocalLibrary:
		kind = cmake.LocalLibrary
	case FreestandingLibrary:
		kind = cmake.FreestandingLibrary
	}
	return cmake.Library{
		Kind:        kind,
		Name:        l.Name,
		Version:     l.Version,
		RootDir:     l.RootDir,
		PatchFor:    l.PatchFor,
		IncludeDir:  l.IncludeDir,
		ArchivePath: l.ArchivePath,
		CompileDefs: l.CompileDefs,
	}
}

// PluginManifest bundles a library with the recipe to build it.
type PluginManifest struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Depends      []string `yaml:"depends,omitempty"`
	NeedsDevices []string `yaml:"needs_devices,omitempty"`
	URI          string   `yaml:"uri"`
	PatchURI     string   `yaml:"patch_uri,omitempty"`
	Defaults     string   `yaml:"defaults,omitempty"`
	IncDirs      []string `yaml:"incdirs,omitempty"`
	Sources      []string `yaml:"sources,omitempty"`
	LinkDirs     []string `yaml:"linkdirs,omitempty"`
	LinkLibs     []string `yaml:"linklibs,omitempty"`
}

// Validate checks that the configuration can be handed to the build.
func (c SketchConfig) Validate() error {
	if c.FQBN == "" {
		return errors.New("sketch config has no fqbn")
	}
	for i, l := range c.PreprocLibs {
		if err := l.validate(); err != nil {
			return errors.Wrapf(err, "preproc_libs[%d]", i)
		}
	}
	for i, l := range c.CompLinkLibs {
		if err := l.validate(); err != nil {
			return errors.Wrapf(err, "complink_libs[%d]", i)
		}
	}
	seen := make(map[string]bool, len(c.Plugins))
	for _, p := range c.Plugins {
		if p.Name == "" || strings.ContainsAny(p.Name, `/\`) {
			return errors.Errorf("invalid plugin name %q", p.Name)
		}
		if seen[p.Name] {
			return errors.Errorf("plugin %s declared twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

func (c SketchConfig) request(id, source string) cmake.Request {
	req := cmake.Request{
		ID:               id,
		Source:           source,
		FQBN:             c.FQBN,
		ExtraBoardURIs:   c.ExtraBoardURIs,
		ExtraCompileDefs: c.ExtraCompileDefs,
		ExtraCompileOpts: c.ExtraCompileOpts,
	}
	for _, l := range c.PreprocLibs {
		req.PreprocLibs = append(req.PreprocLibs, l.driver())
	}
	for _, l := range c.CompLinkLibs {
		req.CompLinkLibs = append(req.CompLinkLibs, l.driver())
	}
	for _, p := range c.Plugins {
		req.Plugins = append(req.Plugins, cmake.Plugin{
			Name:         p.Name,
			Version:      p.Version,
			Depends:      p.Depends,
			NeedsDevices: p.NeedsDevices,
			URI:          p.URI,
			PatchURI:     p.PatchURI,
			Defaults:     p.Defaults,
			IncDirs:      p.IncDirs,
			Sources:      p.Sources,
			LinkDirs:     p.LinkDirs,
			LinkLibs:     p.LinkLibs,
		})
	}
	return req
}
