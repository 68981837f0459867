package cmake

import (
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// Plugin is a library bundled with its build recipe.
type Plugin struct {
	Name         string
	Version      string
	Depends      []string
	NeedsDevices []string
	URI          string
	PatchURI     string
	Defaults     string
	IncDirs      []string
	Sources      []string
	LinkDirs     []string
	LinkLibs     []string
}

var pluginTmpl = template.Must(template.New("plugin").Funcs(template.FuncMap{
	"list": func(items []string) string { return strings.Join(items, ";") },
}).Parse(`set (PLUGIN_NAME "{{.Name}}")
set (PLUGIN_VERSION "{{.Version}}")
set (PLUGIN_DEPENDS "{{list .Depends}}")
set (PLUGIN_NEEDS_DEVICES "{{list .NeedsDevices}}")
set (PLUGIN_URI "{{.URI}}")
set (PLUGIN_PATCH_URI "{{.PatchURI}}")
set (PLUGIN_DEFAULTS "{{.Defaults}}")
set (PLUGIN_INCDIRS "{{list .IncDirs}}")
set (PLUGIN_SOURCES "{{list .Sources}}")
set (PLUGIN_LINKDIRS "{{list .LinkDirs}}")
set (PLUGIN_LINKLIBS "{{list .LinkLibs}}")
`))

// writePlugins renders one <name>.cmake file per plugin into dir and
// returns dir, or "" when there are no plugins.
func writePlugins(dir string, plugins []Plugin) (string, error) {
	if len(plugins) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	for _, p := range plugins {
		if p.Name == "" || strings.ContainsAny(p.Name, `/\`) {
			return "", errors.Errorf("invalid plugin name %q", p.Name)
		}
		f, err := os.Create(filepath.Join(dir, p.Name+".cmake"))
		if err != nil {
			return "", err
		}
		err = pluginTmpl.Execute(f, p)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", errors.Wrapf(err, "plugin %s", p.Name)
		}
	}
	return dir, nil
}
