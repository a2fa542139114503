package script

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultScenario is run when no scenario is named.
const DefaultScenario = "youtube-subscriptions"

//go:embed builtin/*.yaml
var builtinFS embed.FS

// BuiltinNames lists the embedded scenarios, sorted.
func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Builtin parses an embedded scenario by name.
func Builtin(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown scenario %q (built-in: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return Parse(data, "builtin/"+name+".yaml")
}

// Load resolves a scenario reference: an existing .yaml/.yml path, a file
// named <ref>.yaml in dir, or a built-in name. Empty ref is DefaultScenario.
func Load(ref, dir string) (*Scenario, error) {
	if ref == "" {
		ref = DefaultScenario
	}

	ext := strings.ToLower(filepath.Ext(ref))
	if ext == ".yaml" || ext == ".yml" {
		return ParseFile(ref)
	}

	if dir != "" {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, ref+ext)
			if _, err := os.Stat(path); err == nil {
				return ParseFile(path)
			}
		}
	}
	return Builtin(ref)
}
