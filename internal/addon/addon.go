// Package addon loads addon manifests (spec §1: "optional invocation of
// external analyzers... Python addons" is an external collaborator; this
// package owns only the manifest — name, args, and identity used by the
// Preprocessor Adapter's fingerprint — never the child-process
// invocation itself, which is explicitly out of scope per spec §1
// Non-goals).
package addon

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Manifest describes one addon entry. Its name and args feed Identity;
// nothing runs the addon after the checkers.
type Manifest struct {
	Name string   `toml:"name"`
	Args []string `toml:"args"`
	// Script is the addon's entry point, recorded but never executed by
	// this package.
	Script string `toml:"script"`
}

// Set is the parsed collection of addon manifests for one run.
type Set struct {
	Addons []Manifest `toml:"addon"`
}

// Load parses a TOML addon manifest file (spec §4.4/domain stack:
// `github.com/pelletier/go-toml/v2`).
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("addon: read manifest: %w", err)
	}
	var set Set
	if err := toml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("addon: parse manifest: %w", err)
	}
	return &set, nil
}

// Identity renders a deterministic string summarizing every addon's name
// and args, fed into the Preprocessor Adapter's fingerprint (spec §4.1:
// "fingerprint covers... addon names and args").
func (s *Set) Identity() string {
	if s == nil || len(s.Addons) == 0 {
		return ""
	}
	names := make([]string, len(s.Addons))
	for i, a := range s.Addons {
		names[i] = a.Name + "(" + strings.Join(a.Args, ",") + ")"
	}
	sort.Strings(names)
	return strings.Join(names, ";")
}

// Names returns every addon's name, in manifest order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Addons))
	for i, a := range s.Addons {
		out[i] = a.Name
	}
	return out
}
