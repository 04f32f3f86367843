// Package joiner implements the Whole-Program Joiner (spec component I):
// the second pass, invoked once after every per-file analysis, that
// reconstructs the cross-TU (CTU) view and calls each checker's
// WholeProgram exactly once.
package joiner

import (
	"path/filepath"

	"github.com/standardbeagle/cppcore/internal/checker"
	"github.com/standardbeagle/cppcore/internal/sidecar"
)

// InMemory runs the joiner directly over the in-memory FileInfo slices
// collected during single-job mode (spec §4.8 "(a) the in-memory
// Vec<FileInfo*>").
func InMemory(reg *checker.Registry, perChecker map[string][]checker.FileInfo, settings checker.Settings, sink checker.Sink) error {
	ctu := checker.CTUInfo{Raw: map[string][]byte{}}
	for _, c := range reg.All() {
		if err := c.WholeProgram(ctu, perChecker[c.Name()], settings, sink); err != nil {
			return err
		}
	}
	return nil
}

// FromSidecars scans files.txt under buildDir, parses every sidecar's
// `<FileInfo check="X">` children back into FileInfo via the matching
// registered checker's ParseFileInfo, and runs WholeProgram (spec §4.8
// "(b) the set of sidecars found by scanning files.txt").
func FromSidecars(buildDir string, reg *checker.Registry, settings checker.Settings, sink checker.Sink) error {
	idx, err := sidecar.LoadIndex(buildDir)
	if err != nil {
		return err
	}

	byChecker := make(map[string][]checker.FileInfo)
	ctuRaw := make(map[string][]byte)

	for _, e := range idx.Entries() {
		path := filepath.Join(buildDir, e.ArtifactName+".xml")
		doc, ok := sidecar.OpenAny(path)
		if !ok {
			continue
		}
		for _, c := range reg.All() {
			fragment, present := doc.FileInfoFragment(c.Name())
			if !present {
				continue
			}
			if c.Name() == "ctu" {
				ctuRaw["ctu"] = append(ctuRaw["ctu"], fragment...)
				continue
			}
			info, err := c.ParseFileInfo(fragment)
			if err != nil || info == nil {
				continue
			}
			byChecker[c.Name()] = append(byChecker[c.Name()], info)
		}
	}

	ctu := checker.CTUInfo{Raw: ctuRaw}
	for _, c := range reg.All() {
		if err := c.WholeProgram(ctu, byChecker[c.Name()], settings, sink); err != nil {
			return err
		}
	}
	return nil
}
