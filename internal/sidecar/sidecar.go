// Package sidecar implements the Analyzer-Info Store (spec component F):
// the per-file XML sidecar under the build directory, keyed by
// (source,cfg,file_index) and guarded by a fingerprint checksum.
package sidecar

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/location"
)

// Index is the `<buildDir>/files.txt` map from artifact stem to source
// path, disambiguating sources sharing a basename with a monotonically
// increasing `aN` suffix per stem (spec §4.6 "Layout").
type Index struct {
	mu         sync.Mutex
	buildDir   string
	nextSuffix map[string]int
	stems      map[string]string // "stem.aN:cfg:source" -> source path (for Load)
	entries    []indexLine
}

type indexLine struct {
	Stem   string
	Suffix int
	Config string
	Source string
}

// Entry is one resolved files.txt row, exposed for the Joiner (component
// I) to scan every (source,cfg) sidecar under the build directory.
type Entry struct {
	ArtifactName string // "stem.aN"
	Config       string
	Source       string
}

// Entries returns every registered (source,cfg) mapping.
func (idx *Index) Entries() []Entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]Entry, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = Entry{ArtifactName: fmt.Sprintf("%s.a%d", e.Stem, e.Suffix), Config: e.Config, Source: e.Source}
	}
	return out
}

// NewIndex creates an Index rooted at buildDir.
func NewIndex(buildDir string) *Index {
	return &Index{buildDir: buildDir, nextSuffix: make(map[string]int), stems: make(map[string]string)}
}

// Stem assigns (or reuses) the `stem.aN` artifact name for (source,cfg),
// persisting the mapping into files.txt on Flush.
func (idx *Index) Stem(source, cfg string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, e := range idx.entries {
		if e.Source == source && e.Config == cfg {
			return fmt.Sprintf("%s.a%d", e.Stem, e.Suffix)
		}
	}
	n := idx.nextSuffix[base]
	idx.nextSuffix[base] = n + 1
	idx.entries = append(idx.entries, indexLine{Stem: base, Suffix: n, Config: cfg, Source: source})
	return fmt.Sprintf("%s.a%d", base, n)
}

// Flush writes files.txt: one `artifact_stem.aN:cfg:source_path` line per
// registered (source,cfg) pair.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var sb strings.Builder
	for _, e := range idx.entries {
		fmt.Fprintf(&sb, "%s.a%d:%s:%s\n", e.Stem, e.Suffix, e.Config, e.Source)
	}
	return os.WriteFile(filepath.Join(idx.buildDir, "files.txt"), []byte(sb.String()), 0o644)
}

// LoadIndex parses an existing files.txt, tolerating its absence (spec
// §4.6: presence-and-checksum is the only validity gate).
func LoadIndex(buildDir string) (*Index, error) {
	idx := NewIndex(buildDir)
	data, err := os.ReadFile(filepath.Join(buildDir, "files.txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		stemSuffix := parts[0]
		dot := strings.LastIndex(stemSuffix, ".a")
		if dot < 0 {
			continue
		}
		suffix, err := strconv.Atoi(stemSuffix[dot+2:])
		if err != nil {
			continue
		}
		idx.entries = append(idx.entries, indexLine{
			Stem: stemSuffix[:dot], Suffix: suffix, Config: parts[1], Source: parts[2],
		})
		base := stemSuffix[:dot]
		if idx.nextSuffix[base] <= suffix {
			idx.nextSuffix[base] = suffix + 1
		}
	}
	return idx, nil
}

// xmlFieldInfo mirrors one `<FileInfo check="...">` sidecar element (spec
// §4.6: "one per checker-summary").
type xmlFieldInfo struct {
	Check   string `xml:"check,attr"`
	Content string `xml:",innerxml"`
}

type xmlLocation struct {
	File   string `xml:"file,attr"`
	Line   int32  `xml:"line,attr"`
	Column uint32 `xml:"column,attr"`
	Info   string `xml:"info,attr,omitempty"`
}

type xmlError struct {
	ID        string        `xml:"id,attr"`
	Severity  string        `xml:"severity,attr"`
	Certainty string        `xml:"certainty,attr,omitempty"`
	CWE       uint16        `xml:"cwe,attr,omitempty"`
	Msg       string        `xml:"msg,attr"`
	Verbose   string        `xml:"verbose,attr,omitempty"`
	Symbols   string        `xml:"symbols,attr,omitempty"`
	File0     string        `xml:"file0,attr,omitempty"`
	Remark    string        `xml:"remark,attr,omitempty"`
	Hash      uint64        `xml:"hash,attr,omitempty"`
	Locations []xmlLocation `xml:"location"`
}

type analyzerinfo struct {
	XMLName   xml.Name       `xml:"analyzerinfo"`
	Checksum  string         `xml:"checksum,attr"`
	Errors    []xmlError     `xml:"error"`
	FileInfos []xmlFieldInfo `xml:"FileInfo"`
}

// Document is one open per-(source,cfg,file_index) sidecar file.
type Document struct {
	path     string
	checksum string
	doc      analyzerinfo
}

// Open loads the sidecar at path if its checksum matches want; otherwise
// (or if absent/corrupt) returns a fresh Document carrying the new
// checksum — "not present" per spec §4.6 is the only failure mode, never
// an error.
func Open(path, want string) (*Document, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Document{path: path, checksum: want}, false
	}
	var doc analyzerinfo
	if err := xml.Unmarshal(data, &doc); err != nil {
		return &Document{path: path, checksum: want}, false
	}
	if doc.Checksum != want {
		return &Document{path: path, checksum: want}, false
	}
	return &Document{path: path, checksum: want, doc: doc}, true
}

// OpenAny loads whatever sidecar is present at path without a checksum
// gate, for the Joiner (component I), which reads every sidecar's
// cross-TU summaries regardless of whether this run refreshed them.
func OpenAny(path string) (*Document, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var doc analyzerinfo
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	return &Document{path: path, checksum: doc.Checksum, doc: doc}, true
}

// Findings decodes every `<error>` element back into a finding.Finding.
func (d *Document) Findings() []finding.Finding {
	out := make([]finding.Finding, 0, len(d.doc.Errors))
	for _, xe := range d.doc.Errors {
		f := finding.Finding{
			ID: xe.ID, Severity: finding.Severity(xe.Severity), Certainty: finding.Certainty(xe.Certainty),
			CWE: xe.CWE, ShortMessage: xe.Msg, VerboseMessage: xe.Verbose, File0: xe.File0,
			Remark: xe.Remark, Hash: xe.Hash,
		}
		if xe.Symbols != "" {
			f.SymbolNames = strings.Split(xe.Symbols, "\n")
		}
		for _, loc := range xe.Locations {
			f.CallStack = append(f.CallStack, location.New(0, loc.File, loc.File, loc.Line, loc.Column, loc.Info))
		}
		out = append(out, f)
	}
	return out
}

// FileInfoFragment returns the raw inner XML of the `<FileInfo
// check="name">` element for the named checker, or (nil,false) if absent.
func (d *Document) FileInfoFragment(checkerName string) ([]byte, bool) {
	for _, fi := range d.doc.FileInfos {
		if fi.Check == checkerName {
			return []byte(fi.Content), true
		}
	}
	return nil, false
}

// AddFinding appends one finding to the in-memory document (spec §4.6:
// "one `<error …/>` element per finding").
func (d *Document) AddFinding(f finding.Finding) {
	xe := xmlError{
		ID: f.ID, Severity: string(f.Severity), Certainty: string(f.Certainty), CWE: f.CWE,
		Msg: f.ShortMessage, Verbose: f.VerboseMessage, Symbols: f.SymbolNamesJoined(),
		File0: f.File0, Remark: f.Remark, Hash: f.Hash,
	}
	for _, loc := range f.CallStack {
		xe.Locations = append(xe.Locations, xmlLocation{File: loc.FileName, Line: loc.Line, Column: loc.Column, Info: loc.Info})
	}
	d.doc.Errors = append(d.doc.Errors, xe)
}

// AddFileInfo attaches checker-specific cross-TU summary content verbatim.
func (d *Document) AddFileInfo(checkerName string, fragment []byte) {
	d.doc.FileInfos = append(d.doc.FileInfos, xmlFieldInfo{Check: checkerName, Content: string(fragment)})
}

// Close writes the document to disk via an open-truncate write, so an
// abnormal termination leaves either the old file or nothing usable — a
// partial write is treated as missing on the next run's checksum check
// (spec §4.6 "Atomicity").
func (d *Document) Close() error {
	d.doc.Checksum = d.checksum
	data, err := xml.MarshalIndent(d.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.path, data, 0o644)
}
