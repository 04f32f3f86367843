// Package resultcache implements the Result Cache (spec component G):
// a content-addressed store keyed by (normalized path, configuration)
// that skips re-analysis when the preprocessed source is unchanged and
// replays prior findings verbatim.
package resultcache

import (
	"encoding/base64"
	"encoding/xml"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/location"
)

// Sink receives replayed findings on a cache hit.
type Sink interface {
	Report(f finding.Finding)
}

type xmlLocation struct {
	File   string `xml:"file,attr"`
	Line   int32  `xml:"line,attr"`
	Column uint32 `xml:"column,attr"`
	Info   string `xml:"info,attr,omitempty"`
}

type xmlFinding struct {
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

type entry struct {
	XMLName xml.Name     `xml:"entry"`
	Path    string       `xml:"path,attr"`
	Config  string       `xml:"cfg,attr"`
	Size    int          `xml:"size,attr"`
	Hash    string       `xml:"hash,attr"`
	Reports []xmlFinding `xml:"error"`
}

type document struct {
	XMLName xml.Name `xml:"cppcore-result-cache"`
	Entries []*entry `xml:"entry"`
}

// Cache is the in-memory result cache, mutable from concurrent file
// workers (spec §5: parallel file workers), guarded by a single mutex
// since cache(...)/report_cached(...) calls are cheap relative to
// analysis itself.
type Cache struct {
	mu   sync.Mutex
	path string
	doc  document
	// index mirrors doc.Entries for O(1) lookup by (normalized path,cfg).
	index map[string]*entry
}

// New creates an empty, unbacked Cache (no Load call yet performed).
func New() *Cache {
	return &Cache{index: make(map[string]*entry)}
}

func key(normalizedPath, cfg string) string {
	return normalizedPath + "\x00" + cfg
}

// Load parses the on-disk XML cache file into memory (spec §4.5
// "load(path)"). A missing file is not an error: the cache starts empty.
func Load(path string) (*Cache, error) {
	c := New()
	c.path = path
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		// Corrupt cache is treated as absent, not a fatal error.
		return c, nil
	}
	c.doc = doc
	for _, e := range doc.Entries {
		c.index[key(normalizePath(e.Path), e.Config)] = e
	}
	return c, nil
}

// normalizePath applies spec §4.5's path normalization: backslash to
// forward slash, collapsed double slashes.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// codeHash computes SHA3-512(code) base64-encoded without line breaks
// (spec §4.5 "Hashing").
func codeHash(code string) string {
	sum := sha3.Sum512([]byte(code))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ReportCached returns true iff an entry exists for (path,cfg) whose size
// and hash match code, replaying its findings into sink on hit (spec
// §4.5 "report_cached").
func (c *Cache) ReportCached(path, cfg, code string, sink Sink) bool {
	c.mu.Lock()
	e, ok := c.index[key(normalizePath(path), cfg)]
	c.mu.Unlock()
	if !ok {
		return false
	}
	if e.Size != len(code) || e.Hash != codeHash(code) {
		return false
	}
	for _, xf := range e.Reports {
		sink.Report(toFinding(xf))
	}
	return true
}

// Cache upserts the entry for (path,cfg) with the given preprocessed code
// and findings (spec §4.5 "cache(path, cfg, code, reports)").
func (c *Cache) Cache(path, cfg, code string, reports []finding.Finding) {
	np := normalizePath(path)
	e := &entry{
		Path:   np,
		Config: cfg,
		Size:   len(code),
		Hash:   codeHash(code),
	}
	for _, f := range reports {
		e.Reports = append(e.Reports, toXML(f))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(np, cfg)
	if _, exists := c.index[k]; !exists {
		c.doc.Entries = append(c.doc.Entries, e)
	} else {
		for i, existing := range c.doc.Entries {
			if existing == c.index[k] {
				c.doc.Entries[i] = e
				break
			}
		}
	}
	c.index[k] = e
}

// Save serializes the in-memory tree back to disk (spec §4.5 "save()").
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := xml.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}

func toXML(f finding.Finding) xmlFinding {
	xf := xmlFinding{
		ID:        f.ID,
		Severity:  string(f.Severity),
		Certainty: string(f.Certainty),
		CWE:       f.CWE,
		Msg:       f.ShortMessage,
		Verbose:   f.VerboseMessage,
		Symbols:   f.SymbolNamesJoined(),
		File0:     f.File0,
		Remark:    f.Remark,
		Hash:      f.Hash,
	}
	for _, loc := range f.CallStack {
		xf.Locations = append(xf.Locations, xmlLocation{
			File: loc.FileName, Line: loc.Line, Column: loc.Column, Info: loc.Info,
		})
	}
	return xf
}

func toFinding(xf xmlFinding) finding.Finding {
	f := finding.Finding{
		ID:             xf.ID,
		Severity:       finding.Severity(xf.Severity),
		Certainty:      finding.Certainty(xf.Certainty),
		CWE:            xf.CWE,
		ShortMessage:   xf.Msg,
		VerboseMessage: xf.Verbose,
		File0:          xf.File0,
		Remark:         xf.Remark,
		Hash:           xf.Hash,
	}
	if xf.Symbols != "" {
		f.SymbolNames = strings.Split(xf.Symbols, "\n")
	}
	for _, loc := range xf.Locations {
		f.CallStack = append(f.CallStack, location.New(0, loc.File, loc.File, loc.Line, loc.Column, loc.Info))
	}
	return f
}
