// Package plist serializes Findings into the Apple-style plist format
// (spec §6 "Plist output"): one diagnostic per finding, with path edges
// for call-stack transitions between consecutive frames and an event
// entry per frame.
package plist

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sync"

	"github.com/standardbeagle/cppcore/internal/finding"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
`

// diagnostic is one finding's plist entry: a bug-path array plus the
// summary keys (description, category, type, check_name, location).
type diagnostic struct {
	Path               []pathItem
	Description        string
	Category           string
	Type               string
	CheckName          string
	Location           plistLocation
	IssueHashInContext string
}

type pathItem struct {
	Kind            string // "event" or "control"
	Edges           []edge
	Location        plistLocation
	Depth           int
	ExtendedMessage string
	Message         string
}

type edge struct {
	Start plistLocation
	End   plistLocation
}

type plistLocation struct {
	Line int32
	Col  uint32
	File int
}

// Build converts findings into one plist Document. File indices are
// assigned in first-seen order across every finding's call stack,
// mirroring the "files" array cppcheck's own plist writer emits.
func Build(findings []finding.Finding) *Builder {
	b := &Builder{fileIndex: make(map[string]int)}
	for _, f := range findings {
		b.add(f)
	}
	return b
}

// Builder accumulates diagnostics incrementally, letting a long-running
// analysis append() one finding at a time as the Finding Sink's plist
// writer callback fires (spec §4.7 step 10), rather than requiring every
// finding to be buffered up front before the file table can be built.
// Add is safe to call concurrently since the callback may be shared
// across a parallel-file-workers analysis pass (spec §5).
type Builder struct {
	mu          sync.Mutex
	files       []string
	fileIndex   map[string]int
	diagnostics []diagnostic
}

// New creates an empty Builder.
func New() *Builder {
	return &Builder{fileIndex: make(map[string]int)}
}

// Add appends one finding's diagnostic entry, assigning file indices as
// new files are encountered.
func (b *Builder) Add(f finding.Finding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(f)
}

func (b *Builder) add(f finding.Finding) {
	diag := diagnostic{
		Description:        f.ShortMessage,
		Category:           string(f.Severity),
		Type:               f.ShortMessage,
		CheckName:          f.ID,
		IssueHashInContext: fmt.Sprintf("%d", f.Hash),
	}

	if len(f.CallStack) == 0 {
		diag.Location = plistLocation{File: b.fileOf(f.File0)}
		b.diagnostics = append(b.diagnostics, diag)
		return
	}

	// The last CallStack element is innermost/primary (Finding.Primary);
	// the path runs from outermost (root cause) to innermost, which is
	// the call stack's own order.
	frames := make([]plistLocation, len(f.CallStack))
	for i, loc := range f.CallStack {
		frames[i] = plistLocation{Line: loc.Line, Col: loc.Column, File: b.fileOf(loc.FileName)}
	}

	for depth, loc := range frames {
		item := pathItem{Kind: "event", Location: loc, Depth: depth, Message: f.ShortMessage}
		if depth == len(frames)-1 {
			item.ExtendedMessage = f.VerboseMessage
		}
		diag.Path = append(diag.Path, item)
		if depth > 0 {
			// Insert a control edge for the transition from the previous
			// frame into this one (spec §6: "path edges ... between
			// consecutive frames").
			prev := frames[depth-1]
			diag.Path[len(diag.Path)-1].Edges = []edge{{Start: prev, End: loc}}
		}
	}

	diag.Location = frames[len(frames)-1]
	b.diagnostics = append(b.diagnostics, diag)
}

func (b *Builder) fileOf(name string) int {
	if name == "" {
		return -1
	}
	if idx, ok := b.fileIndex[name]; ok {
		return idx
	}
	idx := len(b.files)
	b.fileIndex[name] = idx
	b.files = append(b.files, name)
	return idx
}

// Marshal renders the accumulated diagnostics as a complete plist
// document, including the DOCTYPE preamble Apple's format requires.
func (b *Builder) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteString("<plist version=\"1.0\">\n<dict>\n")

	writeKeyStringArray(&buf, "files", b.files)

	buf.WriteString("<key>diagnostics</key>\n<array>\n")
	for _, d := range b.diagnostics {
		writeDiagnostic(&buf, d)
	}
	buf.WriteString("</array>\n")

	buf.WriteString("</dict>\n</plist>\n")
	return buf.Bytes(), nil
}

func writeKeyStringArray(buf *bytes.Buffer, key string, items []string) {
	fmt.Fprintf(buf, "<key>%s</key>\n<array>\n", key)
	for _, s := range items {
		fmt.Fprintf(buf, "<string>%s</string>\n", escape(s))
	}
	buf.WriteString("</array>\n")
}

func writeDiagnostic(buf *bytes.Buffer, d diagnostic) {
	buf.WriteString("<dict>\n")

	buf.WriteString("<key>path</key>\n<array>\n")
	for _, item := range d.Path {
		writePathItem(buf, item)
	}
	buf.WriteString("</array>\n")

	fmt.Fprintf(buf, "<key>description</key><string>%s</string>\n", escape(d.Description))
	fmt.Fprintf(buf, "<key>category</key><string>%s</string>\n", escape(d.Category))
	fmt.Fprintf(buf, "<key>type</key><string>%s</string>\n", escape(d.Type))
	fmt.Fprintf(buf, "<key>check_name</key><string>%s</string>\n", escape(d.CheckName))
	buf.WriteString("<key>location</key>\n")
	writeLocation(buf, d.Location)
	fmt.Fprintf(buf, "<key>issue_hash_content_of_line_in_context</key><string>%s</string>\n", escape(d.IssueHashInContext))

	buf.WriteString("</dict>\n")
}

func writePathItem(buf *bytes.Buffer, item pathItem) {
	for _, e := range item.Edges {
		buf.WriteString("<dict>\n<key>kind</key><string>control</string>\n<key>edges</key>\n<array>\n<dict>\n")
		buf.WriteString("<key>start</key>\n<array>\n")
		writeLocation(buf, e.Start)
		writeLocation(buf, e.Start)
		buf.WriteString("</array>\n<key>end</key>\n<array>\n")
		writeLocation(buf, e.End)
		writeLocation(buf, e.End)
		buf.WriteString("</array>\n</dict>\n</array>\n</dict>\n")
	}

	buf.WriteString("<dict>\n")
	buf.WriteString("<key>kind</key><string>event</string>\n")
	buf.WriteString("<key>location</key>\n")
	writeLocation(buf, item.Location)
	fmt.Fprintf(buf, "<key>depth</key><integer>%d</integer>\n", item.Depth)
	if item.ExtendedMessage != "" {
		fmt.Fprintf(buf, "<key>extended_message</key><string>%s</string>\n", escape(item.ExtendedMessage))
	}
	fmt.Fprintf(buf, "<key>message</key><string>%s</string>\n", escape(item.Message))
	buf.WriteString("</dict>\n")
}

func writeLocation(buf *bytes.Buffer, loc plistLocation) {
	fmt.Fprintf(buf, "<dict>\n<key>line</key><integer>%d</integer>\n<key>col</key><integer>%d</integer>\n<key>file</key><integer>%d</integer>\n</dict>\n",
		loc.Line, loc.Col, loc.File)
}

func escape(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}
