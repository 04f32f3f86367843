package checker

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/location"
	"github.com/standardbeagle/cppcore/internal/tokenview"
)

// funcRecord tracks one declared function's usage (spec §4.3 built-in
// unused-function analysis).
type funcRecord struct {
	Name         string
	File         string
	Line         int32
	FileIndex    uint32
	UsedSameFile bool
	UsedOther    bool
	IsOperator   bool
	IsEntryPoint bool
}

// UnusedFuncInfo is the FileInfo produced per (file,config) pass: a table
// of declarations plus the call names observed in this translation unit.
type UnusedFuncInfo struct {
	File  string
	Funcs map[string]*funcRecord
	Calls []string
}

// CheckerName implements checker.FileInfo.
func (u *UnusedFuncInfo) CheckerName() string { return "unusedFunction" }

// Merge combines two function tables: used-flags OR together, first
// non-empty file name wins (spec §4.3 "merge(other)").
func (u *UnusedFuncInfo) Merge(other *UnusedFuncInfo) *UnusedFuncInfo {
	out := &UnusedFuncInfo{File: u.File, Funcs: make(map[string]*funcRecord, len(u.Funcs))}
	for name, rec := range u.Funcs {
		cp := *rec
		out.Funcs[name] = &cp
	}
	if out.File == "" {
		out.File = other.File
	}
	for name, rec := range other.Funcs {
		if existing, ok := out.Funcs[name]; ok {
			existing.UsedSameFile = existing.UsedSameFile || rec.UsedSameFile
			existing.UsedOther = existing.UsedOther || rec.UsedOther
			if existing.File == "" {
				existing.File = rec.File
			}
		} else {
			cp := *rec
			out.Funcs[name] = &cp
		}
	}
	out.Calls = append(append([]string{}, u.Calls...), other.Calls...)
	for _, name := range out.Calls {
		if rec, ok := out.Funcs[name]; ok {
			rec.UsedOther = true
		}
	}
	return out
}

// builtinEntryPoints are C/C++ library entry points never reported as
// unused regardless of call-site evidence (spec §4.3).
var builtinEntryPoints = map[string]bool{
	"main":        true,
	"WinMain":     true,
	"DllMain":     true,
	"_start":      true,
	"constructor": true,
	"destructor":  true,
}

// UnusedFuncChecker implements the built-in unused-function analysis
// (spec §4.3), grounded on the declaration/call-site extraction already
// performed by internal/tokenview.Build.
type UnusedFuncChecker struct{}

// Name implements Checker.
func (UnusedFuncChecker) Name() string { return "unusedFunction" }

// Run reports nothing directly: unused-function analysis is inherently
// cross-TU (a function may be called from another file), so findings are
// only ever emitted from WholeProgram (spec §4.3 CTU variant).
func (UnusedFuncChecker) Run(view *tokenview.View, settings Settings, sink Sink) error {
	return nil
}

// FileInfo builds the per-(file,config) function table from the symbols
// and call sites internal/tokenview already resolved.
func (UnusedFuncChecker) FileInfo(view *tokenview.View, settings Settings, cfg string) (FileInfo, error) {
	info := &UnusedFuncInfo{File: view.FilePath, Funcs: make(map[string]*funcRecord)}
	for _, sym := range view.Symbols {
		if sym.Kind != tokenview.SymbolFunction {
			continue
		}
		name := stripTemplateParams(sym.Name)
		rec := &funcRecord{
			Name:         name,
			File:         view.FilePath,
			Line:         sym.Line,
			IsOperator:   strings.HasPrefix(name, "operator"),
			IsEntryPoint: builtinEntryPoints[name] || hasAny(sym.Attributes, "unused", "constructor", "destructor", "used"),
		}
		info.Funcs[name] = rec
	}
	for _, call := range view.CallSites {
		name := stripTemplateParams(call.Name)
		info.Calls = append(info.Calls, name)
		if rec, ok := info.Funcs[name]; ok {
			rec.UsedSameFile = true
		}
	}
	if len(info.Funcs) == 0 {
		return nil, nil
	}
	return info, nil
}

func hasAny(haystack []string, wants ...string) bool {
	for _, h := range haystack {
		for _, w := range wants {
			if h == w {
				return true
			}
		}
	}
	return false
}

// stripTemplateParams removes `<...>` so `foo<int>` and `foo<double>`
// match the same declaration (spec §4.3: "template parameters are
// stripped from names for matching").
func stripTemplateParams(name string) string {
	idx := strings.IndexByte(name, '<')
	if idx < 0 {
		return name
	}
	return name[:idx]
}

// ctuFunctionDecl/ctuFunctionCall mirror the `<functiondecl>`/
// `<functioncall>` XML fragments written into every sidecar and read back
// across every file for the cross-TU variant (spec §4.3).
type ctuFunctionDecl struct {
	XMLName xml.Name `xml:"functiondecl"`
	Name    string   `xml:"name,attr"`
	File    string   `xml:"file,attr"`
	Line    int32    `xml:"line,attr"`
}

type ctuFunctionCall struct {
	XMLName xml.Name `xml:"functioncall"`
	Name    string   `xml:"name,attr"`
}

// ParseFileInfo reconstructs an UnusedFuncInfo from the sidecar's
// `<functiondecl>`/`<functioncall>` fragments (spec §4.3 cross-TU reader).
// The fragment is zero or more sibling elements with no enclosing root
// (that is how SerializeFragment writes it and how the sidecar stores
// FileInfo payloads), so it is wrapped in a synthetic root before
// unmarshaling.
func (UnusedFuncChecker) ParseFileInfo(xmlFragment []byte) (FileInfo, error) {
	var wrapper struct {
		XMLName xml.Name          `xml:"fragment"`
		Decls   []ctuFunctionDecl `xml:"functiondecl"`
		Calls   []ctuFunctionCall `xml:"functioncall"`
	}
	wrapped := append([]byte("<fragment>"), append(xmlFragment, []byte("</fragment>")...)...)
	if err := xml.Unmarshal(wrapped, &wrapper); err != nil {
		return nil, fmt.Errorf("unusedFunction: parse sidecar fragment: %w", err)
	}
	info := &UnusedFuncInfo{Funcs: make(map[string]*funcRecord)}
	for _, d := range wrapper.Decls {
		info.Funcs[d.Name] = &funcRecord{Name: d.Name, File: d.File, Line: d.Line, IsEntryPoint: builtinEntryPoints[d.Name]}
		if info.File == "" {
			info.File = d.File
		}
	}
	for _, c := range wrapper.Calls {
		info.Calls = append(info.Calls, c.Name)
	}
	return info, nil
}

// SerializeFragment renders this info's decls/calls as the sidecar XML
// fragment ParseFileInfo reads back.
func (u *UnusedFuncInfo) SerializeFragment() ([]byte, error) {
	var sb strings.Builder
	for _, rec := range u.Funcs {
		sb.WriteString(fmt.Sprintf("<functiondecl name=%q file=%q line=%q/>\n", rec.Name, rec.File, itoa(rec.Line)))
	}
	for _, call := range u.Calls {
		sb.WriteString(fmt.Sprintf("<functioncall name=%q/>\n", call))
	}
	return []byte(sb.String()), nil
}

func itoa(v int32) string {
	return fmt.Sprintf("%d", v)
}

// WholeProgram walks the merged function table and emits unusedFunction
// for every declaration never called from any file, excluding library
// entry points and operator functions (spec §4.3 "check()").
func (UnusedFuncChecker) WholeProgram(ctu CTUInfo, infos []FileInfo, settings Settings, sink Sink) error {
	merged := &UnusedFuncInfo{Funcs: make(map[string]*funcRecord)}
	for _, fi := range infos {
		info, ok := fi.(*UnusedFuncInfo)
		if !ok || info == nil {
			continue
		}
		merged = merged.Merge(info)
	}
	for raw, fragment := range ctu.Raw {
		if raw != "unusedFunction" {
			continue
		}
		decoded, err := UnusedFuncChecker{}.ParseFileInfo(fragment)
		if err != nil {
			continue
		}
		if info, ok := decoded.(*UnusedFuncInfo); ok {
			merged = merged.Merge(info)
		}
	}

	for _, rec := range merged.Funcs {
		if rec.IsEntryPoint || rec.IsOperator {
			continue
		}
		if rec.UsedSameFile || rec.UsedOther {
			continue
		}
		sink.Report(finding.Finding{
			ID:           "unusedFunction",
			Severity:     finding.SeverityStyle,
			Certainty:    finding.CertaintyNormal,
			ShortMessage: fmt.Sprintf("The function '%s' is never used.", rec.Name),
			CallStack: []location.Location{
				location.New(0, rec.File, rec.File, rec.Line, 1, ""),
			},
			SymbolNames: []string{rec.Name},
			File0:       rec.File,
		})
	}
	return nil
}
