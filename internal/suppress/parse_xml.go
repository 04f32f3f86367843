package suppress

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/standardbeagle/cppcore/internal/location"
)

// xmlSuppressions mirrors spec §6's XML suppression-list shape. Unlike
// the analyzer-info sidecar (component F), which is tolerant of missing
// attributes, this format is strict: unknown inner elements are errors
// (spec §9 design notes).
type xmlSuppressions struct {
	XMLName  xml.Name      `xml:"suppressions"`
	Suppress []xmlSuppress `xml:"suppress"`
}

type xmlSuppress struct {
	ID         string `xml:"id"`
	FileName   string `xml:"fileName"`
	LineNumber string `xml:"lineNumber"`
	SymbolName string `xml:"symbolName"`
	Hash       string `xml:"hash"`
}

var knownSuppressElements = map[string]bool{
	"id": true, "fileName": true, "lineNumber": true, "symbolName": true, "hash": true,
}

// UnmarshalXML rejects unknown child elements instead of silently
// ignoring them, per the strict XML policy spec §9 requires for the
// suppression format (contrast with the tolerant sidecar format, F).
func (s *xmlSuppress) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain xmlSuppress
	var p plain
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !knownSuppressElements[t.Name.Local] {
				return fmt.Errorf("unknown element <%s> inside <suppress>", t.Name.Local)
			}
			var text string
			if err := d.DecodeElement(&text, &t); err != nil {
				return err
			}
			switch t.Name.Local {
			case "id":
				p.ID = text
			case "fileName":
				p.FileName = text
			case "lineNumber":
				p.LineNumber = text
			case "symbolName":
				p.SymbolName = text
			case "hash":
				p.Hash = text
			}
		case xml.EndElement:
			if t.Name == start.Name {
				*s = xmlSuppress(p)
				return nil
			}
		}
	}
}

// ParseXMLFile parses a suppression XML document (spec §6).
func ParseXMLFile(content []byte) ([]*Suppression, error) {
	var doc xmlSuppressions
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = true
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("suppression XML: %w", err)
	}
	out := make([]*Suppression, 0, len(doc.Suppress))
	for _, s := range doc.Suppress {
		supp := &Suppression{
			Type:         TypeUnique,
			Line:         location.NoLine,
			ErrorIDGlob:  s.ID,
			FileNameGlob: s.FileName,
			SymbolGlob:   s.SymbolName,
		}
		if s.LineNumber != "" {
			var n int32
			if _, err := fmt.Sscanf(s.LineNumber, "%d", &n); err == nil {
				supp.Line = n
			}
		}
		if s.Hash != "" {
			var h uint64
			if _, err := fmt.Sscanf(s.Hash, "%d", &h); err == nil {
				supp.Hash = h
			}
		}
		if err := validateRuleID(supp.ErrorIDGlob); err != nil {
			return nil, err
		}
		out = append(out, supp)
	}
	return out, nil
}
