// Package sarif serializes Findings into SARIF 2.1.0 (spec §6 "SARIF
// 2.1.0 output").
package sarif

import (
	"encoding/json"
	"sort"

	"github.com/standardbeagle/cppcore/internal/finding"
)

const schemaURL = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

// Log is the top-level SARIF document. Version is emitted first among
// the top-level keys via explicit field ordering below (spec §6: "A
// leading \"version\": \"2.1.0\" key is emitted before other top-level
// keys").
type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name  string `json:"name"`
	Rules []Rule `json:"rules"`
}

type Rule struct {
	ID         string         `json:"id"`
	Properties RuleProperties `json:"properties"`
}

type RuleProperties struct {
	Precision        string   `json:"precision"`
	ProblemSeverity  string   `json:"problem.severity"`
	SecuritySeverity *float64 `json:"security-severity,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

type Result struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             Message           `json:"message"`
	Locations           []ResultLocation  `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type Message struct {
	Text string `json:"text"`
}

type ResultLocation struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

type ArtifactLocation struct {
	URI string `json:"uri"`
}

type Region struct {
	StartLine   int32  `json:"startLine"`
	StartColumn uint32 `json:"startColumn"`
	EndLine     int32  `json:"endLine"`
	EndColumn   uint32 `json:"endColumn"`
}

// Build converts findings into one SARIF run, deduplicating
// tool.driver.rules[] by id (spec §6, "SARIF rule uniqueness" §8).
func Build(toolName string, findings []finding.Finding) Log {
	rulesSeen := make(map[string]bool)
	var rules []Rule
	var results []Result

	for _, f := range findings {
		if !rulesSeen[f.ID] {
			rulesSeen[f.ID] = true
			rules = append(rules, Rule{ID: f.ID, Properties: ruleProperties(f)})
		}
		results = append(results, toResult(f))
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	return Log{
		Version: "2.1.0",
		Schema:  schemaURL,
		Runs: []Run{{
			Tool:    Tool{Driver: Driver{Name: toolName, Rules: rules}},
			Results: results,
		}},
	}
}

// Marshal renders l as indented JSON with "version" leading (spec §6).
func Marshal(l Log) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

func level(sev finding.Severity) string {
	switch sev {
	case finding.SeverityError:
		return "error"
	case finding.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

func problemSeverity(sev finding.Severity) string {
	switch sev {
	case finding.SeverityError:
		return "error"
	case finding.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

func securitySeverity(f finding.Finding) *float64 {
	if f.CWE == 0 {
		return nil
	}
	var v float64
	switch f.Severity {
	case finding.SeverityError:
		v = 9.9
	case finding.SeverityWarning:
		v = 8.5
	case finding.SeverityPerformance, finding.SeverityPortability, finding.SeverityStyle:
		v = 5.5
	case finding.SeverityInformation, finding.SeverityDebug:
		v = 2.0
	default:
		return nil
	}
	return &v
}

func ruleProperties(f finding.Finding) RuleProperties {
	precision := "medium"
	if f.Certainty == finding.CertaintyNormal {
		precision = "high"
	}
	props := RuleProperties{Precision: precision, ProblemSeverity: problemSeverity(f.Severity)}
	if sec := securitySeverity(f); sec != nil {
		props.SecuritySeverity = sec
		props.Tags = []string{"security", cweTag(f.CWE)}
	}
	return props
}

func cweTag(cwe uint16) string {
	return "external/cwe/cwe-" + itoa(int(cwe))
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func toResult(f finding.Finding) Result {
	r := Result{RuleID: f.ID, Level: level(f.Severity), Message: Message{Text: f.ShortMessage}}
	if primary, ok := f.Primary(); ok {
		r.Locations = []ResultLocation{{
			PhysicalLocation: PhysicalLocation{
				ArtifactLocation: ArtifactLocation{URI: primary.FileName},
				Region: Region{
					StartLine: primary.Line, StartColumn: primary.Column,
					EndLine: primary.Line, EndColumn: primary.Column,
				},
			},
		}}
	} else {
		r.Locations = []ResultLocation{{
			PhysicalLocation: PhysicalLocation{ArtifactLocation: ArtifactLocation{URI: f.File0}},
		}}
	}
	if f.Hash != 0 {
		r.PartialFingerprints = map[string]string{"hash/v1": itoa64(f.Hash)}
	}
	return r
}

func itoa64(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
