package sarif

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/cppcore/internal/finding"
	"github.com/standardbeagle/cppcore/internal/location"
)

func TestBuildDeduplicatesRulesByID(t *testing.T) {
	findings := []finding.Finding{
		{ID: "nullPointer", Severity: finding.SeverityError, ShortMessage: "a", CallStack: []location.Location{location.New(0, "a.c", "a.c", 1, 1, "")}},
		{ID: "nullPointer", Severity: finding.SeverityError, ShortMessage: "b", CallStack: []location.Location{location.New(0, "b.c", "b.c", 2, 1, "")}},
	}
	log := Build("cppcore", findings)
	require.Len(t, log.Runs, 1)
	assert.Len(t, log.Runs[0].Tool.Driver.Rules, 1)
	assert.Len(t, log.Runs[0].Results, 2)

	seen := map[string]bool{}
	for _, r := range log.Runs[0].Results {
		found := false
		for _, rule := range log.Runs[0].Tool.Driver.Rules {
			if rule.ID == r.RuleID {
				found = true
			}
		}
		assert.True(t, found)
		seen[r.RuleID] = true
	}
}

func TestBuildLeadsWithVersionKey(t *testing.T) {
	log := Build("cppcore", nil)
	data, err := Marshal(log)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, string(data[:40]), `"version": "2.1.0"`)
	assert.Equal(t, "2.1.0", log.Version)
}

func TestSecuritySeverityOnlyWhenCWEPresent(t *testing.T) {
	withCWE := finding.Finding{ID: "x", Severity: finding.SeverityError, CWE: 476}
	withoutCWE := finding.Finding{ID: "y", Severity: finding.SeverityError}

	log := Build("cppcore", []finding.Finding{withCWE, withoutCWE})
	var gotWith, gotWithout bool
	for _, r := range log.Runs[0].Tool.Driver.Rules {
		if r.ID == "x" {
			require.NotNil(t, r.Properties.SecuritySeverity)
			assert.Equal(t, 9.9, *r.Properties.SecuritySeverity)
			gotWith = true
		}
		if r.ID == "y" {
			assert.Nil(t, r.Properties.SecuritySeverity)
			gotWithout = true
		}
	}
	assert.True(t, gotWith)
	assert.True(t, gotWithout)
}

func TestPartialFingerprintOnlyWhenHashNonZero(t *testing.T) {
	withHash := finding.Finding{ID: "x", Hash: 42, File0: "a.c"}
	withoutHash := finding.Finding{ID: "y", File0: "a.c"}
	log := Build("cppcore", []finding.Finding{withHash, withoutHash})
	assert.NotEmpty(t, log.Runs[0].Results[0].PartialFingerprints)
	assert.Empty(t, log.Runs[0].Results[1].PartialFingerprints)
}
