// Build artifact detection from C/C++ build system files: CMakePresets.json,
// CMakeLists.txt, and Makefiles. Parses them to find output directories that
// should never be fed to the analyzer.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// BuildArtifactDetector finds build-system-specific output directories.
type BuildArtifactDetector struct {
	projectRoot string
}

// NewBuildArtifactDetector creates a new build artifact detector.
func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories scans for build configuration files and extracts
// output directories. Returns glob patterns to exclude (e.g. "**/build/**").
func (bad *BuildArtifactDetector) DetectOutputDirectories() []string {
	var patterns []string
	patterns = append(patterns, bad.detectCMakeOutputs()...)
	patterns = append(patterns, bad.detectMakefileOutputs()...)
	patterns = append(patterns, bad.detectMesonOutputs()...)
	return patterns
}

// detectCMakeOutputs reads CMakePresets.json's binaryDir fields and
// CMakeLists.txt's set(CMAKE_BINARY_DIR ...) / set(CMAKE_RUNTIME_OUTPUT_...)
// assignments.
func (bad *BuildArtifactDetector) detectCMakeOutputs() []string {
	var patterns []string

	presetsPath := filepath.Join(bad.projectRoot, "CMakePresets.json")
	if data, err := os.ReadFile(presetsPath); err == nil {
		var doc struct {
			ConfigurePresets []struct {
				BinaryDir string `json:"binaryDir"`
			} `json:"configurePresets"`
		}
		if json.Unmarshal(data, &doc) == nil {
			for _, preset := range doc.ConfigurePresets {
				if dir := cmakeVariableToDirName(preset.BinaryDir); dir != "" {
					patterns = append(patterns, "**/"+dir+"/**")
				}
			}
		}
	}

	listsPath := filepath.Join(bad.projectRoot, "CMakeLists.txt")
	if data, err := os.ReadFile(listsPath); err == nil {
		content := string(data)
		for _, variable := range []string{"CMAKE_BINARY_DIR", "CMAKE_RUNTIME_OUTPUT_DIRECTORY", "CMAKE_ARCHIVE_OUTPUT_DIRECTORY"} {
			idx := strings.Index(content, variable)
			if idx < 0 {
				continue
			}
			rest := content[idx+len(variable):]
			fields := strings.Fields(rest)
			if len(fields) > 0 {
				dir := strings.Trim(fields[0], `"')`)
				if dir != "" && !strings.Contains(dir, "$") {
					patterns = append(patterns, "**/"+dir+"/**")
				}
			}
		}
	}

	return patterns
}

// cmakeVariableToDirName strips CMake's ${sourceDir}/ and similar preset
// macro prefixes, leaving the literal directory name when one is present.
func cmakeVariableToDirName(binaryDir string) string {
	binaryDir = strings.TrimPrefix(binaryDir, "${sourceDir}/")
	binaryDir = strings.TrimPrefix(binaryDir, "${sourceParentDir}/")
	if strings.Contains(binaryDir, "$") {
		return ""
	}
	return binaryDir
}

// detectMakefileOutputs looks for "BUILDDIR ="/"OBJDIR ="/"OUTDIR =" style
// assignments in a top-level Makefile.
func (bad *BuildArtifactDetector) detectMakefileOutputs() []string {
	var patterns []string
	for _, name := range []string{"Makefile", "GNUmakefile", "makefile"} {
		data, err := os.ReadFile(filepath.Join(bad.projectRoot, name))
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			for _, variable := range []string{"BUILDDIR", "OBJDIR", "OUTDIR"} {
				if !strings.HasPrefix(line, variable) {
					continue
				}
				rest := strings.TrimSpace(strings.TrimPrefix(line, variable))
				rest = strings.TrimPrefix(rest, ":")
				rest = strings.TrimPrefix(rest, "=")
				dir := strings.TrimSpace(rest)
				if dir != "" && !strings.ContainsAny(dir, "$(") {
					patterns = append(patterns, "**/"+dir+"/**")
				}
			}
		}
	}
	return patterns
}

// detectMesonOutputs checks meson.build for a custom build directory hint
// left in a comment convention ("# builddir: <name>"); Meson itself takes
// its output directory from the command line, not the build file, so this
// is best-effort only.
func (bad *BuildArtifactDetector) detectMesonOutputs() []string {
	data, err := os.ReadFile(filepath.Join(bad.projectRoot, "meson.build"))
	if err != nil {
		return nil
	}
	const marker = "# builddir:"
	idx := strings.Index(string(data), marker)
	if idx < 0 {
		return nil
	}
	rest := strings.TrimSpace(string(data)[idx+len(marker):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil
	}
	return []string{"**/" + fields[0] + "/**"}
}

// DeduplicatePatterns removes duplicate exclusion patterns.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if !seen[pattern] {
			seen[pattern] = true
			result = append(result, pattern)
		}
	}
	return result
}
