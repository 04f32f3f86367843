package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Config holds the global settings the File Analyzer, Checker Registry, and
// Finding Sink are wired from: max configs, build directory, cache
// directory, safety mode, checks-max-time, template, and addon manifest
// path (spec §1/§6).
type Config struct {
	Version int
	Project Project

	// BuildDir is where per-file Analyzer-Info sidecars and the compile
	// database live. Empty disables the Analyzer-Info Store entirely.
	BuildDir string
	// CacheDir is where the content-addressed Result Cache persists its
	// entries between runs. Empty disables the cache.
	CacheDir string

	MaxConfigs        int // 0 is replaced by the default of 12 during validation; spec §4.4 "too many configurations" cap
	ChecksMaxTime     int // per-config checker wall-clock budget, seconds; 0 means unlimited
	SafetyMode        bool
	EnabledSeverities []string
	Template          string
	AddonManifestPath string // path to a TOML addon manifest; empty disables addons

	ParallelFileWorkers int // 0 = auto-detect (NumCPU-1, at least 1)

	Include []string
	Exclude []string
}

// Project describes the codebase being analyzed.
type Project struct {
	Root string
	Name string
}

// Load resolves configuration the same way the CLI does: project config
// merged over a user-global base. The project config is read from the
// directory of path; the file read there is always `.cppcore.kdl`,
// whatever base name path has.
func Load(path string) (*Config, error) {
	return LoadWithRoot(path, filepath.Dir(path))
}

// LoadWithRoot loads configuration rooted at rootDir (or the current
// directory when rootDir is empty), merging a project-level `.cppcore.kdl`
// over a user-global `~/.cppcore.kdl` when both are present.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	homeDir, err := os.UserHomeDir()
	var baseConfig *Config
	if err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	if kdlCfg, err := LoadKDL(searchDir); err == nil && kdlCfg != nil {
		projectConfig = kdlCfg
	} else if err != nil {
		return nil, err
	}

	if baseConfig != nil && projectConfig != nil {
		return mergeConfigs(baseConfig, projectConfig), nil
	} else if projectConfig != nil {
		return projectConfig, nil
	} else if baseConfig != nil {
		baseConfig.Project.Root = searchDir
		return baseConfig, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	cfg := &Config{
		Version:             1,
		Project:             Project{Root: cwd},
		BuildDir:            "",
		CacheDir:            "",
		MaxConfigs:          12,
		ChecksMaxTime:       0,
		SafetyMode:          false,
		EnabledSeverities:   []string{"error", "warning", "style", "performance", "portability"},
		Template:            "",
		AddonManifestPath:   "",
		ParallelFileWorkers: runtime.NumCPU(),
		Include:             []string{},
		Exclude: []string{
			// Version control metadata
			"**/.git/**",
			"**/.svn/**",
			"**/.hg/**",

			// Hidden directories (catch-all for dot directories)
			"**/.*/**",

			// CMake build artifacts
			"**/build/**",
			"**/cmake-build-*/**",
			"**/CMakeFiles/**",
			"**/CMakeCache.txt",

			// Autotools build artifacts
			"**/.deps/**",
			"**/.libs/**",
			"**/autom4te.cache/**",

			// Generic build output
			"**/out/**",
			"**/bin/**",
			"**/Debug/**",
			"**/Release/**",

			// Package managers / vendored dependencies
			"**/vendor/**",
			"**/third_party/**",
			"**/third-party/**",
			"**/conan-cache/**",

			// Compiled/object artifacts
			"**/*.o",
			"**/*.obj",
			"**/*.a",
			"**/*.lib",
			"**/*.so",
			"**/*.so.*",
			"**/*.dylib",
			"**/*.dll",
			"**/*.exe",
			"**/*.pdb",
			"**/*.gch",
			"**/*.pch",

			// Generated/parser output often checked in but not worth re-analyzing
			"**/*.pb.cc",
			"**/*.pb.h",

			// Editor temp files
			"**/*.swp",
			"**/*.swo",
			"**/*~",

			// OS files
			"**/Thumbs.db",
			"**/.DS_Store",

			// Logs
			"**/*.log",
		},
	}

	cfg.EnrichExclusionsWithBuildArtifacts()

	return cfg, nil
}

// mergeConfigs merges a base config with a project config. Project config
// takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		excludeMap := make(map[string]bool)
		for _, pattern := range base.Exclude {
			excludeMap[pattern] = true
		}
		for _, pattern := range project.Exclude {
			excludeMap[pattern] = true
		}
		merged.Exclude = make([]string, 0, len(excludeMap))
		for pattern := range excludeMap {
			merged.Exclude = append(merged.Exclude, pattern)
		}
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts detects build output directories from
// CMake/Makefile/Meson build files in the project root and adds them to the
// exclusion list.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}

	detector := NewBuildArtifactDetector(c.Project.Root)
	detectedPatterns := detector.DetectOutputDirectories()

	if len(detectedPatterns) > 0 {
		c.Exclude = append(c.Exclude, detectedPatterns...)
		c.Exclude = DeduplicatePatterns(c.Exclude)
	}
}
