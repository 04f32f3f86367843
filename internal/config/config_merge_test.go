package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Unit tests for config merging logic

func TestMergeConfigs_ExclusionsMerge(t *testing.T) {
	base := &Config{
		Exclude: []string{
			"**/vendor/**",
			"**/third_party/**",
			"**/real_projects/**",
		},
	}

	project := &Config{
		Exclude: []string{
			"**/build/**",
			"**/cmake-build-*/**",
		},
	}

	merged := mergeConfigs(base, project)

	assert.Contains(t, merged.Exclude, "**/vendor/**")
	assert.Contains(t, merged.Exclude, "**/third_party/**")
	assert.Contains(t, merged.Exclude, "**/real_projects/**")
	assert.Contains(t, merged.Exclude, "**/build/**")
	assert.Contains(t, merged.Exclude, "**/cmake-build-*/**")
	assert.Len(t, merged.Exclude, 5)
}

func TestMergeConfigs_ExclusionsDeduplication(t *testing.T) {
	base := &Config{
		Exclude: []string{
			"**/vendor/**",
			"**/third_party/**",
		},
	}

	project := &Config{
		Exclude: []string{
			"**/vendor/**", // Duplicate
			"**/build/**",
		},
	}

	merged := mergeConfigs(base, project)

	assert.Len(t, merged.Exclude, 3)
	assert.Contains(t, merged.Exclude, "**/vendor/**")
	assert.Contains(t, merged.Exclude, "**/third_party/**")
	assert.Contains(t, merged.Exclude, "**/build/**")
}

func TestMergeConfigs_InclusionsProjectOverride(t *testing.T) {
	base := &Config{
		Include: []string{"*.c", "*.h"},
	}

	project := &Config{
		Include: []string{"*.cpp", "*.hpp"},
	}

	merged := mergeConfigs(base, project)

	assert.Equal(t, project.Include, merged.Include)
	assert.Len(t, merged.Include, 2)
}

func TestMergeConfigs_InclusionsUseBaseIfProjectEmpty(t *testing.T) {
	base := &Config{
		Include: []string{"*.c", "*.h"},
	}

	project := &Config{
		Include: []string{},
	}

	merged := mergeConfigs(base, project)

	assert.Equal(t, base.Include, merged.Include)
}

func TestMergeConfigs_ProjectSettingsTakePrecedence(t *testing.T) {
	base := &Config{
		MaxConfigs:    4,
		ChecksMaxTime: 10,
	}

	project := &Config{
		MaxConfigs:    16,
		ChecksMaxTime: 60,
	}

	merged := mergeConfigs(base, project)

	assert.Equal(t, 16, merged.MaxConfigs)
	assert.Equal(t, 60, merged.ChecksMaxTime)
}

func TestMergeConfigs_EmptyBaseExclusions(t *testing.T) {
	base := &Config{
		Exclude: []string{},
	}

	project := &Config{
		Exclude: []string{"**/build/**"},
	}

	merged := mergeConfigs(base, project)

	assert.Equal(t, project.Exclude, merged.Exclude)
}

// Integration tests for config loading with home directory

func TestLoadWithRoot_MergesGlobalAndProjectConfigs(t *testing.T) {
	tmpHome := t.TempDir()
	tmpProject := t.TempDir()

	globalConfig := `
exclude {
    "**/vendor/**"
    "**/third_party/**"
    "**/real_projects/**"
}

include {
    "*.c"
    "*.h"
}

analysis {
    max_configs 4
}
`
	err := os.WriteFile(filepath.Join(tmpHome, ".cppcore.kdl"), []byte(globalConfig), 0644)
	require.NoError(t, err)

	projectConfig := `
project {
    root "."
    name "test-project"
}

exclude {
    "**/build/**"
    "**/cmake-build-*/**"
}

analysis {
    max_configs 16
}
`
	err = os.WriteFile(filepath.Join(tmpProject, ".cppcore.kdl"), []byte(projectConfig), 0644)
	require.NoError(t, err)

	originalHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	defer os.Setenv("HOME", originalHome)

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Contains(t, cfg.Exclude, "**/vendor/**", "Should include global exclusion")
	assert.Contains(t, cfg.Exclude, "**/third_party/**", "Should include global exclusion")
	assert.Contains(t, cfg.Exclude, "**/real_projects/**", "Should include global exclusion")
	assert.Contains(t, cfg.Exclude, "**/build/**", "Should include project exclusion")
	assert.Contains(t, cfg.Exclude, "**/cmake-build-*/**", "Should include project exclusion")

	assert.Equal(t, 16, cfg.MaxConfigs, "Project max_configs should override global")
	assert.Equal(t, "test-project", cfg.Project.Name)
}

func TestLoadWithRoot_ProjectConfigOnly(t *testing.T) {
	tmpProject := t.TempDir()

	projectConfig := `
project {
    root "."
    name "test-project"
}

exclude {
    "**/build/**"
}
`
	err := os.WriteFile(filepath.Join(tmpProject, ".cppcore.kdl"), []byte(projectConfig), 0644)
	require.NoError(t, err)

	os.Setenv("HOME", "/nonexistent")
	defer os.Unsetenv("HOME")

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Contains(t, cfg.Exclude, "**/build/**")
	assert.Equal(t, "test-project", cfg.Project.Name)
}

func TestLoadWithRoot_GlobalConfigOnly(t *testing.T) {
	tmpHome := t.TempDir()
	tmpProject := t.TempDir()

	globalConfig := `
exclude {
    "**/vendor/**"
    "**/real_projects/**"
}
`
	err := os.WriteFile(filepath.Join(tmpHome, ".cppcore.kdl"), []byte(globalConfig), 0644)
	require.NoError(t, err)

	originalHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	defer os.Setenv("HOME", originalHome)

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Contains(t, cfg.Exclude, "**/vendor/**")
	assert.Contains(t, cfg.Exclude, "**/real_projects/**")
}

func TestLoadWithRoot_DefaultConfigFallback(t *testing.T) {
	tmpProject := t.TempDir()
	os.Setenv("HOME", "/nonexistent")
	defer os.Unsetenv("HOME")

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.NotEmpty(t, cfg.Exclude, "Should have default exclusions")
	assert.Empty(t, cfg.Include, "Should have empty default inclusions (include everything by default)")
}

func TestMergeConfigs_PreservesBaseExclusionsInTests(t *testing.T) {
	base := &Config{
		Exclude: []string{
			"**/real_projects/**",
			"**/testing/**",
			"**/testdata/**",
		},
	}

	project := &Config{
		Project: Project{
			Name: "test-project",
		},
		Exclude: []string{},
	}

	merged := mergeConfigs(base, project)

	assert.Contains(t, merged.Exclude, "**/real_projects/**",
		"Base exclusion for real_projects must be preserved for tests")
	assert.Contains(t, merged.Exclude, "**/testing/**",
		"Base exclusion for testing must be preserved")
	assert.Contains(t, merged.Exclude, "**/testdata/**",
		"Base exclusion for testdata must be preserved")
}
