package config

import (
	"testing"
)

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := &Config{
		Project: Project{
			Root: "/test/root",
			Name: "test-project",
		},
		MaxConfigs:          8,
		ParallelFileWorkers: 1, // Set to valid value to pass validation
	}

	validator := NewValidator()
	err := validator.ValidateAndSetDefaults(cfg)
	if err != nil {
		t.Fatalf("ValidateAndSetDefaults failed: %v", err)
	}

	if cfg.ParallelFileWorkers == 0 {
		t.Errorf("ParallelFileWorkers should be non-zero after validation")
	}

	if len(cfg.EnabledSeverities) == 0 {
		t.Errorf("EnabledSeverities should have a default value")
	}
}

func TestValidateProjectConfig(t *testing.T) {
	validator := NewValidator()

	// Valid config
	err := validator.validateProjectConfig(&Project{
		Root: "/test/root",
		Name: "test-project",
	})
	if err != nil {
		t.Errorf("Expected no error for valid config, got %v", err)
	}

	// Empty root
	err = validator.validateProjectConfig(&Project{
		Root: "",
		Name: "test-project",
	})
	if err == nil {
		t.Errorf("Expected error for empty root")
	}
}

func TestValidateAnalysisConfig(t *testing.T) {
	validator := NewValidator()

	// Valid config
	err := validator.validateAnalysisConfig(&Config{
		MaxConfigs:          12,
		ChecksMaxTime:       30,
		ParallelFileWorkers: 8,
	})
	if err != nil {
		t.Errorf("Expected no error for valid config, got %v", err)
	}

	// Negative MaxConfigs
	err = validator.validateAnalysisConfig(&Config{MaxConfigs: -1})
	if err == nil {
		t.Errorf("Expected error for negative MaxConfigs")
	}

	// Negative ChecksMaxTime
	err = validator.validateAnalysisConfig(&Config{ChecksMaxTime: -1})
	if err == nil {
		t.Errorf("Expected error for negative ChecksMaxTime")
	}

	// Negative ParallelFileWorkers
	err = validator.validateAnalysisConfig(&Config{ParallelFileWorkers: -1})
	if err == nil {
		t.Errorf("Expected error for negative ParallelFileWorkers")
	}

	// Unknown severity name
	err = validator.validateAnalysisConfig(&Config{EnabledSeverities: []string{"bogus"}})
	if err == nil {
		t.Errorf("Expected error for unknown severity name")
	}
}

func TestValidateConfig(t *testing.T) {
	cfg := &Config{
		Project: Project{
			Root: "/test/root",
			Name: "test-project",
		},
		ParallelFileWorkers: 1,
	}

	err := ValidateConfig(cfg)
	if err != nil {
		t.Fatalf("ValidateConfig failed: %v", err)
	}

	invalidCfg := &Config{
		Project: Project{
			Root: "", // Invalid
			Name: "test-project",
		},
	}

	err = ValidateConfig(invalidCfg)
	if err == nil {
		t.Errorf("Expected error for invalid config")
	}
}

func TestSetSmartDefaults(t *testing.T) {
	cfg := &Config{
		Project: Project{
			Root: "/test/root",
			Name: "test-project",
		},
		MaxConfigs: 0, // Should be set
	}

	validator := NewValidator()
	validator.setSmartDefaults(cfg)

	if cfg.MaxConfigs == 0 {
		t.Errorf("MaxConfigs should have been set")
	}

	if cfg.ParallelFileWorkers == 0 {
		t.Errorf("ParallelFileWorkers should have been set")
	}

	if len(cfg.EnabledSeverities) == 0 {
		t.Errorf("EnabledSeverities should have been set")
	}
}

func BenchmarkValidateAndSetDefaults(b *testing.B) {
	cfg := &Config{
		Project: Project{
			Root: "/test/root",
			Name: "test-project",
		},
		MaxConfigs: 12,
	}

	validator := NewValidator()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		testCfg := *cfg
		_ = validator.ValidateAndSetDefaults(&testCfg)
	}
}
