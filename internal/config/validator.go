package config

import (
	"errors"
	"fmt"
	"runtime"
)

// Validator validates configuration and sets smart defaults.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
// Returns an error if validation fails.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return fmt.Errorf("config: project: %w", err)
	}

	if err := v.validateAnalysisConfig(cfg); err != nil {
		return fmt.Errorf("config: analysis: %w", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

// validateProjectConfig validates project configuration.
func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}

	return nil
}

// validateAnalysisConfig validates the global analysis settings.
func (v *Validator) validateAnalysisConfig(cfg *Config) error {
	if cfg.MaxConfigs < 0 {
		return fmt.Errorf("MaxConfigs cannot be negative, got %d", cfg.MaxConfigs)
	}

	if cfg.ChecksMaxTime < 0 {
		return fmt.Errorf("ChecksMaxTime cannot be negative, got %d", cfg.ChecksMaxTime)
	}

	if cfg.ParallelFileWorkers < 0 {
		return fmt.Errorf("ParallelFileWorkers cannot be negative, got %d", cfg.ParallelFileWorkers)
	}

	for _, sev := range cfg.EnabledSeverities {
		if !isKnownSeverityName(sev) {
			return fmt.Errorf("unknown severity %q in EnabledSeverities", sev)
		}
	}

	return nil
}

func isKnownSeverityName(name string) bool {
	switch name {
	case "error", "warning", "style", "performance", "portability", "information", "debug", "internal":
		return true
	default:
		return false
	}
}

// setSmartDefaults applies smart defaults based on system capabilities.
func (v *Validator) setSmartDefaults(cfg *Config) {
	// Leave one core free for the OS and other applications.
	if cfg.ParallelFileWorkers == 0 {
		cfg.ParallelFileWorkers = max(1, runtime.NumCPU()-1)
	}

	if cfg.MaxConfigs == 0 {
		cfg.MaxConfigs = 12
	}

	if len(cfg.EnabledSeverities) == 0 {
		cfg.EnabledSeverities = []string{"error", "warning", "style", "performance", "portability"}
	}
}

// ValidateConfig is a convenience function for quick validation.
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
