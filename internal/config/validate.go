package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateOracle(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateModels() error {
	seen := make(map[string]struct{}, len(c.Models))
	for i, model := range c.Models {
		if model.APIKey == "" && model.BaseURL == "" && c.LLM.APIKey == "" {
			return fmt.Errorf("models[%d] (%s) has no api key and llm.api_key is unset. Set OPENROUTER_API_KEY or edit the config (create with 'shuttle config init')", i, model.Model)
		}
		key := model.Name
		if key == "" {
			key = model.Model
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("models[%d] duplicates name %q", i, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c *Config) validateOracle() error {
	if c.Oracle.Model == "" {
		return errors.New("oracle.model must be set")
	}
	if c.Oracle.Overlap >= c.Oracle.TargetWindow {
		return errors.New("oracle.overlap must be smaller than oracle.target_window")
	}
	if c.Oracle.MaxTargetWindow < c.Oracle.TargetWindow {
		return errors.New("oracle.max_target_window must be at least oracle.target_window")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.workers":         c.Pipeline.Workers,
		"pipeline.attempts":        c.Pipeline.Attempts,
		"pipeline.backoff_seconds": c.Pipeline.BackoffSeconds,
		"segmenter.max_chars":      c.Segmenter.MaxChars,
		"llm.timeout_seconds":      c.LLM.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Aligner.Threshold < 0 || c.Aligner.Threshold > 1 {
		return errors.New("aligner.threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateFilter() error {
	for _, pattern := range c.Filter.Patterns {
		if _, err := regexp.Compile("(?i)" + strings.TrimSpace(pattern)); err != nil {
			return fmt.Errorf("filter.patterns entry %q: %w", pattern, err)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
