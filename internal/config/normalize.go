package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeModels()
	c.normalizeOracle()
	c.normalizePipeline()
	c.normalizeFilter()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("SHUTTLE_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeModels() {
	models := make([]Model, 0, len(c.Models))
	for _, model := range c.Models {
		model.Name = strings.TrimSpace(model.Name)
		model.Model = strings.TrimSpace(model.Model)
		model.BaseURL = strings.TrimSpace(model.BaseURL)
		model.APIKey = strings.TrimSpace(model.APIKey)
		if model.Model == "" {
			continue
		}
		models = append(models, model)
	}
	c.Models = models
	c.Integration.Model = strings.TrimSpace(c.Integration.Model)
	c.Integration.BaseURL = strings.TrimSpace(c.Integration.BaseURL)
	c.Integration.APIKey = strings.TrimSpace(c.Integration.APIKey)
}

func (c *Config) normalizeOracle() {
	c.Oracle.Model = strings.TrimSpace(c.Oracle.Model)
	if c.Oracle.Model == "" {
		c.Oracle.Model = defaultOracleModel
	}
	c.Oracle.BaseURL = strings.TrimSpace(c.Oracle.BaseURL)
	c.Oracle.APIKey = strings.TrimSpace(c.Oracle.APIKey)
	if c.Oracle.SourceWindow <= 0 {
		c.Oracle.SourceWindow = defaultOracleSourceWindow
	}
	if c.Oracle.TargetWindow <= 0 {
		c.Oracle.TargetWindow = defaultOracleTargetWindow
	}
	if c.Oracle.Overlap < 0 {
		c.Oracle.Overlap = defaultOracleOverlap
	}
	if c.Oracle.MaxTargetWindow <= 0 {
		c.Oracle.MaxTargetWindow = defaultOracleMaxWindow
	}
	if c.Oracle.MaxTargetWindow < c.Oracle.TargetWindow {
		c.Oracle.MaxTargetWindow = c.Oracle.TargetWindow
	}
	if c.Oracle.MaxRetries <= 0 {
		c.Oracle.MaxRetries = defaultOracleMaxRetries
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = defaultPipelineWorkers
	}
	if c.Pipeline.Attempts <= 0 {
		c.Pipeline.Attempts = defaultPipelineAttempts
	}
	if c.Pipeline.BackoffSeconds <= 0 {
		c.Pipeline.BackoffSeconds = defaultPipelineBackoff
	}
	if c.Aligner.Threshold <= 0 {
		c.Aligner.Threshold = defaultAlignerThreshold
	}
	if c.Segmenter.MaxChars <= 0 {
		c.Segmenter.MaxChars = defaultSegmenterMaxChars
	}
}

func (c *Config) normalizeFilter() {
	patterns := make([]string, 0, len(c.Filter.Patterns))
	for _, pattern := range c.Filter.Patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		patterns = append(patterns, pattern)
	}
	c.Filter.Patterns = patterns
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
