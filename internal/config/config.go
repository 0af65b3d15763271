package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// LLM contains shared endpoint settings used by every model that does not
// override them.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Model references one translation candidate endpoint. Empty base_url and
// api_key fall back to the [llm] section.
type Model struct {
	Name    string `toml:"name"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// Integration configures the model that merges candidate translations.
// When model is empty the first entry of [[models]] integrates its own output.
type Integration struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// Oracle configures the alignment judgment model and its sliding windows.
type Oracle struct {
	Model           string `toml:"model"`
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	SourceWindow    int    `toml:"source_window"`
	TargetWindow    int    `toml:"target_window"`
	Overlap         int    `toml:"overlap"`
	MaxTargetWindow int    `toml:"max_target_window"`
	MaxRetries      int    `toml:"max_retries"`
}

// Aligner configures the heuristic pre-pass.
type Aligner struct {
	Threshold float64 `toml:"threshold"`
}

// Segmenter configures source text segmentation.
type Segmenter struct {
	MaxChars int `toml:"max_chars"`
}

// Pipeline configures the worker pool that drains translation units.
type Pipeline struct {
	Workers        int `toml:"workers"`
	Attempts       int `toml:"attempts"`
	BackoffSeconds int `toml:"backoff_seconds"`
}

// Filter configures boilerplate line removal from extracted text.
type Filter struct {
	Patterns       []string `toml:"patterns"`
	DetectRepeated bool     `toml:"detect_repeated"`
}

// Prompts optionally overrides the built-in prompt texts.
type Prompts struct {
	Translation string `toml:"translation"`
	Integration string `toml:"integration"`
	Review      string `toml:"review"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Shuttle.
//
// Configuration sections by subsystem:
//   - Paths: working and log directories
//   - LLM: shared endpoint defaults for all models
//   - Models: translation candidate endpoints
//   - Integration: the model that merges candidates
//   - Oracle: alignment judgment model and window tuning
//   - Aligner: heuristic alignment threshold
//   - Segmenter: source segmentation limits
//   - Pipeline: worker pool sizing and retry budget
//   - Filter: boilerplate line removal
//   - Prompts: prompt text overrides
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	LLM         LLM         `toml:"llm"`
	Models      []Model     `toml:"models"`
	Integration Integration `toml:"integration"`
	Oracle      Oracle      `toml:"oracle"`
	Aligner     Aligner     `toml:"aligner"`
	Segmenter   Segmenter   `toml:"segmenter"`
	Pipeline    Pipeline    `toml:"pipeline"`
	Filter      Filter      `toml:"filter"`
	Prompts     Prompts     `toml:"prompts"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shuttle/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shuttle.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TaskDBPath returns the location of the task database.
func (c *Config) TaskDBPath() string {
	return filepath.Join(c.Paths.WorkDir, "tasks.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// OracleEndpoint returns the oracle's endpoint settings with [llm] fallbacks
// applied.
func (c *Config) OracleEndpoint() (model, baseURL, apiKey string) {
	model = strings.TrimSpace(c.Oracle.Model)
	baseURL = strings.TrimSpace(c.Oracle.BaseURL)
	apiKey = strings.TrimSpace(c.Oracle.APIKey)
	if baseURL == "" {
		baseURL = strings.TrimSpace(c.LLM.BaseURL)
	}
	if apiKey == "" {
		apiKey = strings.TrimSpace(c.LLM.APIKey)
	}
	return model, baseURL, apiKey
}
