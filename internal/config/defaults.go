package config

const (
	defaultWorkDir            = "~/.local/share/shuttle"
	defaultLogDir             = "~/.local/share/shuttle/logs"
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMTimeoutSeconds  = 120
	defaultOracleModel        = "google/gemini-3-flash-preview"
	defaultOracleSourceWindow = 5
	defaultOracleTargetWindow = 30
	defaultOracleOverlap      = 3
	defaultOracleMaxWindow    = 60
	defaultOracleMaxRetries   = 3
	defaultAlignerThreshold   = 0.25
	defaultSegmenterMaxChars  = 2000
	defaultPipelineWorkers    = 5
	defaultPipelineAttempts   = 3
	defaultPipelineBackoff    = 2
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Oracle: Oracle{
			Model:           defaultOracleModel,
			SourceWindow:    defaultOracleSourceWindow,
			TargetWindow:    defaultOracleTargetWindow,
			Overlap:         defaultOracleOverlap,
			MaxTargetWindow: defaultOracleMaxWindow,
			MaxRetries:      defaultOracleMaxRetries,
		},
		Aligner: Aligner{
			Threshold: defaultAlignerThreshold,
		},
		Segmenter: Segmenter{
			MaxChars: defaultSegmenterMaxChars,
		},
		Pipeline: Pipeline{
			Workers:        defaultPipelineWorkers,
			Attempts:       defaultPipelineAttempts,
			BackoffSeconds: defaultPipelineBackoff,
		},
		Filter: Filter{
			DetectRepeated: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
