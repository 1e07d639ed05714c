// Package config loads signbridge configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. SIGNBRIDGE_PORT.
const Prefix = "signbridge"

// Cadence names accepted by CADENCE.
const (
	CadenceInterval = "interval"
	CadenceFrame    = "frame"
)

// Config holds all configuration for the translator.
type Config struct {
	// Server configuration
	Port      string `envconfig:"PORT" default:"8080"`
	StaticDir string `envconfig:"STATIC_DIR" default:""`
	DataDir   string `envconfig:"DATA_DIR" default:""` // Defaults to ~/.signbridge
	PluginDir string `envconfig:"PLUGIN_DIR" default:""`
	Tray      bool   `envconfig:"TRAY" default:"false"`

	// Remote pose lookup
	PoseEndpoint   string `envconfig:"POSE_ENDPOINT" required:"true"`
	SpokenLanguage string `envconfig:"SPOKEN_LANGUAGE" default:"en"`

	// Model bindings; each is a base URL holding model.json and metadata.json
	ModelURLASL    string `envconfig:"MODEL_URL_ASL" required:"true"`
	ModelURLISL    string `envconfig:"MODEL_URL_ISL" required:"true"`
	OnnxRuntimeLib string `envconfig:"ONNXRUNTIME_LIB" default:""`

	// Capture configuration
	CameraID           int    `envconfig:"CAMERA_ID" default:"0"`
	CaptureDimension   int    `envconfig:"CAPTURE_DIMENSION" default:"300"`
	CaptureMirrored    bool   `envconfig:"CAPTURE_MIRRORED" default:"true"`
	Cadence            string `envconfig:"CADENCE" default:"interval"` // interval or frame
	CadenceIntervalMs  int    `envconfig:"CADENCE_INTERVAL_MS" default:"50"`
	RefreshHz          int    `envconfig:"REFRESH_HZ" default:"60"`
	PreviewEnabled     bool   `envconfig:"PREVIEW_ENABLED" default:"true"`
	DiagnosticsEnabled bool   `envconfig:"DIAGNOSTICS_ENABLED" default:"false"`

	// Policy constants
	ConfidenceThreshold float64 `envconfig:"CONFIDENCE_THRESHOLD" default:"0.5"`
	PredictionSettleMs  int     `envconfig:"PREDICTION_SETTLE_MS" default:"50"`
	DictationSettleMs   int     `envconfig:"DICTATION_SETTLE_MS" default:"500"`
	FetchSettleMs       int     `envconfig:"FETCH_SETTLE_MS" default:"1000"`
	VariantSettleMs     int     `envconfig:"VARIANT_SETTLE_MS" default:"1000"`
	FetchTimeoutMs      int     `envconfig:"FETCH_TIMEOUT_MS" default:"0"` // 0 leaves it to the transport

	// Dictation (speech-to-text); disabled without an API key
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Speech playback (text-to-speech); disabled without an API key
	TTSAPIKey   string `envconfig:"TTS_API_KEY" default:""`
	TTSEndpoint string `envconfig:"TTS_ENDPOINT" default:"https://api.cartesia.ai/tts/bytes"`
	TTSVoiceID  string `envconfig:"TTS_VOICE_ID" default:"sonic-english"`
	TTSModelID  string `envconfig:"TTS_MODEL_ID" default:"sonic"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from a .env file, if present, and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv reads configuration from the environment only.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges that envconfig cannot express.
func (c *Config) Validate() error {
	if c.PoseEndpoint == "" {
		return fmt.Errorf("POSE_ENDPOINT is required")
	}
	if c.ModelURLASL == "" || c.ModelURLISL == "" {
		return fmt.Errorf("MODEL_URL_ASL and MODEL_URL_ISL are required")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.Cadence != CadenceInterval && c.Cadence != CadenceFrame {
		return fmt.Errorf("CADENCE must be %q or %q, got %q", CadenceInterval, CadenceFrame, c.Cadence)
	}
	if c.Cadence == CadenceInterval && c.CadenceIntervalMs <= 0 {
		return fmt.Errorf("CADENCE_INTERVAL_MS must be positive")
	}
	if c.Cadence == CadenceFrame && c.RefreshHz <= 0 {
		return fmt.Errorf("REFRESH_HZ must be positive")
	}
	if c.CaptureDimension <= 0 {
		return fmt.Errorf("CAPTURE_DIMENSION must be positive")
	}
	return nil
}

// CadenceDelay returns the fixed-interval delay.
func (c *Config) CadenceDelay() time.Duration {
	return time.Duration(c.CadenceIntervalMs) * time.Millisecond
}

// RefreshInterval returns the period of the frame-synced refresh clock.
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshHz <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.RefreshHz)
}

// PredictionSettle returns the prediction debounce settling period.
func (c *Config) PredictionSettle() time.Duration {
	return time.Duration(c.PredictionSettleMs) * time.Millisecond
}

// DictationSettle returns the dictation debounce settling period.
func (c *Config) DictationSettle() time.Duration {
	return time.Duration(c.DictationSettleMs) * time.Millisecond
}

// FetchSettle returns the remote lookup debounce settling period.
func (c *Config) FetchSettle() time.Duration {
	return time.Duration(c.FetchSettleMs) * time.Millisecond
}

// VariantSettle returns the delay applied after the camera is released on a variant switch.
func (c *Config) VariantSettle() time.Duration {
	return time.Duration(c.VariantSettleMs) * time.Millisecond
}

// FetchTimeout returns the HTTP client timeout for lookups; zero means none.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

// DataPath returns the data directory, creating it if needed.
func (c *Config) DataPath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".signbridge")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// PluginPath returns the plugin directory, defaulting to <data dir>/plugins.
func (c *Config) PluginPath(dataDir string) string {
	if c.PluginDir != "" {
		return c.PluginDir
	}
	return filepath.Join(dataDir, "plugins")
}

// DictationEnabled reports whether a speech-to-text key is configured.
func (c *Config) DictationEnabled() bool {
	return c.DeepgramAPIKey != ""
}

// SpeechEnabled reports whether a text-to-speech key is configured.
func (c *Config) SpeechEnabled() bool {
	return c.TTSAPIKey != ""
}
