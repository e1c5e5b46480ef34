// Package config provides application settings loaded from environment variables.
//
// Settings are created via Load() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Range checks via Validate()
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/weftlabs/weft/llm"
	"github.com/weftlabs/weft/resolve"
)

// Default values applied when the environment is silent.
const (
	DefaultProvider   = "openai"
	DefaultMaxTokens  = 4096
	DefaultTemp       = 0.7
	DefaultMediaCache = 64
	DefaultDBPath     = "weft.db"
)

// Settings holds all application configuration.
type Settings struct {
	// Resolution configures the link-resolution engine.
	Resolution resolve.Options

	// Provider names the completion backend; Model overrides its default.
	Provider string
	Model    string

	MaxTokens   uint32
	Temperature float64

	// FFmpegPath overrides the ffmpeg binary used for audio transcoding;
	// empty means "ffmpeg" from PATH.
	FFmpegPath string
	// MediaCache is the encoded-part cache size; <= 0 disables caching.
	MediaCache int

	// DBPath locates the run log database.
	DBPath string

	Verbose bool
}

// Load reads settings from environment variables, applying defaults for
// anything unset. Returns an error on unparseable values.
func Load() (Settings, error) {
	enabled, err := getEnvBool("WEFT_ENABLED", true)
	if err != nil {
		return Settings{}, err
	}

	maxDepth, err := getEnvInt("WEFT_MAX_DEPTH", resolve.DefaultMaxDepth)
	if err != nil {
		return Settings{}, err
	}

	caching, err := getEnvBool("WEFT_CACHING", true)
	if err != nil {
		return Settings{}, err
	}

	writeIntermediate, err := getEnvBool("WEFT_WRITE_INTERMEDIATE", false)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("WEFT_MAX_TOKENS", DefaultMaxTokens)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("WEFT_TEMPERATURE", DefaultTemp)
	if err != nil {
		return Settings{}, err
	}

	mediaCache, err := getEnvInt("WEFT_MEDIA_CACHE", DefaultMediaCache)
	if err != nil {
		return Settings{}, err
	}

	verbose, err := getEnvBool("WEFT_VERBOSE", false)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Resolution: resolve.Options{
			Enabled:                  enabled,
			MaxDepth:                 maxDepth,
			EnableCaching:            caching,
			WriteIntermediateResults: writeIntermediate,
		},
		Provider:    getEnvString("WEFT_PROVIDER", DefaultProvider),
		Model:       os.Getenv("WEFT_MODEL"),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		FFmpegPath:  os.Getenv("WEFT_FFMPEG"),
		MediaCache:  mediaCache,
		DBPath:      getEnvString("WEFT_DB", DefaultDBPath),
		Verbose:     verbose,
	}, nil
}

// Validate checks that loaded settings are usable.
func (s Settings) Validate() error {
	if s.Resolution.MaxDepth < 1 || s.Resolution.MaxDepth > resolve.MaxDepthLimit {
		return fmt.Errorf("max depth must be between 1 and %d, got %d",
			resolve.MaxDepthLimit, s.Resolution.MaxDepth)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", s.Temperature)
	}
	if _, err := llm.ParseProviderType(s.Provider); err != nil {
		return err
	}
	return nil
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}
