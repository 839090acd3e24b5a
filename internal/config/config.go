// Package config loads transcoder configuration from command-line flags,
// environment variables, a .env file and defaults, in that order of precedence.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/listenup-transcoder/internal/domain"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Storage   StorageConfig
	Transcode TranscodeConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, pretty or text; empty picks by environment
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // default: 8080
	ReadTimeout  time.Duration // default: 15s
	WriteTimeout time.Duration // default: 15s; event streams extend their own deadline
	IdleTimeout  time.Duration // default: 60s
	CORSOrigins  []string      // default: *
}

// StorageConfig holds job history storage configuration.
type StorageConfig struct {
	// DataPath is the badger directory (default: ~/.listenup-transcoder/jobs).
	DataPath string
	// InMemory keeps job history in memory only.
	InMemory bool
}

// TranscodeConfig holds the defaults applied to jobs that do not set them.
type TranscodeConfig struct {
	Workers          int // default: number of CPUs
	CopyUnrecognized bool
	Quality          string
	Bitrate          int // kbps; 0 selects the highest step
	TagMerge         string
	PollInterval     time.Duration // progress emitter poll (default: 100ms)
}

// EncodeConfig converts the transcode defaults into an encoder configuration.
func (t TranscodeConfig) EncodeConfig() domain.EncodeConfig {
	q, err := domain.ParseQuality(t.Quality)
	if err != nil {
		q = domain.QualityBest
	}
	return domain.EncodeConfig{
		Quality:  q,
		Bitrate:  domain.Bitrate(t.Bitrate),
		TagMerge: domain.TagMergePolicy(t.TagMerge),
	}
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("listenup-transcoder", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty, text)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed CORS origins (default: *)")

	dataPath := fs.String("data-path", "", "Directory for job history")
	inMemory := fs.String("in-memory", "", "Keep job history in memory only (default: false)")

	workers := fs.String("workers", "", "Default worker count (default: number of CPUs)")
	copyUnrecognized := fs.String("copy-unrecognized", "", "Copy files that are not converted (default: true)")
	quality := fs.String("quality", "", "Default encoder quality, best to worst (default: best)")
	bitrate := fs.String("bitrate", "", "Default bitrate in kbps, 0 for highest (default: 0)")
	tagMerge := fs.String("tag-merge", "", "Tag collision policy, last or first (default: last)")
	pollInterval := fs.String("poll-interval", "", "Progress poll interval (default: 100ms)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// A missing .env file is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
			InMemory: getBoolConfigValue(*inMemory, "STORAGE_IN_MEMORY", false),
		},
		Transcode: TranscodeConfig{
			Workers:          getIntConfigValue(*workers, "TRANSCODE_WORKERS", runtime.NumCPU()),
			CopyUnrecognized: getBoolConfigValue(*copyUnrecognized, "TRANSCODE_COPY_UNRECOGNIZED", true),
			Quality:          getConfigValue(*quality, "TRANSCODE_QUALITY", string(domain.QualityBest)),
			Bitrate:          getIntConfigValue(*bitrate, "TRANSCODE_BITRATE", int(domain.BitrateUnknown)),
			TagMerge:         getConfigValue(*tagMerge, "TRANSCODE_TAG_MERGE", string(domain.TagMergeLastWins)),
		},
	}

	durations := []struct {
		name   string
		flag   string
		envKey string
		def    string
		dst    *time.Duration
	}{
		{"read timeout", *readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{"write timeout", *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{"idle timeout", *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"poll interval", *pollInterval, "TRANSCODE_POLL_INTERVAL", "100ms", &cfg.Transcode.PollInterval},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Logger.Format {
	case "", "json", "pretty", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json, pretty, or text)", c.Logger.Format)
	}

	if c.Server.Port == "" {
		return errors.New("server port cannot be empty")
	}

	if !c.Storage.InMemory && c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty unless storage is in memory")
	}

	if c.Transcode.Workers < 1 {
		return fmt.Errorf("invalid worker count: %d (must be at least 1)", c.Transcode.Workers)
	}
	if _, err := domain.ParseQuality(c.Transcode.Quality); err != nil {
		return err
	}
	if !domain.Bitrate(c.Transcode.Bitrate).Valid() {
		return fmt.Errorf("invalid bitrate: %d kbps", c.Transcode.Bitrate)
	}
	if !domain.TagMergePolicy(c.Transcode.TagMerge).Valid() {
		return fmt.Errorf("invalid tag merge policy: %s (must be last or first)", c.Transcode.TagMerge)
	}
	if c.Transcode.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}

	return nil
}

// ExpandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func ExpandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults the job history directory under the home directory.
func (c *Config) expandDataPath() error {
	if c.Storage.InMemory {
		return nil
	}

	defaultPath := ""
	if homeDir, err := os.UserHomeDir(); err == nil {
		defaultPath = filepath.Join(homeDir, ".listenup-transcoder", "jobs")
	}

	expanded, err := ExpandPath(c.Storage.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
