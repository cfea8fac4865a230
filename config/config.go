// Package config loads the service configuration from defaults, an optional
// config file, environment variables and command line flags, and validates
// it on startup.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Upload UploadConfig `mapstructure:"upload"`
	ML     MLConfig     `mapstructure:"ml"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `mapstructure:"host" validate:"required"`

	// Port is the port to listen on (default: 8000)
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// AllowedOrigins are the CORS origins allowed to call the API.
	AllowedOrigins []string `mapstructure:"allowed_origins" validate:"dive,url"`

	// Debug enables verbose request logging.
	Debug bool `mapstructure:"debug"`

	// MaxConcurrent is the number of comparisons run at the same time (default: 4)
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"min=1"`

	// MaxWaitTime is how long a request waits for a comparison slot (default: 30s)
	MaxWaitTime time.Duration `mapstructure:"max_wait_time" validate:"gt=0"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// UploadConfig holds CSV upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `mapstructure:"max_file_size" validate:"gt=0"`
}

// MLConfig holds the settings of the comparison pipeline.
type MLConfig struct {
	// TestSize is the held-out fraction (default: 0.2)
	TestSize float64 `mapstructure:"test_size" validate:"gt=0,lt=1"`

	// RandomState seeds the split and every stochastic estimator (default: 42)
	RandomState int64 `mapstructure:"random_state" validate:"gte=0"`

	// NJobs is the parallelism hint; -1 means one worker per CPU (default: -1)
	NJobs int `mapstructure:"n_jobs" validate:"gte=-1"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text zerolog"`

	// Path enables a rotating log file in addition to stdout.
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// GetDefaultConfig returns the configuration used when nothing is set.
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			},
			MaxConcurrent:   4,
			MaxWaitTime:     30 * time.Second,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Upload: UploadConfig{
			MaxFileSize: 100 * 1024 * 1024,
		},
		ML: MLConfig{
			TestSize:    0.2,
			RandomState: 42,
			NJobs:       -1,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
