package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/mlcompare/pkg/errors"
)

// EnvPrefix prefixes every environment variable, e.g. MLCOMPARE_SERVER_PORT.
const EnvPrefix = "MLCOMPARE"

// legacyEnv maps the unprefixed variable names used by earlier deployments
// onto config keys. The prefixed name wins when both are set.
var legacyEnv = map[string]string{
	"upload.max_file_size":   "MAX_FILE_SIZE",
	"ml.test_size":           "TEST_SIZE",
	"ml.random_state":        "RANDOM_STATE",
	"ml.n_jobs":              "N_JOBS",
	"server.debug":           "DEBUG",
	"server.allowed_origins": "ALLOWED_ORIGINS",
	"log.level":              "LOG_LEVEL",
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"host":           "server.host",
	"port":           "server.port",
	"debug":          "server.debug",
	"max-concurrent": "server.max_concurrent",
	"max-file-size":  "upload.max_file_size",
	"test-size":      "ml.test_size",
	"random-state":   "ml.random_state",
	"n-jobs":         "ml.n_jobs",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"log-path":       "log.path",
}

// LoadDotEnv loads a .env file from the working directory when present.
// It returns false when no file was found.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

func setDefault(v *viper.Viper) {
	d := GetDefaultConfig()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.debug", d.Server.Debug)
	v.SetDefault("server.max_concurrent", d.Server.MaxConcurrent)
	v.SetDefault("server.max_wait_time", d.Server.MaxWaitTime)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("upload.max_file_size", d.Upload.MaxFileSize)
	v.SetDefault("ml.test_size", d.ML.TestSize)
	v.SetDefault("ml.random_state", d.ML.RandomState)
	v.SetDefault("ml.n_jobs", d.ML.NJobs)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return errors.Wrapf(err, "bind env %s", key)
		}
	}
	return nil
}

// Load builds the configuration. Sources in increasing priority: defaults,
// the file at path (yaml, toml or json by extension; empty means none),
// environment variables and the changed flags of fs (may be nil).
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefault(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize accepts the upper-case level names used by earlier deployments
// (LOG_LEVEL=INFO) and comma separated origin lists from the environment.
func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	var origins []string
	for _, o := range c.Server.AllowedOrigins {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	c.Server.AllowedOrigins = origins
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints and reports the first
// violation as a ValidationError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewValidationError(fe.Namespace(), "failed on the '"+fe.Tag()+"' rule", fe.Value())
		}
		return errors.Wrap(err, "validate config")
	}
	return nil
}
