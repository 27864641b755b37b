package config

import (
	"os"
	"runtime"
	"time"

	"github.com/procwatt/procwatt/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultInterval    = time.Second
	defaultTickTimeout = 5 * time.Second
	defaultGraceTicks  = 1
	defaultPowerDraw   = 35.0
	defaultMaxSeries   = 1024
	defaultDBPath      = "/var/lib/procwattd/history.db"
)

// Config is the single configuration value handed to the core at startup.
// The core packages never read configuration sources themselves.
type Config struct {
	// Sampling
	Interval    time.Duration `mapstructure:"interval"`
	TickTimeout time.Duration `mapstructure:"tick_timeout"`
	GraceTicks  int           `mapstructure:"grace_ticks"`

	// Cost model
	TotalPowerDraw float64 `mapstructure:"total_power_draw"`
	CoreCount      int     `mapstructure:"core_count"`
	Attribution    string  `mapstructure:"attribution"`

	// Label governing
	IncludePID        bool   `mapstructure:"include_pid"`
	IncludeName       bool   `mapstructure:"include_name"`
	MaxSeries         int    `mapstructure:"max_series"`
	CollisionStrategy string `mapstructure:"collision_strategy"`

	// History sink
	History  bool   `mapstructure:"history"`
	Database string `mapstructure:"database"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`
}

// LogLevelValue represents valid logging levels
type LogLevelValue string

const (
	LogLevelDebug   LogLevelValue = "debug"
	LogLevelInfo    LogLevelValue = "info"
	LogLevelWarning LogLevelValue = "warning"
	LogLevelError   LogLevelValue = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevelValue) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// Load reads configuration from file, environment and flags, in increasing
// order of precedence. The file is /etc/procwatt.toml (or the path in the
// PROCWATT_CONFIG env var); environment variables use the PROCWATT_ prefix.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("procwattd", pflag.ContinueOnError)
	fs.Duration("interval", defaultInterval, "Polling interval")
	fs.Duration("tick-timeout", defaultTickTimeout, "Per-tick I/O budget")
	fs.Int("grace-ticks", defaultGraceTicks, "Missed snapshots tolerated before a process is evicted")
	fs.Float64("total-power-draw", defaultPowerDraw, "Full-utilization power draw in watts (e.g. TDP)")
	fs.Int("core-count", 0, "Logical CPU count used for normalization (0 = detect)")
	fs.String("attribution", "cpu-time", "Attribution mode: cpu-time or cpu-time-per-core")
	fs.Bool("include-pid", true, "Include the pid label on emitted series")
	fs.Bool("include-name", true, "Include the process name label on emitted series")
	fs.Int("max-series", defaultMaxSeries, "Lifetime distinct-series ceiling (0 = unbounded)")
	fs.String("collision-strategy", "keep-first", "Ceiling strategy: keep-first or aggregate-by-name")
	fs.Bool("history", false, "Persist emitted series to the history database")
	fs.String("database", defaultDBPath, "History database path")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("tick_timeout", defaultTickTimeout)
	v.SetDefault("grace_ticks", defaultGraceTicks)
	v.SetDefault("total_power_draw", defaultPowerDraw)
	v.SetDefault("core_count", 0)
	v.SetDefault("attribution", "cpu-time")
	v.SetDefault("include_pid", true)
	v.SetDefault("include_name", true)
	v.SetDefault("max_series", defaultMaxSeries)
	v.SetDefault("collision_strategy", "keep-first")
	v.SetDefault("history", false)
	v.SetDefault("database", defaultDBPath)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)

	v.SetEnvPrefix("PROCWATT")
	v.AutomaticEnv()

	if path := os.Getenv("PROCWATT_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("procwatt")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
		}
	}

	// Flags set on the command line override file and environment values.
	// Flag names use dashes, config keys use underscores.
	var flagErr error
	fs.Visit(func(f *pflag.Flag) {
		key := flagKey(f.Name)
		switch f.Value.Type() {
		case "duration":
			d, err := fs.GetDuration(f.Name)
			if err != nil {
				flagErr = err
				return
			}
			v.Set(key, d)
		default:
			v.Set(key, f.Value.String())
		}
	})
	if flagErr != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, flagErr)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if config.CoreCount < 1 {
		config.CoreCount = runtime.NumCPU()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func flagKey(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '-' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.TickTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.TickTimeout)
	}
	if c.GraceTicks < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.GraceTicks)
	}
	if c.TotalPowerDraw <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.TotalPowerDraw)
	}
	if c.MaxSeries < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.MaxSeries)
	}
	if c.History && c.Database == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "database")
	}
	if !LogLevelValue(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}
