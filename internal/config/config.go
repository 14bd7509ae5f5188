// Package config loads sqlstress settings from a config file, the
// environment and command-line flags through viper.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sqlstress/internal/pool"
	"sqlstress/internal/runner"
)

// EnvPrefix is prepended to every environment variable, e.g. SQLSTRESS_DB_DSN.
const EnvPrefix = "SQLSTRESS"

// Keys
const (
	KeyDriver          = "db.driver"
	KeyDSN             = "db.dsn"
	KeyPoolName        = "db.pool_name"
	KeyMinIdle         = "db.min_idle"
	KeyMaxPool         = "db.max_pool"
	KeyConnMaxLifetime = "db.conn_max_lifetime"
	KeyConnMaxIdleTime = "db.conn_max_idle_time"
	KeyListenAddr      = "server.addr"
	KeyLogLevel        = "log.level"
	KeyLogFile         = "log.file"

	KeyRunSQL         = "run.sql"
	KeyRunIterations  = "run.iterations"
	KeyRunConcurrency = "run.concurrency"
	KeyRunDelayMs     = "run.delay_ms"
	KeyRunTimeoutSec  = "run.timeout_sec"
	KeyRunMode        = "run.mode"
	KeyRunMaxRows     = "run.max_rows"
	KeyRunRate        = "run.rate"
	KeyRunTemplate    = "run.template"
	KeyRunOut         = "run.out"
)

// Settings is the resolved configuration.
type Settings struct {
	Driver          string
	DSN             string
	PoolName        string
	MinIdle         int
	MaxPool         int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	ListenAddr string
	LogLevel   string
	LogFile    string

	Run       runner.Config
	OutPrefix string

	// Non-fatal problems found while loading, e.g. an unknown result mode.
	Warnings []string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	def := runner.DefaultConfig()

	v.SetDefault(KeyDriver, pool.DriverSQLite)
	v.SetDefault(KeyDSN, "sqlstress.db")
	v.SetDefault(KeyPoolName, "sqlstress-pool")
	v.SetDefault(KeyMinIdle, 2)
	v.SetDefault(KeyMaxPool, 10)
	v.SetDefault(KeyConnMaxLifetime, 30*time.Minute)
	v.SetDefault(KeyConnMaxIdleTime, 10*time.Minute)
	v.SetDefault(KeyListenAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")

	v.SetDefault(KeyRunSQL, def.SQL)
	v.SetDefault(KeyRunIterations, def.Iterations)
	v.SetDefault(KeyRunConcurrency, def.Concurrency)
	v.SetDefault(KeyRunDelayMs, def.DelayMs)
	v.SetDefault(KeyRunTimeoutSec, def.TimeoutSec)
	v.SetDefault(KeyRunMode, def.ResultMode.String())
	v.SetDefault(KeyRunMaxRows, def.MaxRows)
	v.SetDefault(KeyRunRate, 0.0)
	v.SetDefault(KeyRunTemplate, false)
	v.SetDefault(KeyRunOut, "")
}

// Init wires env lookups and the config file into v. An explicit cfgFile
// must exist; the default $HOME/.sqlstress.yaml is optional.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyDSN, EnvPrefix+"_DB_DSN", "DB_URL"); err != nil {
		return fmt.Errorf("bind %s: %w", KeyDSN, err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName(".sqlstress")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config %s: %w", filepath.Join(home, ".sqlstress.yaml"), err)
		}
	}
	return nil
}

// Load resolves Settings from v.
func Load(v *viper.Viper) *Settings {
	s := &Settings{
		Driver:          v.GetString(KeyDriver),
		DSN:             v.GetString(KeyDSN),
		PoolName:        v.GetString(KeyPoolName),
		MinIdle:         v.GetInt(KeyMinIdle),
		MaxPool:         v.GetInt(KeyMaxPool),
		ConnMaxLifetime: v.GetDuration(KeyConnMaxLifetime),
		ConnMaxIdleTime: v.GetDuration(KeyConnMaxIdleTime),
		ListenAddr:      v.GetString(KeyListenAddr),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFile:         v.GetString(KeyLogFile),
		OutPrefix:       v.GetString(KeyRunOut),
	}

	mode, err := runner.ParseResultMode(v.GetString(KeyRunMode))
	if err != nil {
		s.Warnings = append(s.Warnings, err.Error()+", using none")
	}

	s.Run = runner.Config{
		SQL:         v.GetString(KeyRunSQL),
		Iterations:  v.GetInt(KeyRunIterations),
		Concurrency: v.GetInt(KeyRunConcurrency),
		DelayMs:     v.GetInt(KeyRunDelayMs),
		TimeoutSec:  v.GetInt(KeyRunTimeoutSec),
		ResultMode:  mode,
		MaxRows:     v.GetInt(KeyRunMaxRows),
		TargetRate:  v.GetFloat64(KeyRunRate),
		Templated:   v.GetBool(KeyRunTemplate),
	}

	if s.MinIdle > s.MaxPool {
		s.Warnings = append(s.Warnings, fmt.Sprintf("db.min_idle (%d) exceeds db.max_pool (%d), clamping", s.MinIdle, s.MaxPool))
	}
	return s
}

// Pool projects the database settings.
func (s *Settings) Pool() pool.Settings {
	return pool.Settings{
		Name:            s.PoolName,
		Driver:          s.Driver,
		DSN:             s.DSN,
		MinIdle:         s.MinIdle,
		MaxPool:         s.MaxPool,
		ConnMaxLifetime: s.ConnMaxLifetime,
		ConnMaxIdleTime: s.ConnMaxIdleTime,
	}
}

// RunDefaults returns the clamped default run configuration.
func (s *Settings) RunDefaults() runner.Config {
	return s.Run.Normalize()
}

func (s *Settings) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a text logger at the configured level.
func (s *Settings) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: s.SlogLevel()}))
}
