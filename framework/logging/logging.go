package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "BEANS_LOG_LEVEL"
	EnvLogTimestamp = "BEANS_LOG_TIMESTAMP"
	EnvLogNoColor   = "BEANS_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config controls the console logger.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

var (
	configureOnce sync.Once
	configured    Config
)

func ConfigureRuntime() Config {
	return Configure(ProfileRuntime)
}

// Configure installs the global zerolog logger for profile, applying env
// overrides. Only the first call has an effect; later calls return the
// config already in use.
func Configure(profile Profile) Config {
	configureOnce.Do(func() {
		configured = Resolve(profile)
		zerolog.SetGlobalLevel(configured.Level)
		log.Logger = New("", configured)
	})
	return configured
}

// Resolve returns the profile defaults with env overrides applied.
func Resolve(profile Profile) Config {
	cfg := defaultConfig(profile)
	applyEnvOverrides(&cfg)
	return cfg
}

// New returns a console logger tagged with app.
func New(app string, cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	writer := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !cfg.Timestamp {
		writer.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	ctx := zerolog.New(writer).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if app != "" {
		ctx = ctx.Str("app", app)
	}
	return ctx.Logger()
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Timestamp: false, NoColor: true}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// ParseLevel maps a level name to a zerolog level. ok is false for empty or
// unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
