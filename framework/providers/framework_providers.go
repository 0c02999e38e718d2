package providers

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/kernel"
	"github.com/km-arc/go-beans/framework/logging"
	"github.com/km-arc/go-beans/framework/provider"
)

const (
	ConfigKey kernel.Key = "config"
	LoggerKey kernel.Key = "logger"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider exposes the application configuration as a bean.
//
// Beans:
//   - "config" → *config.Source
//
// When Source is nil the source is loaded from Params during initialization.
type ConfigServiceProvider struct {
	provider.BaseProvider
	Source *config.Source
	Params config.Params

	bean *kernel.Bean[*config.Source]
}

func (p *ConfigServiceProvider) Register(l *kernel.Ledger) {
	src, params := p.Source, p.Params
	p.bean = kernel.DefineNamed(l, ConfigKey, func(*kernel.InitContext) (*config.Source, error) {
		if src != nil {
			return src, nil
		}
		return config.Load(params)
	})
}

// Bean returns the config bean handle, nil before Register.
func (p *ConfigServiceProvider) Bean() *kernel.Bean[*config.Source] { return p.bean }

// ── LoggerServiceProvider ─────────────────────────────────────────────────────

// LoggerServiceProvider defines the application logger.
//
// Beans:
//   - "logger" → zerolog.Logger
//
// Configuration keys:
//   - log.level (default: "info")
type LoggerServiceProvider struct {
	Base zerolog.Logger

	bean *kernel.Bean[zerolog.Logger]
}

func (p *LoggerServiceProvider) Register(l *kernel.Ledger) {
	base := p.Base
	p.bean = kernel.DefineNamed(l, LoggerKey, func(ctx *kernel.InitContext) (zerolog.Logger, error) {
		raw, err := kernel.GetValueOr(ctx, "log.level", "info")
		if err != nil {
			return zerolog.Nop(), err
		}
		level, ok := logging.ParseLevel(raw)
		if !ok {
			return zerolog.Nop(), &kernel.ConfigError{Key: "log.level", Err: fmt.Errorf("unknown level %q", raw)}
		}
		return base.Level(level), nil
	})
}

// Boot announces the active kernel on the configured logger.
func (p *LoggerServiceProvider) Boot(ctx *kernel.Context) error {
	logger := p.bean.Get(ctx)
	logger.Info().
		Str("phase", ctx.Phase().String()).
		Int("beans", len(ctx.Registry().Keys())).
		Msg("application booted")
	return nil
}

// Bean returns the logger bean handle, nil before Register.
func (p *LoggerServiceProvider) Bean() *kernel.Bean[zerolog.Logger] { return p.bean }
