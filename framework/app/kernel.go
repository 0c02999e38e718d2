package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/km-arc/go-beans/framework/actuator"
	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/kernel"
	"github.com/km-arc/go-beans/framework/logging"
	"github.com/km-arc/go-beans/framework/metrics"
	"github.com/km-arc/go-beans/framework/provider"
	"github.com/km-arc/go-beans/framework/providers"
)

// Options configures New. The zero value reads ./app.{toml,yaml,yml},
// ./.env and APP_* variables, and logs to stdout.
type Options struct {
	Name       string
	Config     *config.Params
	Guard      *kernel.Guard
	LogProfile logging.Profile
	LogOutput  io.Writer
	// MetricsNamespace prefixes every exported metric, default "beans".
	MetricsNamespace string
	FinalizeOrder    kernel.FinalizeOrder
}

// Application owns one kernel and everything wired around it.
//
//	application, err := app.New(app.Options{Name: "beans"})
//	application.Register(&GreeterProvider{})
//	root, err := application.Boot(kernel.Bindings{"Speaker": kernel.KeyOf[Greeter]()})
//	defer application.Shutdown()
type Application struct {
	Name      string
	Config    *config.Source
	Log       zerolog.Logger
	Metrics   *metrics.Collector
	Kernel    *kernel.Kernel
	Providers *provider.Registry

	configProvider *providers.ConfigServiceProvider
	loggerProvider *providers.LoggerServiceProvider

	mu       sync.Mutex
	root     *kernel.Context
	exposed  []*kernel.Context
	shutdown bool
}

// New loads configuration, builds the logger, metrics collector and kernel,
// and registers the framework providers.
func New(opts Options) (*Application, error) {
	name := opts.Name
	if name == "" {
		name = "beans"
	}
	params := config.DefaultParams()
	if opts.Config != nil {
		params = *opts.Config
	}

	src, err := config.Load(params)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Resolve(opts.LogProfile)
	logCfg.Out = opts.LogOutput
	logger := logging.New(name, logCfg)

	collector := metrics.NewCollector(opts.MetricsNamespace)

	kopts := []kernel.Option{
		kernel.WithLogger(logger),
		kernel.WithObserver(collector),
		kernel.WithFinalizeOrder(opts.FinalizeOrder),
	}
	if opts.Guard != nil {
		kopts = append(kopts, kernel.WithGuard(opts.Guard))
	}
	k := kernel.New(kopts...)

	a := &Application{
		Name:           name,
		Config:         src,
		Log:            logger,
		Metrics:        collector,
		Kernel:         k,
		Providers:      provider.NewRegistry(k.Ledger()),
		configProvider: &providers.ConfigServiceProvider{Source: src},
		loggerProvider: &providers.LoggerServiceProvider{Base: logger},
	}

	// framework providers first, in this order
	a.Providers.Register(a.configProvider)
	a.Providers.Register(a.loggerProvider)

	if file := src.File(); file != "" {
		logger.Debug().Str("file", file).Msg("configuration loaded")
	}
	return a, nil
}

// Register adds a ServiceProvider. It must be called before Boot.
func (a *Application) Register(p provider.ServiceProvider) {
	a.Providers.Register(p)
}

// Ledger returns the kernel ledger for beans defined outside a provider.
func (a *Application) Ledger() *kernel.Ledger { return a.Kernel.Ledger() }

// Boot activates the kernel with the given root bindings. When a provider's
// Boot fails the kernel is already active; Root stays nil but Shutdown still
// finalizes the beans.
func (a *Application) Boot(bindings kernel.Bindings) (*kernel.Context, error) {
	root, err := a.Kernel.Boot(a.Config, bindings)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.root = root
	a.mu.Unlock()
	return root, nil
}

// Expose lists extra contexts on the diagnostics surface.
func (a *Application) Expose(contexts ...*kernel.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exposed = append(a.exposed, contexts...)
}

// Logger returns the configured logger bean. It panics before Boot.
func (a *Application) Logger() *zerolog.Logger {
	return a.loggerProvider.Bean().Get(a.Root())
}

// Root returns the root context, nil before Boot.
func (a *Application) Root() *kernel.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.root
}

// Handler returns the diagnostics handler.
func (a *Application) Handler() http.Handler {
	a.mu.Lock()
	exposed := append([]*kernel.Context(nil), a.exposed...)
	a.mu.Unlock()
	return actuator.Handler(a.Kernel, a.Metrics.Registry(), a.Log, exposed...)
}

// Run serves the diagnostics handler on addr until ctx is cancelled, then
// shuts the server down. It does not finalize the kernel.
func (a *Application) Run(ctx context.Context, addr string) error {
	if a.Root() == nil {
		if _, err := a.Boot(nil); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info().Str("addr", addr).Msg("actuator listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.Log.Info().Msg("actuator stopped")
	return nil
}

// Shutdown finalizes the kernel if it is active. Calling it again is a no-op.
func (a *Application) Shutdown() error {
	a.mu.Lock()
	if a.shutdown || a.Kernel.Phase() != kernel.PhaseActive {
		a.mu.Unlock()
		return nil
	}
	a.shutdown = true
	a.mu.Unlock()
	return a.Kernel.Shutdown()
}

// Environment returns the app.env config value, default "local".
func (a *Application) Environment() string { return a.Config.String("app.env", "local") }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsDebug() bool       { return a.Config.Bool("app.debug", false) }
