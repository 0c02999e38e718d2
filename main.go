package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/km-arc/go-beans/framework/app"
	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/kernel"
	"github.com/km-arc/go-beans/framework/logging"
)

// ── Demo beans ───────────────────────────────────────────────────────────────

type Counter struct {
	Value int
}

type Greeter struct {
	Prefix  string
	Counter *Counter
}

func (g *Greeter) Greet(name string) string {
	return fmt.Sprintf("%s, %s (#%d)", g.Prefix, name, g.Counter.Value)
}

// GreeterProvider defines Counter and Greeter. Greeter reads Counter while
// it is being built, so Counter is registered first.
type GreeterProvider struct {
	counter *kernel.Bean[Counter]
	greeter *kernel.Bean[Greeter]
}

func (p *GreeterProvider) Register(l *kernel.Ledger) {
	p.counter = kernel.Define(l, func(*kernel.InitContext) (Counter, error) {
		return Counter{Value: 0}, nil
	})
	p.greeter = kernel.Define(l, func(ctx *kernel.InitContext) (Greeter, error) {
		prefix, err := kernel.GetValueOr(ctx, "greeter.prefix", "hello")
		if err != nil {
			return Greeter{}, err
		}
		return Greeter{Prefix: prefix, Counter: kernel.Depend(ctx, p.counter)}, nil
	})
}

func (p *GreeterProvider) Boot(ctx *kernel.Context) error {
	log.Debug().Int("counter", p.counter.Get(ctx).Value).Msg("greeter provider booted")
	return nil
}

// ── Commands ─────────────────────────────────────────────────────────────────

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "beans",
		Short:        "Phase-checked singleton bean kernel demo",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd())
	return root
}

func runCmd() *cobra.Command {
	var (
		configDir string
		serve     string
		name      string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the kernel, resolve Speaker through a composed context, and shut down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.ConfigureRuntime()

			params := config.DefaultParams()
			params.Dir = configDir
			application, err := app.New(app.Options{Name: "beans", Config: &params})
			if err != nil {
				return err
			}

			application.Register(&GreeterProvider{})
			root, err := application.Boot(nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := application.Shutdown(); err != nil {
					application.Log.Error().Err(err).Msg("shutdown")
				}
			}()

			module, err := root.Compose("module").
				Bind("Speaker", kernel.KeyOf[Greeter]()).
				Build()
			if err != nil {
				return err
			}
			application.Expose(module)

			speaker, err := kernel.GetByAlias[Greeter](module, "Speaker")
			if err != nil {
				return err
			}
			if err := kernel.GetMutByKey(module, kernel.KeyOf[Counter](), func(c *Counter) { c.Value++ }); err != nil {
				return err
			}
			greeting := speaker.Greet(name)
			application.Logger().Info().Str("greeting", greeting).Msg("Speaker resolved")
			fmt.Fprintln(cmd.OutOrStdout(), greeting)

			if serve == "" {
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Run(ctx, serve)
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", ".", "directory holding app.toml or app.yaml")
	cmd.Flags().StringVar(&serve, "serve", "", "serve the actuator on this address until interrupted, e.g. :8000")
	cmd.Flags().StringVar(&name, "name", "world", "who to greet")
	return cmd
}
