package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"auction-trader/internal/config"
	"auction-trader/internal/logging"
	"auction-trader/internal/models"
	"auction-trader/internal/notify"
	"auction-trader/internal/order"
	"auction-trader/internal/payoff"
	"auction-trader/internal/pricing"
	"auction-trader/internal/sdk"
	"auction-trader/internal/store"
	"auction-trader/internal/strategy"
	"auction-trader/internal/stream"
	"auction-trader/internal/trading"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-01-01"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Client    sdk.Client
	Resolver  *pricing.Resolver
	Assembler *strategy.Assembler
	Builder   *order.Builder
	Store     store.OrderStore
	Notifier  *notify.MultiNotifier

	// paper is set in paper mode; it doubles as the pricing backend.
	paper *sdk.PaperClient
}

// NewApp wires the collaborators for the configured trading mode.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Builder: order.NewBuilder(cfg.Trading.StrikePrecision),
	}

	var backend pricing.Backend
	if cfg.IsPaperMode() {
		app.paper = sdk.NewPaperClient(sdk.PaperClientConfig{
			CurrencyPair: cfg.Trading.CurrencyPair,
			Paper:        cfg.Paper,
		})
		app.Client = app.paper
		backend = app.paper
		logger.Debug().Time("expiry", app.paper.Expiry()).Msg("Paper client initialized")
	} else {
		app.Client = sdk.NewHTTPClient(cfg.SDK, cfg.Credentials.APIKey, logger)
		backend = pricing.NewHTTPBackend(cfg.Pricing, logger)
		logger.Debug().Str("api", cfg.SDK.APIURL).Str("pricing", cfg.Pricing.URL).Msg("Live clients initialized")
	}

	app.Resolver = pricing.NewResolver(backend, logger,
		pricing.WithSpreadModel(pricing.SpreadModelFromConfig(cfg.Pricing.Spreads)))
	app.Assembler = strategy.NewAssembler(app.Resolver, logger, 0)

	if cfg.Store.Path != "" {
		orderStore, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to open order journal, orders will not be recorded")
		} else {
			app.Store = orderStore
			logger.Debug().Str("path", cfg.Store.Path).Msg("Order journal opened")
		}
	}

	app.Notifier = notify.NewMultiNotifier(cfg.Notifications)
	if cfg.Notifications.Enabled {
		app.Notifier.AddChannel(notify.NewTerminalChannel())
	}

	return app
}

// IsPaper reports whether the app trades against the synthetic market.
func (a *App) IsPaper() bool {
	return a.paper != nil
}

// NewDesk creates a desk over the app's collaborators.
func (a *App) NewDesk(topic string, hub *stream.Hub, refresh time.Duration) *trading.Desk {
	return trading.NewDesk(trading.DeskConfig{
		Topic:           topic,
		RefreshInterval: refresh,
		Payoff: payoff.Options{
			Points:  a.Config.Payoff.Points,
			Padding: decimal.NewFromFloat(a.Config.Payoff.Padding),
		},
	}, trading.DeskDeps{
		Assembler: a.Assembler,
		Builder:   a.Builder,
		Client:    a.Client,
		Store:     a.Store,
		Notifier:  a.Notifier,
		Hub:       hub,
		Logger:    a.Logger,
	})
}

// LoadBook fetches the contract book and spot for the configured pair.
func (a *App) LoadBook(ctx context.Context, expiry string) (*models.ContractBook, decimal.Decimal, error) {
	var at time.Time
	if expiry != "" {
		t, err := time.Parse(models.DateLayout, expiry)
		if err != nil {
			return nil, decimal.Zero, err
		}
		at = t
	}
	pair := a.Config.Trading.CurrencyPair
	book, err := sdk.LoadBook(ctx, a.Client, pair, at)
	if err != nil {
		return nil, decimal.Zero, err
	}
	spot, err := a.Client.SpotPrice(ctx, pair)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return book, spot, nil
}

// Close releases the order journal.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := NewApp(cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Auction Trader - multi-leg options strategy pricing",
		Long: `Auction Trader prices multi-leg option strategies for an options auction.

It resolves leg prices from the pricing backend, builds the order draft with
its net price, estimates collateral and fees, charts the payoff at expiry and
submits the order.

Set trading.mode = "paper" to run against a synthetic market.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			cmd.SetContext(logging.WithLogger(cmd.Context(), app.Logger))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/auction-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addStrategyCommands(rootCmd, app)
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newOrdersCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Auction Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				output.JSON(map[string]string{"path": dir})
			} else {
				output.Println(dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Trading")
	output.Printf("  Mode:             %s\n", cfg.Trading.Mode)
	output.Printf("  Currency Pair:    %s\n", cfg.Trading.CurrencyPair)
	output.Printf("  Precision:        %d\n", cfg.Trading.StrikePrecision)
	output.Printf("  Max Legs:         %d\n", cfg.Trading.MaxLegs)
	output.Println()

	output.Bold("Pricing")
	output.Printf("  URL:              %s\n", cfg.Pricing.URL)
	output.Printf("  Rate Limit:       %.1f/s (burst %d)\n", cfg.Pricing.RateLimit, cfg.Pricing.Burst)
	output.Printf("  Refresh:          %s\n", cfg.Pricing.RefreshInterval)
	output.Printf("  Spreads:          vanilla %g, binary %g, forward %g, floor %g\n",
		cfg.Pricing.Spreads.Vanilla, cfg.Pricing.Spreads.Binary, cfg.Pricing.Spreads.Forward, cfg.Pricing.Spreads.MinimumPrice)
	output.Println()

	output.Bold("Trading API")
	output.Printf("  API URL:          %s\n", cfg.SDK.APIURL)
	output.Printf("  Stream URL:       %s\n", cfg.SDK.WSURL)
	output.Printf("  API Key:          %v\n", cfg.Credentials.APIKey != "")
	output.Println()

	output.Bold("Journal")
	output.Printf("  Path:             %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Level:            %s\n", cfg.Notifications.Level)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
}
