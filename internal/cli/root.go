// Package cli provides the command-line interface for spacefiler.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/spacefiler/spacefiler/internal/config"
	"github.com/spacefiler/spacefiler/internal/events"
	inthttp "github.com/spacefiler/spacefiler/internal/http"
	"github.com/spacefiler/spacefiler/internal/listing"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/progress"
	"github.com/spacefiler/spacefiler/internal/services"
	"github.com/spacefiler/spacefiler/internal/version"
)

var (
	// Global flags
	cfgFile   string
	serverURL string
	verbose   bool
	debug     bool

	// Global logger
	logger    *logging.Logger
	logCloser io.Closer

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spacefiler",
		Short: "spacefiler - command-line client for a space-based file server",
		Long: `spacefiler ` + version.Version + ` - Built: ` + version.BuildTime + `
Browse spaces and folders on a filer and upload files into them.

The current location is remembered between invocations:

  spacefiler login alice
  spacefiler cd docs
  spacefiler upload report.txt photo.png`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
				logCloser = nil
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Filer base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate a shell completion script",
		Long: `Generate shell completion scripts for spacefiler.

QUICK TEST (temporary, current session only):
  source <(spacefiler completion bash)`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletion(out)
			}
			return fmt.Errorf("unsupported shell %q", args[0])
		},
	}
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\n\nReceived signal %v, cancelling operations...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newSpacesCmd())
	rootCmd.AddCommand(newCdCmd())
	rootCmd.AddCommand(newPwdCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newAppsCmd())
	rootCmd.AddCommand(newUsersCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context, cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

func initLogger() {
	level := zerolog.InfoLevel
	cfg, err := loadConfig()
	if err == nil {
		level = logging.ParseLevel(cfg.LogLevel)
	}
	if verbose || debug {
		level = zerolog.DebugLevel
	}
	logging.SetGlobalLevel(level)

	logger = logging.NewDefaultCLILogger()
	if err == nil && cfg.LogFile != "" {
		fileLogger, closer, ferr := logging.NewFileLogger(os.Stderr, cfg.ResolvedLogFile())
		if ferr != nil {
			logger.Warn().Err(ferr).Msg("Logging to stderr only")
			return
		}
		logger, logCloser = fileLogger, closer
	}
}

// loadConfig reads the config file and applies environment and flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.MergeWithEnv()
	cfg.MergeWithFlags(serverURL, "")
	return cfg, nil
}

// app is one command's view of the filer: the service plus the renderers
// following its event bus.
type app struct {
	cfg *config.Config
	svc *services.FilerService

	renderers sync.WaitGroup
}

// openApp builds the service and starts printing notifications. With
// requireLogin the last session is restored and a missing login is an error.
func openApp(ctx context.Context, requireLogin bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if inthttp.NeedsProxyPassword(cfg) {
		password, err := promptSecret(fmt.Sprintf("Proxy password for %s: ", cfg.ProxyUser))
		if err != nil {
			return nil, err
		}
		cfg.ProxyPassword = password
	}

	bus := events.NewEventBus(0)
	svc, err := services.NewFilerService(cfg, bus, GetLogger())
	if err != nil {
		bus.Close()
		return nil, err
	}

	a := &app{cfg: cfg, svc: svc}
	a.follow(func(ch <-chan events.Event) {
		progress.NewNotices(os.Stderr).Run(ctx, ch)
	}, bus.Subscribe(events.EventNotification))
	if term.IsTerminal(int(os.Stderr.Fd())) {
		a.follow(func(ch <-chan events.Event) {
			progress.NewSpinner(os.Stderr).Run(ctx, ch)
		}, bus.Subscribe(listing.EventListingLoading))
	}

	if !requireLogin {
		return a, nil
	}
	if err := svc.Start(ctx); err != nil {
		a.Close()
		if errors.Is(err, services.ErrNotLoggedIn) {
			return nil, fmt.Errorf("not logged in, run 'spacefiler login' first")
		}
		return nil, err
	}
	return a, nil
}

func (a *app) follow(run func(<-chan events.Event), ch <-chan events.Event) {
	a.renderers.Add(1)
	go func() {
		defer a.renderers.Done()
		run(ch)
	}()
}

// Close drains the renderers and closes the state file.
func (a *app) Close() {
	a.svc.EventBus().Close()
	a.renderers.Wait()
	if err := a.svc.Close(); err != nil {
		GetLogger().Warn().Err(err).Msg("Failed to close state file")
	}
}
