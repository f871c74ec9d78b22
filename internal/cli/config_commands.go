package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacefiler/spacefiler/internal/api"
	"github.com/spacefiler/spacefiler/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage spacefiler configuration",
		Long: `Configuration management commands for spacefiler.

Commands:
  show  - Display current configuration
  set   - Change one setting
  test  - Test the connection to the filer
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration.

Priority: flags > environment > config file > defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			printConfig(cmd.OutOrStdout(), cfg, configPath())
			return nil
		},
	}
	return cmd
}

func printConfig(out io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Filer:")
	fmt.Fprintf(out, "  Base URL: %s\n", cfg.BaseURL)
	if cfg.Username != "" {
		fmt.Fprintf(out, "  Username: %s\n", cfg.Username)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy Settings:")
	fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(out, "  Proxy User: %s\n", cfg.ProxyUser)
	}
	if cfg.NoProxy != "" {
		fmt.Fprintf(out, "  No Proxy:   %s\n", cfg.NoProxy)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Client:")
	fmt.Fprintf(out, "  Request Timeout: %s\n", cfg.RequestTimeout)
	fmt.Fprintf(out, "  Max Retries:     %d\n", cfg.MaxRetries)
	if cfg.RateLimit > 0 {
		fmt.Fprintf(out, "  Rate Limit:      %g req/s (burst %d)\n", cfg.RateLimit, cfg.RateBurst)
	}
	fmt.Fprintf(out, "  State File:      %s\n", cfg.ResolvedStatePath())
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Logging:")
	fmt.Fprintf(out, "  Level: %s\n", cfg.LogLevel)
	if cfg.LogFile != "" {
		fmt.Fprintf(out, "  File:  %s\n", cfg.LogFile)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Metrics: %s\n", cfg.MetricsAddr)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <section.key> <value>",
		Short: "Change one setting and save the config file",
		Long: `Change one setting and save the config file.

Keys:
  filer.base_url, filer.username
  proxy.mode, proxy.host, proxy.port, proxy.user, proxy.no_proxy, proxy.warmup
  client.request_timeout, client.max_retries, client.rate_limit,
  client.rate_burst, client.state_path
  log.level, log.file
  metrics.addr`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", args[0], args[1])
			return nil
		},
	}
	return cmd
}

// setConfigValue applies one change and rejects it if the result is invalid.
func setConfigValue(cfg *config.Config, key, value string) error {
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration after setting %s: %w", key, err)
	}
	return nil
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the connection to the filer",
		Long: `Test the connection with the current configuration by fetching the
collaborator-app registry, which needs no login.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			fmt.Fprintf(out, "Filer URL: %s\n", cfg.BaseURL)
			fmt.Fprintln(out, "Testing connection...")

			client, err := api.NewClient(cfg, nil, logger)
			if err != nil {
				return fmt.Errorf("failed to create API client: %w", err)
			}

			ctx, cancel := context.WithTimeout(GetContext(), 10*time.Second)
			defer cancel()

			apps, err := client.Discovery(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}

			fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
			fmt.Fprintf(out, "  %d collaborator app(s) available\n", len(apps))
			return nil
		},
	}
	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create one with: spacefiler config set filer.base_url <url>")
			}
			return nil
		},
	}
	return cmd
}
