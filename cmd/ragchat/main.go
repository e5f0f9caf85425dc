package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Dhanuzh/ragchat/internal/app"
	"github.com/Dhanuzh/ragchat/internal/config"
	"github.com/Dhanuzh/ragchat/internal/logging"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ragchat",
		Short: "ragchat - chat with your knowledge base",
		Long: `ragchat is a terminal front end for a retrieval-augmented question
answering backend. It keeps several independent chats, lets each chat pin
its own model and shows the knowledge-base passages behind every answer.`,
		RunE:          runChat,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Flags
	rootCmd.PersistentFlags().StringP("backend", "b", "", "Backend base URL (default http://localhost:8000)")
	rootCmd.PersistentFlags().StringP("provider", "p", "", "Provider to switch to after startup (openai, anthropic, google, xai, minimax, ...)")
	rootCmd.PersistentFlags().StringP("model", "m", "", "Model to use instead of the last selected one")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	// Sub-commands
	rootCmd.AddCommand(
		askCmd(),
		chatsCmd(),
		contextCmd(),
		providersCmd(),
		modelsCmd(),
		kbCmd(),
		configCmd(),
		versionCmd(),
	)

	return rootCmd
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if b, _ := cmd.Flags().GetString("backend"); b != "" {
		cfg.BackendURL = b
	}
	if p, _ := cmd.Flags().GetString("provider"); p != "" {
		cfg.Provider = p
	}
	if m, _ := cmd.Flags().GetString("model"); m != "" {
		cfg.Model = m
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.ApplyVerbose()
	}
}

// loadConfig reads, overrides and validates the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat)
}

// openApp builds the session. With online set it also synchronizes with
// the backend and applies an explicit --provider flag.
func openApp(ctx context.Context, cmd *cobra.Command, online bool) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a, err := app.New(cfg, newLogger(cfg))
	if err != nil {
		return nil, err
	}

	if !online {
		a.Restore()
		return a, nil
	}

	a.Start(ctx)
	if p, _ := cmd.Flags().GetString("provider"); p != "" && p != a.Resolver().CurrentProvider() {
		a.SwitchProvider(ctx, p)
	}
	return a, nil
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
