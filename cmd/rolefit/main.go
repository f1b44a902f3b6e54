// Package main provides the rolefit binary entry point.
// RoleFit serves an adaptive candidate questionnaire: an LLM writes each
// next question from the answers so far and completes free-text answers
// while the candidate types.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "rolefit"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	envFile    string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Adaptive candidate assessment server",
		Long: `RoleFit serves an adaptive candidate questionnaire over HTTP.

The candidate picks assessment categories, then answers ten questions that
an LLM writes one at a time from the answers so far. Free-text "Other"
answers get completion suggestions while the candidate types.

Configuration is layered: defaults, ~/.config/rolefit/config.yaml,
rolefit.yaml in the working directory or a parent, then --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(flags.envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), &flags)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Environment file to load (default: .env when present)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), &flags)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "categories",
		Short: "List the assessment categories and competencies",
		Run: func(cmd *cobra.Command, args []string) {
			printCategories(cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "models",
		Short: "Print the resolved model endpoints and fallback chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil))).Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out, err := yaml.Marshal(cfg.Model.Registry().ToConfig())
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default user config if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.NewLoader(nil).EnsureUserConfig()
			if err != nil {
				return err
			}
			cmd.Println(path)
			return nil
		},
	})

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// loadEnvFile loads path into the environment. With no path, .env is
// loaded when it exists. Variables already set are kept.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func serve(ctx context.Context, flags *globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	printBanner()

	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, nil))
	loader := config.NewLoader(bootstrap)
	cfg, err := loader.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	logger, logCloser, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if flags.configPath != "" {
		if err := app.WatchConfig(signalCtx, flags.configPath, loader.Load); err != nil {
			logger.Warn("Config reload disabled", "error", err)
		}
	}

	logger.Info("RoleFit ready",
		"version", Version,
		"addr", cfg.Server.Addr,
		"provider", cfg.Model.Provider,
		"model", cfg.Model.Name)

	return app.ListenAndServe(signalCtx)
}

func printBanner() {
	figure.NewFigure("ROLEFIT", "", true).Print()
	fmt.Println("======================================================")
	fmt.Printf("RoleFit assessment server (v%s)\n\n", Version)
}

func printCategories(cmd *cobra.Command) {
	cmd.Println("Categories:")
	for _, c := range assessment.Categories() {
		cmd.Printf("  - %s\n", c)
	}
	cmd.Println("\nCompetencies:")
	for _, c := range assessment.Competencies() {
		cmd.Printf("  - %s\n", c)
	}
}
