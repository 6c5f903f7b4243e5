// Package main provides the modwatch bot CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/modwatch/internal/api"
	"github.com/good-yellow-bee/modwatch/internal/catalog"
	"github.com/good-yellow-bee/modwatch/internal/commands"
	"github.com/good-yellow-bee/modwatch/internal/discord"
	"github.com/good-yellow-bee/modwatch/internal/notifier"
	"github.com/good-yellow-bee/modwatch/internal/storage"
	"github.com/good-yellow-bee/modwatch/internal/tracker"
	"github.com/good-yellow-bee/modwatch/pkg/config"
)

// exitConfig is the process exit status for configuration errors (EX_CONFIG).
const exitConfig = 78

var (
	configFile     string
	opsAddr        string
	interval       time.Duration
	catalogTimeout time.Duration
	sendDelay      time.Duration
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "modwatch",
	Short: "modwatch - Modrinth project update tracker for Discord",
	Long: `modwatch tracks Modrinth projects in Discord channels, polls the
Modrinth API for new versions, and posts update messages to the
channels that subscribed via /track.`,
	RunE: runBot,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("modwatch %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&opsAddr, "ops-address", "", "ops HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&interval, "interval", tracker.DefaultInterval, "time between update passes")
	rootCmd.PersistentFlags().DurationVar(&catalogTimeout, "catalog-timeout", catalog.DefaultTimeout, "per-request catalog API timeout")
	rootCmd.PersistentFlags().DurationVar(&sendDelay, "send-delay", notifier.DefaultSendDelay, "delay between outbound channel messages")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ce *configError
		if errors.As(err, &ce) {
			os.Exit(exitConfig)
		}
		os.Exit(1)
	}
}

// configError marks startup failures caused by configuration so main can
// exit with a distinct status code.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func loadConfigOrExample() (*Config, error) {
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		// First run: leave a starter config behind, matching what the
		// bot expects to read next time.
		if os.Getenv("MODWATCH_BOT_TOKEN") != "" {
			return DefaultConfig(), nil
		}
		if writeErr := WriteExampleConfig(configFile); writeErr == nil {
			log.Printf("wrote example config to %s, fill in the bot token", configFile)
		}
		return nil, &configError{fmt.Errorf("config file %s not found", configFile)}
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, &configError{err}
	}
	return cfg, nil
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOrExample()
	if err != nil {
		log.Printf("invalid config: %v", err)
		return err
	}
	if cfg.BotToken == "" {
		err := &configError{fmt.Errorf("bot token is required")}
		log.Printf("invalid config: %v", err)
		return err
	}
	if opsAddr != "" {
		cfg.Ops.Address = opsAddr
	}
	cfg.Verbose = verbose

	// Auto-create the data directory.
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Printf("database initialized at %s", cfg.Database.Path)

	source := catalog.NewClient(cfg.Catalog.BaseURL, catalogTimeout)
	handler := commands.NewHandler(store, source)

	bot, err := discord.New(cfg.BotToken, handler)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	bot.SetVerbose(cfg.Verbose)

	notify := notifier.New(bot, sendDelay)
	notify.SetVerbose(cfg.Verbose)

	reconciler := tracker.New(store, source, notify, tracker.Config{
		Interval: interval,
		Verbose:  cfg.Verbose,
	})

	opsServer := api.NewServer(cfg.Ops.Address, store, store.DB())

	// Signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting modwatch %s", config.Version)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(ctx)
	})
	g.Go(func() error {
		return reconciler.Run(ctx)
	})
	g.Go(func() error {
		return opsServer.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return opsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run bot: %w", err)
	}

	log.Printf("modwatch stopped")
	return nil
}
