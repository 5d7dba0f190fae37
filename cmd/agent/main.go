package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/beacon-library/beacon-agent/internal/agent"
	"github.com/beacon-library/beacon-agent/internal/agent/config"
	"github.com/beacon-library/beacon-agent/internal/utils"
	"github.com/beacon-library/beacon-agent/internal/version"
	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFileName = "config"

var home, _ = os.UserHomeDir()

var rootCmd = &cobra.Command{
	Use:     "beacon-agent",
	Short:   "Beacon Library sync agent",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			Path:         viper.ConfigFileUsed(),
			SyncFolder:   viper.GetString("sync_folder"),
			ServerURL:    viper.GetString("server_url"),
			Email:        viper.GetString("email"),
			RefreshToken: viper.GetString("refresh_token"),
			TokenURL:     viper.GetString("token_url"),
			ClientID:     viper.GetString("client_id"),
			AutoSync:     viper.GetBool("auto_sync"),
			SyncInterval: config.Duration(syncInterval()),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := viper.UnmarshalKey("libraries", &cfg.Libraries); err != nil {
			return fmt.Errorf("config parse libraries: %w", err)
		}

		cmd.SilenceUsage = true
		showHeader()

		a, err := agent.New(cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return a.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("folder", "f", config.DefaultSyncFolder, "Local sync folder")
	rootCmd.Flags().StringP("server", "s", config.DefaultServerURL, "Beacon server URL")
	rootCmd.Flags().StringP("email", "e", "", "Account email")
	rootCmd.Flags().Bool("auto-sync", true, "Run periodic sync passes")
	rootCmd.Flags().Duration("sync-interval", config.DefaultSyncInterval, "Interval between periodic sync passes")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Beacon config file")
}

func main() {
	logFile := config.DefaultLogFilePath

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	// new log file for each run
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor prefixes its own timestamp
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewFanoutHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".beacon"))
		viper.AddConfigPath(filepath.Join(home, ".config/beacon"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("sync_folder", cmd.Flags().Lookup("folder"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("email", cmd.Flags().Lookup("email"))
	viper.BindPFlag("auto_sync", cmd.Flags().Lookup("auto-sync"))
	viper.BindPFlag("sync_interval", cmd.Flags().Lookup("sync-interval"))

	viper.SetEnvPrefix("BEACON")
	viper.AutomaticEnv()

	return nil
}

// syncInterval prefers the config file's millisecond field over the flag.
func syncInterval() time.Duration {
	if ms := viper.GetInt64("sync_interval_ms"); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return viper.GetDuration("sync_interval")
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Printf("%s\n", version.ShortWithApp())
}
