package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/internal/config"
	"github.com/xkilldash9x/caretqa/internal/observability"
)

// Version is stamped by the release build.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "caretqa",
	Short:   "caretqa drives CARET Legal workflows through the UI login and API surface.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeViper(); err != nil {
			basicLogger, _ := zap.NewDevelopment()
			basicLogger.Error("Failed to initialize configuration", zap.Error(err))
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "caretqa"})
			return err
		}

		observability.InitializeLogger(cfg.Logger)
		logger := observability.GetLogger()
		logger.Info("Starting caretqa", zap.String("version", Version), zap.String("target", cfg.App.BaseURL))

		cmd.SetContext(withConfig(cmd.Context(), cfg))
		return nil
	},
}

// Execute wires up the subcommands and runs the root command with the
// shutdown context from main.
func Execute(ctx context.Context) error {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newCacheCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			if ctx.Err() == nil {
				logger.Error("Command execution failed", zap.Error(err))
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
}

// initializeViper reads the config file and environment variables.
func initializeViper() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CARETQA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Secrets come in through the environment, never the config file.
	_ = viper.BindEnv("app.default_identity", "CARETQA_APP_DEFAULT_IDENTITY", "CARETQA_LOGIN")
	_ = viper.BindEnv("app.default_secret", "CARETQA_APP_DEFAULT_SECRET", "CARETQA_PASSWORD")
	_ = viper.BindEnv("mailbox.api_key", "CARETQA_MAILBOX_API_KEY", "NYLAS_API_KEY")
	_ = viper.BindEnv("database.url", "CARETQA_DATABASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults plus environment carry the run.
	}
	return nil
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFromContext(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}
