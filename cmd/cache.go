package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/internal/observability"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the on-disk session cache.",
	}
	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show age buckets for the cached sessions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			logger := observability.GetLogger()

			cache := newSessionCache(cfg, logger)
			cache.LoadFromDisk()
			stats := cache.Stats()

			fmt.Fprintf(cmd.OutOrStdout(),
				"sessions: %d total, %d valid, %d expiring soon, %d expired\n",
				stats.Total, stats.Valid, stats.ExpiringSoon, stats.Expired)
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the on-disk session cache file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			logger := observability.GetLogger()

			if cfg.AuthCache.Dir == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "session cache persistence is disabled")
				return nil
			}

			path := filepath.Join(cfg.AuthCache.Dir, "sessions.json")
			if err := os.Remove(path); err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "session cache already empty")
					return nil
				}
				return fmt.Errorf("failed to remove session cache: %w", err)
			}

			logger.Info("Session cache cleared", zap.String("path", path))
			fmt.Fprintln(cmd.OutOrStdout(), "session cache cleared")
			return nil
		},
	}
}
