package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/api/schemas"
	"github.com/xkilldash9x/caretqa/internal/auth"
	"github.com/xkilldash9x/caretqa/internal/authcache"
	"github.com/xkilldash9x/caretqa/internal/config"
	"github.com/xkilldash9x/caretqa/internal/harness"
	"github.com/xkilldash9x/caretqa/internal/observability"
	"github.com/xkilldash9x/caretqa/internal/store"
)

func newRunCmd() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the end-to-end scenarios against the configured environment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd.Context(), only)
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "run only the named scenarios (comma separated)")
	return cmd
}

func runScenarios(ctx context.Context, only []string) error {
	cfg := configFromContext(ctx)
	logger := observability.GetLogger()

	scenarios, err := selectScenarios(harness.BuiltIn(), only)
	if err != nil {
		return err
	}

	cache := newSessionCache(cfg, logger)
	cache.LoadFromDisk()
	defer cache.SaveToDisk()

	resultsStore, closePool, err := newResultsStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closePool != nil {
		defer closePool()
	}

	runner := harness.NewRunner(cfg, logger, cache, resultsStore)
	results := runner.Execute(ctx, scenarios)

	failed := 0
	for _, res := range results {
		if res.Status == schemas.ScenarioFailed {
			failed++
		}
	}

	logger.Info("Scenario run complete",
		zap.Int("total", len(results)), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

func selectScenarios(all []harness.Scenario, only []string) ([]harness.Scenario, error) {
	if len(only) == 0 {
		return all, nil
	}

	byName := make(map[string]harness.Scenario, len(all))
	for _, sc := range all {
		byName[sc.Name] = sc
	}

	selected := make([]harness.Scenario, 0, len(only))
	var unknown []string
	for _, name := range only {
		if sc, ok := byName[name]; ok {
			selected = append(selected, sc)
		} else {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown scenarios: %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}

func newSessionCache(cfg *config.Config, logger *zap.Logger) *authcache.Cache {
	authenticator := auth.NewChromeAuthenticator(cfg, logger)
	return authcache.New(authenticator, cfg.AuthCache.FreshnessWindow, cfg.AuthCache.Dir, logger)
}

// newResultsStore connects the optional PostgreSQL results store. A missing
// database URL disables persistence rather than failing the run.
func newResultsStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (harness.Store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("No database configured, scenario results will not be persisted")
		return nil, nil, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}
