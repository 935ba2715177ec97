// Package harness executes end-to-end scenarios against the target
// application through a worker pool, giving each scenario an authenticated
// session, a gateway with its own traffic recorder, and typed workflow
// clients.
package harness

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/api/schemas"
	"github.com/xkilldash9x/caretqa/internal/authcache"
	"github.com/xkilldash9x/caretqa/internal/config"
	"github.com/xkilldash9x/caretqa/internal/gateway"
	"github.com/xkilldash9x/caretqa/internal/mailbox"
	"github.com/xkilldash9x/caretqa/internal/network"
	"github.com/xkilldash9x/caretqa/internal/recorder"
	"github.com/xkilldash9x/caretqa/internal/workflows"
)

// Store persists scenario results. Satisfied by *store.Store.
type Store interface {
	PersistResult(ctx context.Context, result *schemas.ScenarioResult) error
}

// Env is the per-scenario toolkit handed to a scenario body.
type Env struct {
	Creds     schemas.Credentials
	Session   *schemas.Session
	Cache     *authcache.Cache
	Gateway   *gateway.Gateway
	Workflows *workflows.Client
	Logger    *zap.Logger

	// Mailbox is nil unless a Nylas grant is configured. Scenarios needing
	// inbox verification must check before use.
	Mailbox *mailbox.Client
}

// Scenario is one end-to-end workflow. Run returns nil on pass.
type Scenario struct {
	Name     string
	Identity string // empty means the configured default identity
	Run      func(ctx context.Context, env *Env) error
}

// Runner distributes scenarios to a pool of workers.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger
	cache  *authcache.Cache
	store  Store // nil disables persistence

	transport http.RoundTripper
	mailbox   *mailbox.Client
}

// NewRunner creates a Runner. The cache is shared across scenarios so logins
// amortize; everything else is built per scenario.
func NewRunner(cfg *config.Config, logger *zap.Logger, cache *authcache.Cache, store Store) *Runner {
	netCfg := network.NewDefaultClientConfig()
	netCfg.IgnoreTLSErrors = cfg.Network.IgnoreTLSErrors
	if cfg.Network.Timeout > 0 {
		netCfg.RequestTimeout = cfg.Network.Timeout
	}
	netCfg.Logger = logger

	var mbx *mailbox.Client
	if cfg.Mailbox.GrantID != "" && cfg.Mailbox.APIKey != "" {
		mbx = mailbox.NewClient(network.NewClient(netCfg), cfg.Mailbox, logger)
	}

	return &Runner{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "harness")),
		cache:     cache,
		store:     store,
		transport: network.NewHTTPTransport(netCfg),
		mailbox:   mbx,
	}
}

// Execute runs all scenarios through the worker pool and returns their
// results in completion order.
func (r *Runner) Execute(ctx context.Context, scenarios []Scenario) []schemas.ScenarioResult {
	concurrency := r.cfg.Harness.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	queueSize := r.cfg.Harness.QueueSize
	if queueSize < len(scenarios) {
		queueSize = len(scenarios)
	}

	r.logger.Info("Starting scenario worker pool",
		zap.Int("concurrency", concurrency), zap.Int("scenarios", len(scenarios)))

	jobs := make(chan Scenario, queueSize)
	for _, sc := range scenarios {
		jobs <- sc
	}
	close(jobs)

	resultsChan := make(chan schemas.ScenarioResult, len(scenarios))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger := r.logger.With(zap.Int("worker_id", workerID))
			for sc := range jobs {
				resultsChan <- r.runOne(ctx, sc, logger)
			}
		}(i + 1)
	}
	wg.Wait()
	close(resultsChan)

	results := make([]schemas.ScenarioResult, 0, len(scenarios))
	for res := range resultsChan {
		results = append(results, res)
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, sc Scenario, logger *zap.Logger) schemas.ScenarioResult {
	identity := sc.Identity
	if identity == "" {
		identity = r.cfg.App.DefaultIdentity
	}
	creds := schemas.Credentials{Identity: identity, Secret: r.cfg.App.DefaultSecret}

	result := schemas.ScenarioResult{
		RunID:     uuid.New().String(),
		Scenario:  sc.Name,
		Identity:  identity,
		StartedAt: time.Now(),
	}
	logger = logger.With(zap.String("scenario", sc.Name), zap.String("run_id", result.RunID))
	logger.Info("Scenario starting")

	timeout := r.cfg.Harness.ScenarioTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	scenarioCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := recorder.New(r.transport, logger, r.cfg.Network.CaptureBodies)
	err := r.execute(scenarioCtx, sc, creds, rec, logger)

	result.FinishedAt = time.Now()
	result.Transcript = rec.Transcript()
	if err != nil {
		result.Status = schemas.ScenarioFailed
		result.Detail = err.Error()
		logger.Error("Scenario failed", zap.Error(err), zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)))
	} else {
		result.Status = schemas.ScenarioPassed
		logger.Info("Scenario passed", zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)))
	}

	if r.store != nil {
		if persistErr := r.store.PersistResult(ctx, &result); persistErr != nil {
			logger.Warn("Failed to persist scenario result", zap.Error(persistErr))
		}
	}
	return result
}

func (r *Runner) execute(ctx context.Context, sc Scenario, creds schemas.Credentials, rec *recorder.Recorder, logger *zap.Logger) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Scenario panicked", zap.Any("panic_value", p), zap.String("stack", string(debug.Stack())))
			err = fmt.Errorf("scenario panicked: %v", p)
		}
	}()

	session, err := r.cache.GetOrCreate(ctx, creds)
	if err != nil {
		return fmt.Errorf("failed to establish session: %w", err)
	}

	gw := gateway.New(&http.Client{Transport: rec}, logger)
	env := &Env{
		Creds:     creds,
		Session:   session,
		Cache:     r.cache,
		Gateway:   gw,
		Workflows: workflows.NewClient(gw, session, logger),
		Logger:    logger,
		Mailbox:   r.mailbox,
	}
	return sc.Run(ctx, env)
}
