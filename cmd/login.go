package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/api/schemas"
	"github.com/xkilldash9x/caretqa/internal/observability"
)

func newLoginCmd() *cobra.Command {
	var identity, secret string
	var force bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Establish (or reuse) a session for an identity and store it in the cache.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			logger := observability.GetLogger()

			if identity == "" {
				identity = cfg.App.DefaultIdentity
			}
			if secret == "" {
				secret = cfg.App.DefaultSecret
			}
			if identity == "" || secret == "" {
				return fmt.Errorf("identity and secret are required (flags or app.default_identity / app.default_secret)")
			}

			cache := newSessionCache(cfg, logger)
			cache.LoadFromDisk()
			if force {
				cache.Invalidate(identity)
			}

			session, err := cache.GetOrCreate(ctx, schemas.Credentials{Identity: identity, Secret: secret})
			if err != nil {
				return err
			}
			cache.SaveToDisk()

			logger.Info("Session ready",
				zap.String("identity", session.Identity),
				zap.Time("created_at", session.CreatedAt),
				zap.Duration("age", session.Age(time.Now())))
			fmt.Fprintf(cmd.OutOrStdout(), "session for %s created at %s\n", session.Identity, session.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "login identity (defaults to app.default_identity)")
	cmd.Flags().StringVar(&secret, "secret", "", "login secret (defaults to app.default_secret)")
	cmd.Flags().BoolVar(&force, "force", false, "discard any cached session and log in again")
	return cmd
}
