package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/commentpilot/commentpilot/pkg/config"
	"github.com/commentpilot/commentpilot/pkg/logger"
	"github.com/commentpilot/commentpilot/pkg/metrics"
	"github.com/google/uuid"
)

// ErrAccountNotFound means no connected account owns the page a webhook
// entry arrived for.
var ErrAccountNotFound = errors.New("no connected account for page")

// AccountStore is the persistence surface the resolver needs.
type AccountStore interface {
	GetByPageID(ctx context.Context, platform, pageID string) (*models.SocialAccount, error)
	ListByPlatform(ctx context.Context, platform string) ([]*models.SocialAccount, error)
}

// RuleCounter reports how many active rules a workspace has. Used only by
// the legacy fallback to prefer accounts that would actually act on a
// comment.
type RuleCounter interface {
	CountActiveByWorkspace(ctx context.Context, workspaceID uuid.UUID) (int64, error)
}

// Resolver maps a webhook entry's page ID to the connected account that owns
// it. The page ID captured at connect time is authoritative; the legacy
// guess-by-scanning behavior survives behind a config flag for installs that
// predate page ID capture.
type Resolver struct {
	accounts       AccountStore
	ruleCounts     RuleCounter
	logger         *logger.Logger
	metrics        *metrics.Metrics
	overrideToken  string
	legacyFallback bool
}

func NewResolver(accounts AccountStore, ruleCounts RuleCounter, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		accounts:       accounts,
		ruleCounts:     ruleCounts,
		logger:         log,
		metrics:        m,
		overrideToken:  cfg.Instagram.OverrideToken,
		legacyFallback: cfg.Webhook.LegacyFallback,
	}
}

// Resolve returns the account owning pageID. With the legacy fallback off,
// an unknown page is an error and the entry is not processed.
func (r *Resolver) Resolve(ctx context.Context, pageID string) (*models.SocialAccount, error) {
	account, err := r.accounts.GetByPageID(ctx, models.PlatformInstagram, pageID)
	if err == nil {
		return r.withToken(account), nil
	}

	if !r.legacyFallback {
		r.metrics.RecordResolverMiss("authoritative")
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pageID)
	}

	account, err = r.resolveLegacy(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return r.withToken(account), nil
}

// resolveLegacy reproduces the pre-page-ID guessing chain: any account whose
// workspace has active rules, preferring the primary, then any connected
// account at all.
func (r *Resolver) resolveLegacy(ctx context.Context, pageID string) (*models.SocialAccount, error) {
	accounts, err := r.accounts.ListByPlatform(ctx, models.PlatformInstagram)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		r.metrics.RecordResolverMiss("legacy")
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pageID)
	}

	// ListByPlatform orders primaries first, so the first account with
	// active rules is the best guess.
	for _, account := range accounts {
		count, err := r.ruleCounts.CountActiveByWorkspace(ctx, account.WorkspaceID)
		if err != nil {
			r.logger.Warn("failed to count active rules during legacy resolve",
				logger.String("workspace_id", account.WorkspaceID.String()),
				logger.Err(err),
			)
			continue
		}
		if count > 0 {
			r.logger.Warn("resolved entry by legacy guess",
				logger.String("page_id", pageID),
				logger.String("guessed_account", account.Username),
			)
			return account, nil
		}
	}

	r.logger.Warn("legacy resolve fell through to first connected account",
		logger.String("page_id", pageID),
		logger.String("guessed_account", accounts[0].Username),
	)
	return accounts[0], nil
}

// withToken applies the configured token override. Used in development
// against a test app, where stored tokens belong to the production app.
func (r *Resolver) withToken(account *models.SocialAccount) *models.SocialAccount {
	if r.overrideToken == "" {
		return account
	}
	copied := *account
	copied.AccessToken = r.overrideToken
	return &copied
}
