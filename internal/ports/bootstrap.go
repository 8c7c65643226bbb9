package ports

import (
	"context"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
)

// FeatureGateSource prefetches feature gates for an identity. Failures are
// absorbed by callers; gates degrade to defaults.
type FeatureGateSource interface {
	Prefetch(ctx context.Context, did domain.DID) error
}

// ModerationConfigurator prepares moderation/labeler configuration before a
// session-change handler may fire for the account.
type ModerationConfigurator interface {
	ConfigureForAccount(ctx context.Context, account domain.Account) error
	ConfigureForGuest()
}
