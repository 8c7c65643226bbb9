package ports

import (
	"context"

	"github.com/bnema/bsky-accounts-cli/internal/domain"
)

// AccountRepository persists the whole account snapshot: the ordered list
// plus the DID that was active when it was written. The list is stored and
// replaced wholesale because cross-instance reconciliation operates on
// full snapshots.
type AccountRepository interface {
	Load(ctx context.Context) ([]domain.Account, domain.DID, error)
	Save(ctx context.Context, accounts []domain.Account, currentDID domain.DID) error
}
