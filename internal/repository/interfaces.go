package repository

import (
	"context"

	"github.com/helioslab/credgate/internal/domain"
)

// AccountRepository exposes persistence for local credential records.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	TouchLastLogin(ctx context.Context, accountID string) error
}
