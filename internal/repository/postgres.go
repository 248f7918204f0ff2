package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helioslab/credgate/internal/domain"
)

// Compile-time interface assertion.
var _ AccountRepository = (*PostgresAccountRepo)(nil)

const uniqueViolationCode = "23505"

// PostgresAccountRepo implements AccountRepository on pgx. Uniqueness of
// email and external_id is enforced by the unique indexes, so a concurrent
// duplicate insert yields exactly one success.
type PostgresAccountRepo struct {
	db *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: pool}
}

const selectAccountSQL = `SELECT id, email, password_hash, external_id, is_active, last_login, created_at, updated_at
FROM accounts
WHERE email = $1`

func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.db.QueryRow(ctx, selectAccountSQL, email)

	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.ExternalID,
		&account.IsActive,
		&account.LastLogin,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

const insertAccountSQL = `INSERT INTO accounts (id, email, password_hash, external_id, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, email, password_hash, external_id, is_active, last_login, created_at, updated_at`

func (r *PostgresAccountRepo) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	row := r.db.QueryRow(ctx, insertAccountSQL,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.ExternalID,
		account.IsActive,
	)

	var inserted domain.Account
	if err := row.Scan(
		&inserted.ID,
		&inserted.Email,
		&inserted.PasswordHash,
		&inserted.ExternalID,
		&inserted.IsActive,
		&inserted.LastLogin,
		&inserted.CreatedAt,
		&inserted.UpdatedAt,
	); err != nil {
		if mapped := translateUniqueViolation(err); mapped != nil {
			return domain.Account{}, mapped
		}
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}
	return inserted, nil
}

const touchLastLoginSQL = `UPDATE accounts SET last_login = now(), updated_at = now() WHERE id = $1`

// TouchLastLogin records the login timestamp. The Exec is synchronous, so the
// write is durable before the caller responds to the user.
func (r *PostgresAccountRepo) TouchLastLogin(ctx context.Context, accountID string) error {
	tag, err := r.db.Exec(ctx, touchLastLoginSQL, accountID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// translateUniqueViolation maps Postgres 23505 errors to the domain sentinel
// matching the violated constraint. Other errors pass through untranslated.
func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "external_id") {
		return domain.ErrDuplicateExternalID
	}
	return domain.ErrDuplicateEmail
}
