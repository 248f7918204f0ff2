package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/helioslab/credgate/internal/domain"
)

func TestTranslateUniqueViolation(t *testing.T) {
	emailErr := &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "accounts_email_key"}
	require.ErrorIs(t, translateUniqueViolation(emailErr), domain.ErrDuplicateEmail)

	externalErr := &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "accounts_external_id_key"}
	require.ErrorIs(t, translateUniqueViolation(externalErr), domain.ErrDuplicateExternalID)

	wrapped := fmt.Errorf("create account: %w", emailErr)
	require.ErrorIs(t, translateUniqueViolation(wrapped), domain.ErrDuplicateEmail)
}

func TestTranslateUniqueViolationPassesThrough(t *testing.T) {
	require.Nil(t, translateUniqueViolation(errors.New("connection refused")))

	otherPg := &pgconn.PgError{Code: "23503", ConstraintName: "accounts_email_key"}
	require.Nil(t, translateUniqueViolation(otherPg))
}
