package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/helioslab/credgate/internal/domain"
	"github.com/helioslab/credgate/internal/idp"
	pw "github.com/helioslab/credgate/internal/password"
	"github.com/helioslab/credgate/internal/repository"
	"github.com/helioslab/credgate/internal/token"
)

// RegisterResult is the register response body.
type RegisterResult struct {
	Status string `json:"status"`
	Token  string `json:"token"`
}

// LoginResult carries the access token for the body and the refresh token
// for the cookie the handler sets.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
}

// Profile is the identity-introspection response body.
type Profile struct {
	Email      string `json:"email"`
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
}

// SessionService orchestrates register, login, refresh, and introspection
// against the credential store, the identity provider, and the token service.
// It holds no per-request state; all coordination is delegated to the
// storage layer's constraints.
type SessionService struct {
	accounts repository.AccountRepository
	identity idp.Client
	tokens   *token.Service
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewSessionService wires dependencies.
func NewSessionService(accounts repository.AccountRepository, identity idp.Client, tokens *token.Service, logger *zap.Logger) *SessionService {
	return &SessionService{
		accounts: accounts,
		identity: identity,
		tokens:   tokens,
		logger:   logger,
		tracer:   otel.Tracer("github.com/helioslab/credgate/internal/service"),
	}
}

// Register creates the identity remotely first, then commits the local record.
// A local account never exists without its provider counterpart.
//
// The local duplicate check and the remote registration are not atomic: two
// concurrent registrations for one email can both reach the provider before
// the unique index rejects the second local insert.
func (s *SessionService) Register(ctx context.Context, email, password string) (*RegisterResult, error) {
	ctx, span := s.startSpan(ctx, "SessionService.Register")
	defer span.End()

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, errDuplicateAccount()
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		span.RecordError(err)
		return nil, err
	}

	if _, err := s.identity.Register(ctx, email, password); err != nil {
		span.RecordError(err)
		return nil, translateRemoteError(err)
	}

	// The registration response is not trusted for the assigned identifier;
	// the admin lookup is the authoritative read-back.
	identity, err := s.identity.LookupByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, idp.ErrIdentityNotFound) {
			return nil, errRemoteInconsistency()
		}
		return nil, translateRemoteError(err)
	}

	hashed, err := pw.Hash(password)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hashed,
		ExternalID:   identity.ExternalID,
		IsActive:     true,
	}
	if _, err := s.accounts.Create(ctx, account); err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrDuplicateEmail) || errors.Is(err, domain.ErrDuplicateExternalID) {
			return nil, errDuplicateAccount()
		}
		return nil, err
	}

	access, err := s.tokens.IssueAccess(email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit("register.success", "email", email, "external_id", identity.ExternalID)
	return &RegisterResult{Status: "success", Token: access}, nil
}

// Login verifies credentials locally, checks verification status remotely,
// records the login time, and issues both tokens.
func (s *SessionService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := s.startSpan(ctx, "SessionService.Login")
	defer span.End()

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, errAccountNotFound()
		}
		span.RecordError(err)
		return nil, err
	}

	if !pw.Verify(password, account.PasswordHash) {
		return nil, errInvalidCredentials()
	}

	identity, err := s.identity.LookupByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return nil, translateRemoteError(err)
	}
	if identity.Status == idp.StatusUnverified {
		return nil, errAccountUnverified()
	}

	// last_login must be durable before the success response goes out.
	if err := s.accounts.TouchLastLogin(ctx, account.ID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	access, err := s.tokens.IssueAccess(account.Email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(account.Email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit("login.success", "email", account.Email, "account_id", account.ID)
	return &LoginResult{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a valid refresh token for a fresh access token. The
// refresh token itself is not rotated and there is no server-side revocation;
// a stolen refresh token stays valid until natural expiry.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	_, span := s.startSpan(ctx, "SessionService.Refresh")
	defer span.End()

	subject, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken()
	}

	access, err := s.tokens.IssueAccess(subject)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	s.audit("refresh.success", "email", subject)
	return access, nil
}

// Me resolves the account behind an already-verified access token subject.
// A miss means the token outlived its account.
func (s *SessionService) Me(ctx context.Context, subject string) (*Profile, error) {
	ctx, span := s.startSpan(ctx, "SessionService.Me")
	defer span.End()

	account, err := s.accounts.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, errAccountNotFound()
		}
		span.RecordError(err)
		return nil, err
	}

	return &Profile{Email: account.Email, ID: account.ID, ExternalID: account.ExternalID}, nil
}

// VerifyAccess proxies token verification for the auth middleware.
func (s *SessionService) VerifyAccess(tokenString string) (string, error) {
	return s.tokens.VerifyAccess(tokenString)
}

// RefreshTTLSeconds reports the refresh token lifetime for cookie max-age.
func (s *SessionService) RefreshTTLSeconds() int64 {
	return int64(s.tokens.RefreshTTL().Seconds())
}

func translateRemoteError(err error) error {
	switch {
	case errors.Is(err, idp.ErrRemoteRejected):
		return errRemoteRejected()
	case errors.Is(err, idp.ErrRemoteUnavailable):
		return errRemoteUnavailable()
	default:
		return err
	}
}

func (s *SessionService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *SessionService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *SessionService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
