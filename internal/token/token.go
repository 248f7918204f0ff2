package token

import (
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/helioslab/credgate/internal/config"
)

// ErrInvalidToken covers every verification failure: bad signature,
// algorithm mismatch, malformed token, or passed expiry.
var ErrInvalidToken = errors.New("invalid token")

// Service signs and verifies access and refresh tokens. The two token kinds
// use independent secrets so that a compromise of one cannot forge the other.
// The service is pure and stateless; it is safe for concurrent use.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	algorithm     gojose.SignatureAlgorithm
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewService constructs a token service from runtime configuration.
func NewService(cfg config.Config) *Service {
	return &Service{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		algorithm:     gojose.SignatureAlgorithm(cfg.SigningAlgorithm),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}
}

// IssueAccess produces a signed access token for the subject.
func (s *Service) IssueAccess(subject string) (string, error) {
	return s.issue(subject, s.accessSecret, s.accessTTL)
}

// IssueRefresh produces a signed refresh token for the subject.
func (s *Service) IssueRefresh(subject string) (string, error) {
	return s.issue(subject, s.refreshSecret, s.refreshTTL)
}

// VerifyAccess checks the token against the access secret and returns its
// subject claim.
func (s *Service) VerifyAccess(token string) (string, error) {
	return s.verify(token, s.accessSecret)
}

// VerifyRefresh checks the token against the refresh secret and returns its
// subject claim.
func (s *Service) VerifyRefresh(token string) (string, error) {
	return s.verify(token, s.refreshSecret)
}

// RefreshTTL exposes the refresh token lifetime for cookie max-age handling.
func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *Service) issue(subject string, secret []byte, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: s.algorithm, Key: secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	claims := gojwt.Claims{
		Subject:  subject,
		ID:       uuid.NewString(),
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return signed, nil
}

func (s *Service) verify(token string, secret []byte) (string, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{s.algorithm})
	if err != nil {
		return "", ErrInvalidToken
	}

	var claims gojwt.Claims
	if err := parsed.Claims(secret, &claims); err != nil {
		return "", ErrInvalidToken
	}

	// Expiry is exact: no clock-skew leeway.
	if err := claims.ValidateWithLeeway(gojwt.Expected{Time: time.Now().UTC()}, 0); err != nil {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
