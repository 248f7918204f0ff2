package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helioslab/credgate/internal/config"
)

// Errors surfaced by the identity-provider bridge. The session flow decides
// how each maps onto the HTTP surface; the bridge itself mutates nothing.
var (
	// ErrRemoteRejected means the provider refused the request as malformed
	// (bad email or password format).
	ErrRemoteRejected = errors.New("identity provider rejected request")
	// ErrRemoteUnavailable covers provider server errors, transport failures,
	// timeouts, and malformed responses.
	ErrRemoteUnavailable = errors.New("identity provider unavailable")
	// ErrIdentityNotFound means no provider record matched the lookup.
	ErrIdentityNotFound = errors.New("identity not found")
)

// Identity is the provider's view of a registered user.
type Identity struct {
	ExternalID string
	Status     string
}

// StatusUnverified is the provider status of an identity that registered but
// has not completed verification.
const StatusUnverified = "unverified"

// Client is the outbound interface to the external identity provider.
type Client interface {
	Register(ctx context.Context, email, password string) (string, error)
	LookupByEmail(ctx context.Context, email string) (Identity, error)
}

// HTTPClient is the default HTTP implementation of Client. Lookup calls carry
// the administrative bearer credential.
type HTTPClient struct {
	baseURL    string
	adminToken string
	httpClient *http.Client
}

// NewHTTPClient constructs the default bridge. A nil http.Client gets a
// 10 second timeout so a stalled provider surfaces as unavailable instead of
// hanging the request.
func NewHTTPClient(cfg config.Config, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.IdPBaseURL, "/"),
		adminToken: cfg.IdPAdminToken,
		httpClient: client,
	}
}

type registerResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type lookupResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// Register creates the identity on the provider and returns the identifier it
// assigned, when the response carries one.
func (c *HTTPClient) Register(ctx context.Context, email, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("encode register payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/register", strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.adminToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ErrRemoteUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", ErrRemoteUnavailable
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", ErrRemoteRejected
	default:
		return "", ErrRemoteUnavailable
	}

	var decoded registerResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", ErrRemoteUnavailable
	}
	return decoded.Data.ID, nil
}

// LookupByEmail queries the provider for the identity matching the email and
// returns its external identifier and verification status.
func (c *HTTPClient) LookupByEmail(ctx context.Context, email string) (Identity, error) {
	endpoint := fmt.Sprintf("%s/users?filter[email][_eq]=%s", c.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.adminToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, ErrRemoteUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || resp.StatusCode >= 300 {
		return Identity{}, ErrRemoteUnavailable
	}

	var decoded lookupResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Identity{}, ErrRemoteUnavailable
	}
	if len(decoded.Data) == 0 {
		return Identity{}, ErrIdentityNotFound
	}

	first := decoded.Data[0]
	return Identity{ExternalID: first.ID, Status: first.Status}, nil
}
