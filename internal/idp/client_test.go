package idp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helioslab/credgate/internal/config"
	"github.com/helioslab/credgate/internal/idp"
)

func newClient(t *testing.T, handler http.HandlerFunc) *idp.HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.Config{IdPBaseURL: srv.URL, IdPAdminToken: "admin-token"}
	return idp.NewHTTPClient(cfg, srv.Client())
}

func TestRegisterSuccess(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users/register", r.URL.Path)
		require.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"ext-123"}}`))
	})

	id, err := client.Register(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)
	require.Equal(t, "ext-123", id)
}

func TestRegisterClientErrorMapsToRejected(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad email"}]}`, http.StatusBadRequest)
	})

	_, err := client.Register(context.Background(), "not-an-email", "pw")
	require.ErrorIs(t, err, idp.ErrRemoteRejected)
}

func TestRegisterServerErrorMapsToUnavailable(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Register(context.Background(), "a@x.com", "pw1")
	require.ErrorIs(t, err, idp.ErrRemoteUnavailable)
}

func TestRegisterMalformedBodyMapsToUnavailable(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.Register(context.Background(), "a@x.com", "pw1")
	require.ErrorIs(t, err, idp.ErrRemoteUnavailable)
}

func TestLookupByEmail(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/users", r.URL.Path)
		require.Equal(t, "a@x.com", r.URL.Query().Get("filter[email][_eq]"))
		require.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"ext-123","status":"active"}]}`))
	})

	identity, err := client.LookupByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "ext-123", identity.ExternalID)
	require.Equal(t, "active", identity.Status)
}

func TestLookupByEmailEmptyList(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	_, err := client.LookupByEmail(context.Background(), "missing@x.com")
	require.ErrorIs(t, err, idp.ErrIdentityNotFound)
}

func TestLookupByEmailServerError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.LookupByEmail(context.Background(), "a@x.com")
	require.ErrorIs(t, err, idp.ErrRemoteUnavailable)
}

func TestUnreachableProviderMapsToUnavailable(t *testing.T) {
	cfg := config.Config{IdPBaseURL: "http://127.0.0.1:1", IdPAdminToken: "admin-token"}
	client := idp.NewHTTPClient(cfg, nil)

	_, err := client.Register(context.Background(), "a@x.com", "pw1")
	require.ErrorIs(t, err, idp.ErrRemoteUnavailable)

	_, err = client.LookupByEmail(context.Background(), "a@x.com")
	require.ErrorIs(t, err, idp.ErrRemoteUnavailable)
}
