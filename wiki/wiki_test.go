package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	linkerr "github.com/wikilink-dev/wikilinkd/errors"
)

func TestProviderExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "code-1", r.PostForm.Get("code"))
		fmt.Fprint(w, `{"account_id": 12345}`)
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{ExchangeURL: srv.URL, UserAgent: "wikilinkd-test"})
	id, err := p.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), id)
}

func TestProviderExchangeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", http.StatusForbidden)
			},
		},
		{
			name: "provider error field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"error": "invalid_grant"}`)
			},
		},
		{
			name: "missing account id",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewProvider(ProviderConfig{ExchangeURL: srv.URL})
			_, err := p.Exchange(context.Background(), "code-1")
			assert.True(t, linkerr.IsIdentityFetch(err), "want identity fetch error, got %v", err)
		})
	}
}

func TestProviderConsentURL(t *testing.T) {
	p := NewProvider(ProviderConfig{ConsentURL: "https://wiki.example/consent"})
	assert.Equal(t, "https://wiki.example/consent?state=tok%2B1", p.ConsentURL("tok+1"))
}

func TestResolverResolve(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "query", r.URL.Query().Get("action"))
		assert.Equal(t, "12345", r.URL.Query().Get("guiid"))
		fmt.Fprint(w, `{"query":{"globaluserinfo":{"id":12345,"name":"Example User"}}}`)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL+"/w/api.php", "wikilinkd-test")
	defer r.Close()

	identity, err := r.Resolve(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, "Example User", identity.Name)
	assert.Equal(t, srv.URL+"/wiki/User:Example_User", identity.ProfileURL)

	// Second lookup is served from the identity cache.
	_, err = r.Resolve(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolverMissingAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"query":{"globaluserinfo":{"missing":true}}}`)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL+"/w/api.php", "wikilinkd-test")
	defer r.Close()

	_, err := r.Resolve(context.Background(), 999)
	assert.True(t, linkerr.IsIdentityFetch(err))
}

func TestResolverServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL+"/w/api.php", "wikilinkd-test")
	defer r.Close()

	_, err := r.Resolve(context.Background(), 12345)
	assert.True(t, linkerr.IsIdentityFetch(err))
}
