package echo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
	"github.com/wikilink-dev/wikilinkd/log"
	"github.com/wikilink-dev/wikilinkd/registry"
	"github.com/wikilink-dev/wikilinkd/services"
)

type memLinkStore struct {
	mu    sync.Mutex
	links map[string]*domain.LinkedAccount
}

func (s *memLinkStore) Commit(_ context.Context, chatUserID string, wikiAccountID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[chatUserID]; ok {
		return linkerr.ErrAlreadyLinked
	}
	s.links[chatUserID] = &domain.LinkedAccount{ChatUserID: chatUserID, WikiAccountID: wikiAccountID}
	return nil
}

func (s *memLinkStore) Lookup(_ context.Context, chatUserID string) (*domain.LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[chatUserID]
	if !ok {
		return nil, linkerr.ErrLinkNotFound
	}
	return link, nil
}

func (s *memLinkStore) CommunityConfig(context.Context, string) (*domain.CommunityConfig, error) {
	return nil, linkerr.ErrConfigNotFound
}

type stubProvider struct {
	accountID int64
	err       error
}

func (p *stubProvider) ConsentURL(token string) string {
	return "https://wiki.example/consent?state=" + token
}

func (p *stubProvider) Exchange(context.Context, string) (int64, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.accountID, nil
}

type callbackFixture struct {
	e        *echo.Echo
	registry *registry.Memory
	store    *memLinkStore
	provider *stubProvider
}

func newFixture(t *testing.T, ttl time.Duration) *callbackFixture {
	t.Helper()
	reg := registry.NewMemory(ttl, time.Hour)
	t.Cleanup(reg.Close)

	store := &memLinkStore{links: map[string]*domain.LinkedAccount{}}
	provider := &stubProvider{accountID: 12345}
	svc := services.NewLinkService(reg, store, provider, nil, log.NewNop())

	e := echo.New()
	NewCallbackAPI(svc, log.NewNop()).RegisterRoutes(e)

	return &callbackFixture{e: e, registry: reg, store: store, provider: provider}
}

func (f *callbackFixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestCallbackSuccess(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	reqToken, err := f.registry.Start(context.Background(), "user-1")
	require.NoError(t, err)

	rec := f.get(t, "/callback?token="+reqToken.Token+"&code=code-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Account linked")

	link, err := f.store.Lookup(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), link.WikiAccountID)
}

// A browser refresh replays the same redirect: it lands on the idempotent
// already-linked page and writes nothing new.
func TestCallbackReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	reqToken, err := f.registry.Start(context.Background(), "user-1")
	require.NoError(t, err)

	target := "/callback?token=" + reqToken.Token + "&code=code-1"
	first := f.get(t, target)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.get(t, target)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "Already linked")
	assert.Len(t, f.store.links, 1)
}

func TestCallbackTokenInStateParam(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	reqToken, err := f.registry.Start(context.Background(), "user-1")
	require.NoError(t, err)

	rec := f.get(t, "/callback?state="+reqToken.Token+"&code=code-1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallbackExpiredToken(t *testing.T) {
	f := newFixture(t, time.Nanosecond)
	reqToken, err := f.registry.Start(context.Background(), "user-1")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	rec := f.get(t, "/callback?token="+reqToken.Token+"&code=code-1")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
	assert.Empty(t, f.store.links)
}

func TestCallbackUnknownToken(t *testing.T) {
	f := newFixture(t, 10*time.Minute)

	rec := f.get(t, "/callback?token=bogus&code=code-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "start the linking flow again")
}

func TestCallbackMissingParams(t *testing.T) {
	f := newFixture(t, 10*time.Minute)

	rec := f.get(t, "/callback")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackProviderFailure(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	f.provider.err = linkerr.NewIdentityFetchError("exchange", assert.AnError)
	reqToken, err := f.registry.Start(context.Background(), "user-1")
	require.NoError(t, err)

	rec := f.get(t, "/callback?token="+reqToken.Token+"&code=code-1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "try the link again")

	// The request is untouched: a retry with a working provider succeeds.
	f.provider.err = nil
	rec = f.get(t, "/callback?token="+reqToken.Token+"&code=code-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Account linked"))
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, 10*time.Minute)

	rec := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
