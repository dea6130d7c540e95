package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
	"github.com/wikilink-dev/wikilinkd/log"
)

// --- Mock Implementations ---

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Start(ctx context.Context, chatUserID string) (*domain.AuthRequest, error) {
	args := m.Called(ctx, chatUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthRequest), args.Error(1)
}

func (m *MockRegistry) Lookup(ctx context.Context, token string) (*domain.AuthRequest, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthRequest), args.Error(1)
}

func (m *MockRegistry) Complete(ctx context.Context, token string, wikiAccountID int64) (string, error) {
	args := m.Called(ctx, token, wikiAccountID)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) CancelFor(ctx context.Context, chatUserID string) error {
	args := m.Called(ctx, chatUserID)
	return args.Error(0)
}

type MockLinkStore struct {
	mock.Mock
}

func (m *MockLinkStore) Commit(ctx context.Context, chatUserID string, wikiAccountID int64) error {
	args := m.Called(ctx, chatUserID, wikiAccountID)
	return args.Error(0)
}

func (m *MockLinkStore) Lookup(ctx context.Context, chatUserID string) (*domain.LinkedAccount, error) {
	args := m.Called(ctx, chatUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LinkedAccount), args.Error(1)
}

func (m *MockLinkStore) CommunityConfig(ctx context.Context, communityID string) (*domain.CommunityConfig, error) {
	args := m.Called(ctx, communityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommunityConfig), args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ConsentURL(token string) string {
	args := m.Called(token)
	return args.String(0)
}

func (m *MockProvider) Exchange(ctx context.Context, code string) (int64, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(t *testing.T) (*LinkService, *MockRegistry, *MockLinkStore, *MockProvider) {
	t.Helper()
	registry := new(MockRegistry)
	links := new(MockLinkStore)
	provider := new(MockProvider)
	svc := NewLinkService(registry, links, provider, nil, log.NewNop())
	return svc, registry, links, provider
}

// --- StartLink ---

func TestStartLinkIssuesTokenAndConsentURL(t *testing.T) {
	svc, registry, links, provider := newTestService(t)
	ctx := context.Background()

	links.On("Lookup", ctx, "user-1").Return(nil, linkerr.ErrLinkNotFound)
	registry.On("Start", ctx, "user-1").Return(&domain.AuthRequest{
		Token:      "tok-1",
		ChatUserID: "user-1",
		State:      domain.StatePending,
	}, nil)
	provider.On("ConsentURL", "tok-1").Return("https://wiki.example/consent?state=tok-1")

	token, consentURL, err := svc.StartLink(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "https://wiki.example/consent?state=tok-1", consentURL)
	registry.AssertExpectations(t)
}

func TestStartLinkRejectsAlreadyLinkedUser(t *testing.T) {
	svc, registry, links, _ := newTestService(t)
	ctx := context.Background()

	links.On("Lookup", ctx, "user-1").Return(&domain.LinkedAccount{
		ChatUserID:    "user-1",
		WikiAccountID: 12345,
	}, nil)

	_, _, err := svc.StartLink(ctx, "user-1")
	assert.ErrorIs(t, err, linkerr.ErrAlreadyLinked)
	registry.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

// --- HandleCallback ---

// Scenario A: a valid unexpired callback commits the link.
func TestHandleCallbackCommitsLink(t *testing.T) {
	svc, registry, links, provider := newTestService(t)
	ctx := context.Background()

	provider.On("Exchange", ctx, "code-1").Return(int64(12345), nil)
	registry.On("Complete", ctx, "tok-1", int64(12345)).Return("user-1", nil)
	links.On("Commit", ctx, "user-1", int64(12345)).Return(nil)

	outcome, err := svc.HandleCallback(ctx, "tok-1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLinked, outcome)
	links.AssertExpectations(t)
}

func TestHandleCallbackMissingParams(t *testing.T) {
	svc, registry, _, provider := newTestService(t)

	outcome, err := svc.HandleCallback(context.Background(), "", "code-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidToken, outcome)

	outcome, err = svc.HandleCallback(context.Background(), "tok-1", "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidToken, outcome)

	provider.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything)
	registry.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

// A provider failure mutates nothing: the request stays pending and the
// user can retry the redirect.
func TestHandleCallbackProviderFailure(t *testing.T) {
	svc, registry, links, provider := newTestService(t)
	ctx := context.Background()

	provider.On("Exchange", ctx, "code-1").
		Return(int64(0), linkerr.NewIdentityFetchError("exchange", assert.AnError))

	outcome, err := svc.HandleCallback(ctx, "tok-1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProviderFailure, outcome)
	registry.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	links.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

// Scenario B: a callback past the TTL is rejected and nothing is written.
func TestHandleCallbackExpiredToken(t *testing.T) {
	svc, registry, links, provider := newTestService(t)
	ctx := context.Background()

	provider.On("Exchange", ctx, "code-1").Return(int64(12345), nil)
	registry.On("Complete", ctx, "tok-1", int64(12345)).Return("", linkerr.ErrTokenExpired)

	outcome, err := svc.HandleCallback(ctx, "tok-1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpiredToken, outcome)
	links.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCallbackUnknownToken(t *testing.T) {
	svc, registry, links, provider := newTestService(t)
	ctx := context.Background()

	provider.On("Exchange", ctx, "code-1").Return(int64(12345), nil)
	registry.On("Complete", ctx, "bogus", int64(12345)).Return("", linkerr.ErrTokenNotFound)

	outcome, err := svc.HandleCallback(ctx, "bogus", "code-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidToken, outcome)
	links.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

// Scenario C, loser's view: the second consumer of a token sees the
// idempotent already-linked outcome and triggers no write.
func TestHandleCallbackReplayedToken(t *testing.T) {
	svc, registry, links, provider := newTestService(t)
	ctx := context.Background()

	provider.On("Exchange", ctx, "code-1").Return(int64(12345), nil)
	registry.On("Complete", ctx, "tok-1", int64(12345)).Return("", linkerr.ErrAlreadyCompleted)

	outcome, err := svc.HandleCallback(ctx, "tok-1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyLinked, outcome)
	links.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

// A commit race with a prior link under a different token: the request is
// consumed, the existing link stands, the user sees already-linked.
func TestHandleCallbackCommitRace(t *testing.T) {
	svc, registry, links, provider := newTestService(t)
	ctx := context.Background()

	provider.On("Exchange", ctx, "code-1").Return(int64(12345), nil)
	registry.On("Complete", ctx, "tok-1", int64(12345)).Return("user-1", nil)
	links.On("Commit", ctx, "user-1", int64(12345)).Return(linkerr.ErrAlreadyLinked)

	outcome, err := svc.HandleCallback(ctx, "tok-1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyLinked, outcome)
}

func TestHandleCallbackStorageFailureSurfaced(t *testing.T) {
	svc, registry, links, provider := newTestService(t)
	ctx := context.Background()

	storageErr := linkerr.NewStorageError("link commit", assert.AnError)
	provider.On("Exchange", ctx, "code-1").Return(int64(12345), nil)
	registry.On("Complete", ctx, "tok-1", int64(12345)).Return("user-1", nil)
	links.On("Commit", ctx, "user-1", int64(12345)).Return(storageErr)

	outcome, err := svc.HandleCallback(ctx, "tok-1", "code-1")
	assert.Equal(t, OutcomeStorageFailure, outcome)
	assert.True(t, linkerr.IsStorage(err))
}
