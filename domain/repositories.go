package domain

import (
	"context"
)

// LinkRequestRegistry issues, tracks, and expires pending link requests.
// Implementations must make Start and Complete atomic across processes:
// at most one pending request exists per chat user, and exactly one caller
// may move a given token from pending to completed.
type LinkRequestRegistry interface {
	// Start returns the pending request for the chat user, refreshing its
	// expiry if one is still live, or creates a new one with a fresh token.
	Start(ctx context.Context, chatUserID string) (*AuthRequest, error)

	// Lookup returns the request for the token with its effective state:
	// a stored pending request past its TTL is reported as expired.
	// Returns errors.ErrTokenNotFound for unknown tokens.
	Lookup(ctx context.Context, token string) (*AuthRequest, error)

	// Complete moves the token from pending to completed and records the
	// verified wiki account id. It returns the chat user id that started
	// the request. Errors: ErrAlreadyCompleted if the token was consumed
	// before, ErrTokenExpired past the TTL, ErrTokenNotFound otherwise.
	Complete(ctx context.Context, token string, wikiAccountID int64) (string, error)

	// CancelFor cancels the chat user's pending request, if any.
	CancelFor(ctx context.Context, chatUserID string) error
}

// LinkStore is the durable link storage shared by both processes.
type LinkStore interface {
	// Commit inserts the association if absent. Concurrent commits for the
	// same chat user resolve to exactly one success; the rest observe
	// errors.ErrAlreadyLinked.
	Commit(ctx context.Context, chatUserID string, wikiAccountID int64) error

	// Lookup returns the committed link, or errors.ErrLinkNotFound.
	Lookup(ctx context.Context, chatUserID string) (*LinkedAccount, error)

	// CommunityConfig returns the community's onboarding configuration, or
	// errors.ErrConfigNotFound when the community has none.
	CommunityConfig(ctx context.Context, communityID string) (*CommunityConfig, error)
}
