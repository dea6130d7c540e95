// Package services holds the linking orchestration shared by the callback
// and bot processes.
package services

import (
	"context"
	"errors"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
	"github.com/wikilink-dev/wikilinkd/internal/metrics"
	"github.com/wikilink-dev/wikilinkd/log"
)

// CallbackOutcome classifies the result of one verification callback. Every
// inbound redirect resolves to exactly one outcome; there is no unhandled
// branch.
type CallbackOutcome int

const (
	OutcomeLinked CallbackOutcome = iota
	OutcomeAlreadyLinked
	OutcomeInvalidToken
	OutcomeExpiredToken
	OutcomeProviderFailure
	OutcomeStorageFailure
)

// String returns the metric label for the outcome.
func (o CallbackOutcome) String() string {
	switch o {
	case OutcomeLinked:
		return "linked"
	case OutcomeAlreadyLinked:
		return "already_linked"
	case OutcomeInvalidToken:
		return "invalid_token"
	case OutcomeExpiredToken:
		return "expired_token"
	case OutcomeProviderFailure:
		return "provider_failure"
	case OutcomeStorageFailure:
		return "storage_failure"
	}
	return "unknown"
}

// LinkService drives the linking protocol: issuing requests on the bot side
// and committing verification callbacks on the server side.
type LinkService struct {
	registry domain.LinkRequestRegistry
	links    domain.LinkStore
	provider domain.IdentityProvider
	notifier domain.AlertNotifier
	logger   log.Logger
}

func NewLinkService(
	registry domain.LinkRequestRegistry,
	links domain.LinkStore,
	provider domain.IdentityProvider,
	notifier domain.AlertNotifier,
	logger log.Logger,
) *LinkService {
	return &LinkService{
		registry: registry,
		links:    links,
		provider: provider,
		notifier: notifier,
		logger:   logger,
	}
}

// StartLink issues (or refreshes) the user's pending request and returns the
// one-time token together with the consent URL to hand to the user. Users
// that already hold a committed link are rejected up front.
func (s *LinkService) StartLink(ctx context.Context, chatUserID string) (token, consentURL string, err error) {
	if _, err := s.links.Lookup(ctx, chatUserID); err == nil {
		return "", "", linkerr.ErrAlreadyLinked
	} else if !errors.Is(err, linkerr.ErrLinkNotFound) {
		return "", "", err
	}

	req, err := s.registry.Start(ctx, chatUserID)
	if err != nil {
		return "", "", err
	}
	if metrics.LinkRequestsStartedTotal != nil {
		metrics.LinkRequestsStartedTotal.Inc()
	}
	s.logger.Debug(ctx, "link request issued", map[string]interface{}{
		"chat_user_id": chatUserID,
	})
	return req.Token, s.provider.ConsentURL(req.Token), nil
}

// CancelLink cancels the user's pending request, if any.
func (s *LinkService) CancelLink(ctx context.Context, chatUserID string) error {
	return s.registry.CancelFor(ctx, chatUserID)
}

// HandleCallback processes one verification redirect. Ordering matters: the
// proof code is exchanged before the token is consumed, so a provider
// failure leaves the request pending and the user can simply retry the
// redirect. The returned error is nil for every benign outcome.
func (s *LinkService) HandleCallback(ctx context.Context, token, code string) (CallbackOutcome, error) {
	if token == "" || code == "" {
		return OutcomeInvalidToken, nil
	}

	wikiAccountID, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn(ctx, "proof code exchange failed", map[string]interface{}{
			"error": err.Error(),
		})
		return OutcomeProviderFailure, nil
	}

	chatUserID, err := s.registry.Complete(ctx, token, wikiAccountID)
	switch {
	case errors.Is(err, linkerr.ErrAlreadyCompleted):
		// Replayed redirect (browser refresh). Idempotent, trace only.
		s.logger.Debug(ctx, "token already completed", nil)
		return OutcomeAlreadyLinked, nil
	case errors.Is(err, linkerr.ErrTokenExpired):
		return OutcomeExpiredToken, nil
	case errors.Is(err, linkerr.ErrTokenNotFound):
		return OutcomeInvalidToken, nil
	case err != nil:
		s.report(ctx, "completing link request", err)
		return OutcomeStorageFailure, err
	}

	err = s.links.Commit(ctx, chatUserID, wikiAccountID)
	switch {
	case errors.Is(err, linkerr.ErrAlreadyLinked):
		// Raced with a commit under another token, or a repeat flow. The
		// request stays consumed and the existing link stands untouched.
		s.logger.Debug(ctx, "chat user already linked", map[string]interface{}{
			"chat_user_id": chatUserID,
		})
		return OutcomeAlreadyLinked, nil
	case err != nil:
		s.report(ctx, "committing linked account", err)
		return OutcomeStorageFailure, err
	}

	s.logger.Info(ctx, "account linked", map[string]interface{}{
		"chat_user_id":    chatUserID,
		"wiki_account_id": wikiAccountID,
	})
	return OutcomeLinked, nil
}

func (s *LinkService) report(ctx context.Context, op string, err error) {
	s.logger.Error(ctx, "storage failure", err, map[string]interface{}{"op": op})
	if s.notifier != nil {
		s.notifier.Alertf("storage failure while %s: %v", op, err)
	}
}
