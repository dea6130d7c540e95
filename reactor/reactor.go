// Package reactor reacts to chat-platform membership events using the
// committed link state. Each event is an independent unit of work: one
// event's failure never affects another's and never terminates the process.
package reactor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
	"github.com/wikilink-dev/wikilinkd/internal/metrics"
	"github.com/wikilink-dev/wikilinkd/log"
)

// EventKind tags the fixed set of platform events the reactor understands.
type EventKind int

const (
	EventMemberJoined EventKind = iota
	EventMemberLeft
)

// Event is one inbound platform event. Mention is the platform's rendering
// of a user reference inside message text.
type Event struct {
	Kind        EventKind
	CommunityID string
	ChatUserID  string
	Mention     string
}

// welcomeReaction is attached to every welcome message.
var welcomeReaction = []string{"👋"}

// Reactor dispatches platform events to per-kind handlers with bounded
// concurrency.
type Reactor struct {
	links    domain.LinkStore
	resolver domain.IdentityResolver
	platform domain.ChatPlatform
	renderer domain.Renderer
	notifier domain.AlertNotifier
	logger   log.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// New creates a reactor handling at most workers events concurrently.
func New(
	links domain.LinkStore,
	resolver domain.IdentityResolver,
	platform domain.ChatPlatform,
	renderer domain.Renderer,
	notifier domain.AlertNotifier,
	logger log.Logger,
	workers int,
) *Reactor {
	if workers < 1 {
		workers = 1
	}
	return &Reactor{
		links:    links,
		resolver: resolver,
		platform: platform,
		renderer: renderer,
		notifier: notifier,
		logger:   logger,
		sem:      make(chan struct{}, workers),
	}
}

// Dispatch handles the event on its own goroutine, bounded by the worker
// limit. It returns once the event is admitted; whatever delivers events
// never blocks on a slow identity resolution inside another event.
func (r *Reactor) Dispatch(ctx context.Context, ev Event) {
	r.sem <- struct{}{}
	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.sem
			r.wg.Done()
		}()

		logger := r.logger.With(map[string]interface{}{
			"event_id":     uuid.NewString(),
			"community_id": ev.CommunityID,
			"chat_user_id": ev.ChatUserID,
		})

		var err error
		switch ev.Kind {
		case EventMemberJoined:
			err = r.handleMemberJoined(ctx, logger, ev)
		case EventMemberLeft:
			// No reaction required; links are global and survive leaves.
		}
		if err != nil {
			logger.Error(ctx, "event handling failed", err, nil)
			if r.notifier != nil {
				r.notifier.Alertf("event handling failed for user %s in community %s: %v",
					ev.ChatUserID, ev.CommunityID, err)
			}
		}
	}()
}

// Wait blocks until all in-flight event handlers finish.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

// handleMemberJoined welcomes a new member and, when a verified link exists,
// grants the community's authenticated role. Exactly one message is sent
// per event.
func (r *Reactor) handleMemberJoined(ctx context.Context, logger log.Logger, ev Event) error {
	cfg, err := r.links.CommunityConfig(ctx, ev.CommunityID)
	if err != nil {
		if errors.Is(err, linkerr.ErrConfigNotFound) {
			return nil
		}
		return err
	}
	if cfg.WelcomeChannel == "" {
		return nil
	}

	linked, err := r.links.Lookup(ctx, ev.ChatUserID)
	if err != nil && !errors.Is(err, linkerr.ErrLinkNotFound) {
		return err
	}

	variant := "welcome"
	vars := map[string]string{"mention": ev.Mention}

	if linked != nil {
		if cfg.RoleID != "" {
			// Role grant failure is logged and reported, never fatal: the
			// welcome message still goes out.
			if grantErr := r.platform.GrantRole(ctx, ev.CommunityID, ev.ChatUserID, cfg.RoleID); grantErr != nil {
				logger.Warn(ctx, "role grant failed", map[string]interface{}{
					"role_id": cfg.RoleID,
					"error":   grantErr.Error(),
				})
				if metrics.RoleGrantFailuresTotal != nil {
					metrics.RoleGrantFailuresTotal.Inc()
				}
			}
		}

		identity, resolveErr := r.resolver.Resolve(ctx, linked.WikiAccountID)
		if resolveErr != nil {
			logger.Warn(ctx, "identity resolution failed, degrading welcome", map[string]interface{}{
				"wiki_account_id": linked.WikiAccountID,
				"error":           resolveErr.Error(),
			})
			variant = "welcome_has_auth_failed"
		} else {
			variant = "welcome_has_auth"
			vars["name"] = identity.Name
			vars["user_link"] = identity.ProfileURL
		}
	}

	text, err := r.renderer.Render(variant, cfg.Locale, vars)
	if err != nil {
		return err
	}
	if err := r.platform.SendMessage(ctx, cfg.WelcomeChannel, text, welcomeReaction); err != nil {
		return err
	}

	if metrics.WelcomeEventsTotal != nil {
		metrics.WelcomeEventsTotal.WithLabelValues(variant).Inc()
	}
	logger.Debug(ctx, "welcome message sent", map[string]interface{}{"variant": variant})
	return nil
}
