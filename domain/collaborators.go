package domain

import "context"

// IdentityProvider is the external wiki verification service. Exchange is a
// single-attempt opaque call: a failure means the user retries the flow.
type IdentityProvider interface {
	// ConsentURL builds the provider consent page URL carrying the token.
	ConsentURL(token string) string

	// Exchange trades a proof code from the consent redirect for the
	// verified wiki account id.
	Exchange(ctx context.Context, code string) (int64, error)
}

// IdentityResolver fetches canonical account metadata. It is a non-fatal
// dependency: callers fall back to degraded output on failure instead of
// aborting the surrounding workflow.
type IdentityResolver interface {
	Resolve(ctx context.Context, wikiAccountID int64) (*WikiIdentity, error)
}

// ChatPlatform is the chat-side collaborator used by the event reactor.
type ChatPlatform interface {
	GrantRole(ctx context.Context, communityID, chatUserID, roleID string) error
	SendMessage(ctx context.Context, channelID, text string, reactions []string) error
}

// Renderer renders a named message template in the community's locale.
// Template storage and locale fallback live outside the linking core.
type Renderer interface {
	Render(name, locale string, vars map[string]string) (string, error)
}

// AlertNotifier delivers operational alerts to an external channel.
// Delivery is best effort; implementations must never block event handling
// on a slow alert sink.
type AlertNotifier interface {
	Alertf(format string, args ...any)
}
