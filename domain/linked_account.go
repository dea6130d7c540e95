package domain

import "time"

// LinkedAccount is the durable association between a chat user and a wiki
// account. There is at most one per chat user, globally across communities,
// and it is never overwritten once committed.
type LinkedAccount struct {
	ChatUserID    string    `json:"chat_user_id" bson:"chat_user_id"`
	WikiAccountID int64     `json:"wiki_account_id" bson:"wiki_account_id"`
	LinkedAt      time.Time `json:"linked_at" bson:"linked_at"`
}

// CommunityConfig is the per-community onboarding configuration. It is owned
// by operator tooling; the linking core only reads it.
type CommunityConfig struct {
	CommunityID    string `json:"community_id" bson:"community_id"`
	WelcomeChannel string `json:"welcome_channel" bson:"welcome_channel"`
	RoleID         string `json:"role_id" bson:"role_id"`
	Locale         string `json:"locale" bson:"locale"`
}

// WikiIdentity is the canonical account metadata returned by the wiki
// identity service.
type WikiIdentity struct {
	AccountID  int64  `json:"account_id"`
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url"`
}
