package domain

import "time"

// RequestState is the lifecycle state of a pending link request.
type RequestState string

const (
	StatePending   RequestState = "pending"
	StateCompleted RequestState = "completed"
	StateExpired   RequestState = "expired"
	StateCancelled RequestState = "cancelled"
)

// AuthRequest is a pending (or terminal) account-link attempt, keyed by an
// unguessable one-time token. Expiry is computed lazily from CreatedAt; the
// stored state may still read "pending" after the TTL has passed.
type AuthRequest struct {
	Token         string       `json:"token" bson:"token"`
	ChatUserID    string       `json:"chat_user_id" bson:"chat_user_id"`
	WikiAccountID int64        `json:"wiki_account_id,omitempty" bson:"wiki_account_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at" bson:"created_at"`
	State         RequestState `json:"state" bson:"state"`
}

// ExpiredBy reports whether the request's TTL had elapsed at the given time.
func (r *AuthRequest) ExpiredBy(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.CreatedAt) > ttl
}
