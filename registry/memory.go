package registry

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
)

// Memory implements domain.LinkRequestRegistry on a ttlcache. All state
// transitions run under one mutex, which is sufficient only when a single
// process serves both the command and callback paths; multi-process
// deployments use the redis implementation.
var _ domain.LinkRequestRegistry = (*Memory)(nil)

type Memory struct {
	mu     sync.Mutex
	ttl    time.Duration
	reqs   *ttlcache.Cache[string, *domain.AuthRequest]
	byUser map[string]string

	clock func() time.Time
}

// NewMemory creates an in-memory registry. Terminal rows linger for
// retention past the TTL so replayed callbacks still resolve to the
// idempotent already-completed answer.
func NewMemory(ttl, retention time.Duration) *Memory {
	reqs := ttlcache.New(
		ttlcache.WithTTL[string, *domain.AuthRequest](ttl+retention),
		ttlcache.WithDisableTouchOnHit[string, *domain.AuthRequest](),
	)
	go reqs.Start()

	return &Memory{
		ttl:    ttl,
		reqs:   reqs,
		byUser: make(map[string]string),
		clock:  time.Now,
	}
}

// Start implements domain.LinkRequestRegistry.Start with the
// refresh-and-reuse policy: a live pending request keeps its token and gets
// a fresh expiry.
func (m *Memory) Start(_ context.Context, chatUserID string) (*domain.AuthRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if token, ok := m.byUser[chatUserID]; ok {
		if item := m.reqs.Get(token); item != nil {
			req := item.Value()
			if req.State == domain.StatePending && !req.ExpiredBy(now, m.ttl) {
				req.CreatedAt = now
				m.reqs.Set(token, req, ttlcache.DefaultTTL)
				return copyOf(req), nil
			}
		}
		delete(m.byUser, chatUserID)
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	req := &domain.AuthRequest{
		Token:      token,
		ChatUserID: chatUserID,
		CreatedAt:  now,
		State:      domain.StatePending,
	}
	m.reqs.Set(token, req, ttlcache.DefaultTTL)
	m.byUser[chatUserID] = token
	return copyOf(req), nil
}

// Lookup implements domain.LinkRequestRegistry.Lookup with lazy expiry.
func (m *Memory) Lookup(_ context.Context, token string) (*domain.AuthRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.reqs.Get(token)
	if item == nil {
		return nil, linkerr.ErrTokenNotFound
	}
	out := copyOf(item.Value())
	if out.State == domain.StatePending && out.ExpiredBy(m.clock(), m.ttl) {
		out.State = domain.StateExpired
	}
	return out, nil
}

// Complete implements the single-use pending-to-completed transition.
func (m *Memory) Complete(_ context.Context, token string, wikiAccountID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.reqs.Get(token)
	if item == nil {
		return "", linkerr.ErrTokenNotFound
	}
	req := item.Value()
	switch {
	case req.State == domain.StateCompleted:
		return "", linkerr.ErrAlreadyCompleted
	case req.State == domain.StateCancelled:
		return "", linkerr.ErrTokenNotFound
	case req.State == domain.StateExpired || req.ExpiredBy(m.clock(), m.ttl):
		req.State = domain.StateExpired
		return "", linkerr.ErrTokenExpired
	}

	req.State = domain.StateCompleted
	req.WikiAccountID = wikiAccountID
	if m.byUser[req.ChatUserID] == token {
		delete(m.byUser, req.ChatUserID)
	}
	return req.ChatUserID, nil
}

// CancelFor cancels the chat user's pending request. Cancelling when no
// pending request exists is a no-op.
func (m *Memory) CancelFor(_ context.Context, chatUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.byUser[chatUserID]
	if !ok {
		return nil
	}
	delete(m.byUser, chatUserID)
	if item := m.reqs.Get(token); item != nil {
		req := item.Value()
		if req.State == domain.StatePending && !req.ExpiredBy(m.clock(), m.ttl) {
			req.State = domain.StateCancelled
		}
	}
	return nil
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() {
	m.reqs.Stop()
}

func copyOf(req *domain.AuthRequest) *domain.AuthRequest {
	out := *req
	return &out
}
