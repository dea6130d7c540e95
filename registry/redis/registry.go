// Package redis implements the link-request registry on Redis. The two
// cross-process races the spec cares about — one pending request per user,
// single-use token consumption — are resolved by Lua scripts, never by
// in-process locking.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wikilink-dev/wikilinkd/domain"
	linkerr "github.com/wikilink-dev/wikilinkd/errors"
	"github.com/wikilink-dev/wikilinkd/registry"
)

// startScript refreshes a live pending request (reusing its token) or
// records the caller-supplied candidate token as a new pending request.
// KEYS[1] = user index key, KEYS[2] = candidate request key.
// ARGV: now_ms, ttl_ms, retention_ms, candidate token, chat user id, prefix.
var startScript = redis.NewScript(`
local tok = redis.call('GET', KEYS[1])
if tok then
  local tkey = ARGV[6] .. ':req:' .. tok
  local st = redis.call('HMGET', tkey, 'state', 'created_at')
  if st[1] == 'pending' and (tonumber(ARGV[1]) - tonumber(st[2])) <= tonumber(ARGV[2]) then
    redis.call('HSET', tkey, 'created_at', ARGV[1])
    redis.call('PEXPIRE', tkey, ARGV[2] + ARGV[3])
    redis.call('SET', KEYS[1], tok, 'PX', ARGV[2] + ARGV[3])
    return tok
  end
end
redis.call('HSET', KEYS[2], 'chat_user_id', ARGV[5], 'created_at', ARGV[1], 'state', 'pending')
redis.call('PEXPIRE', KEYS[2], ARGV[2] + ARGV[3])
redis.call('SET', KEYS[1], ARGV[4], 'PX', ARGV[2] + ARGV[3])
return ARGV[4]
`)

// completeScript is the compare-and-set on token state. Exactly one caller
// observes 'ok' for a given token; the reply carries the chat user id.
// KEYS[1] = request key. ARGV: now_ms, ttl_ms, wiki account id.
var completeScript = redis.NewScript(`
local req = redis.call('HMGET', KEYS[1], 'state', 'created_at', 'chat_user_id')
if not req[1] then return {'notfound', ''} end
if req[1] == 'completed' then return {'already', ''} end
if req[1] == 'cancelled' then return {'notfound', ''} end
if req[1] == 'expired' or (tonumber(ARGV[1]) - tonumber(req[2])) > tonumber(ARGV[2]) then
  redis.call('HSET', KEYS[1], 'state', 'expired')
  return {'expired', ''}
end
redis.call('HSET', KEYS[1], 'state', 'completed', 'wiki_account_id', ARGV[3])
return {'ok', req[3]}
`)

// cancelScript cancels the user's pending request and drops the user index.
// KEYS[1] = user index key. ARGV: now_ms, prefix, ttl_ms.
var cancelScript = redis.NewScript(`
local tok = redis.call('GET', KEYS[1])
if not tok then return 'none' end
local tkey = ARGV[2] .. ':req:' .. tok
local st = redis.call('HMGET', tkey, 'state', 'created_at')
if st[1] == 'pending' and (tonumber(ARGV[1]) - tonumber(st[2])) <= tonumber(ARGV[3]) then
  redis.call('HSET', tkey, 'state', 'cancelled')
end
redis.call('DEL', KEYS[1])
return 'ok'
`)

var _ domain.LinkRequestRegistry = (*Registry)(nil)

// Registry implements domain.LinkRequestRegistry on a shared Redis instance.
type Registry struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	retention time.Duration

	clock func() time.Time
}

// NewRegistry creates a registry with the given key prefix. retention keeps
// terminal rows around past the TTL so replayed callbacks resolve to the
// idempotent answer instead of NotFound.
func NewRegistry(client *redis.Client, prefix string, ttl, retention time.Duration) *Registry {
	return &Registry{
		client:    client,
		prefix:    prefix,
		ttl:       ttl,
		retention: retention,
		clock:     time.Now,
	}
}

func (r *Registry) reqKey(token string) string {
	return fmt.Sprintf("%s:req:%s", r.prefix, token)
}

func (r *Registry) userKey(chatUserID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, chatUserID)
}

// Start implements domain.LinkRequestRegistry.Start (refresh-and-reuse).
func (r *Registry) Start(ctx context.Context, chatUserID string) (*domain.AuthRequest, error) {
	candidate, err := registry.NewToken()
	if err != nil {
		return nil, err
	}

	now := r.clock()
	res, err := startScript.Run(ctx, r.client,
		[]string{r.userKey(chatUserID), r.reqKey(candidate)},
		now.UnixMilli(), r.ttl.Milliseconds(), r.retention.Milliseconds(),
		candidate, chatUserID, r.prefix,
	).Text()
	if err != nil {
		return nil, linkerr.NewStorageError("registry start", err)
	}

	return &domain.AuthRequest{
		Token:      res,
		ChatUserID: chatUserID,
		CreatedAt:  now,
		State:      domain.StatePending,
	}, nil
}

// Lookup implements domain.LinkRequestRegistry.Lookup with lazy expiry: a
// stored pending row past its TTL reads back as expired regardless of what
// Redis still holds.
func (r *Registry) Lookup(ctx context.Context, token string) (*domain.AuthRequest, error) {
	res, err := r.client.HGetAll(ctx, r.reqKey(token)).Result()
	if err != nil {
		return nil, linkerr.NewStorageError("registry lookup", err)
	}
	if len(res) == 0 {
		return nil, linkerr.ErrTokenNotFound
	}

	createdMs, err := strconv.ParseInt(res["created_at"], 10, 64)
	if err != nil {
		return nil, linkerr.NewStorageError("registry lookup", fmt.Errorf("bad created_at %q: %w", res["created_at"], err))
	}

	req := &domain.AuthRequest{
		Token:      token,
		ChatUserID: res["chat_user_id"],
		CreatedAt:  time.UnixMilli(createdMs),
		State:      domain.RequestState(res["state"]),
	}
	if wiki, ok := res["wiki_account_id"]; ok && wiki != "" {
		if id, perr := strconv.ParseInt(wiki, 10, 64); perr == nil {
			req.WikiAccountID = id
		}
	}
	if req.State == domain.StatePending && req.ExpiredBy(r.clock(), r.ttl) {
		req.State = domain.StateExpired
	}
	return req, nil
}

// Complete implements the atomic check-and-set consumption of a token.
func (r *Registry) Complete(ctx context.Context, token string, wikiAccountID int64) (string, error) {
	res, err := completeScript.Run(ctx, r.client,
		[]string{r.reqKey(token)},
		r.clock().UnixMilli(), r.ttl.Milliseconds(),
		strconv.FormatInt(wikiAccountID, 10),
	).Slice()
	if err != nil {
		return "", linkerr.NewStorageError("registry complete", err)
	}
	if len(res) != 2 {
		return "", linkerr.NewStorageError("registry complete", fmt.Errorf("unexpected script reply %v", res))
	}

	status, _ := res[0].(string)
	switch status {
	case "ok":
		chatUserID, _ := res[1].(string)
		return chatUserID, nil
	case "already":
		return "", linkerr.ErrAlreadyCompleted
	case "expired":
		return "", linkerr.ErrTokenExpired
	default:
		return "", linkerr.ErrTokenNotFound
	}
}

// CancelFor cancels the chat user's pending request, if any.
func (r *Registry) CancelFor(ctx context.Context, chatUserID string) error {
	err := cancelScript.Run(ctx, r.client,
		[]string{r.userKey(chatUserID)},
		r.clock().UnixMilli(), r.prefix, r.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return linkerr.NewStorageError("registry cancel", err)
	}
	return nil
}
