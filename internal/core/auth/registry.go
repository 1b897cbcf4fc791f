package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"gin-todo-lists/internal/core/cache"
)

// Registry 登记有效会话：sid → uid。JWT 只证明签发过，是否已登出以这里为准
type Registry interface {
	Put(ctx context.Context, sid, uid string, ttl time.Duration) error
	Lookup(ctx context.Context, sid string) (uid string, ok bool, err error)
	Revoke(ctx context.Context, sid string) error
	RevokeUser(ctx context.Context, uid string) error
}

type memEntry struct {
	uid string
	exp time.Time
}

type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]memEntry
	now      func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: map[string]memEntry{}, now: time.Now}
}

func (r *MemoryRegistry) Put(_ context.Context, sid, uid string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = memEntry{uid: uid, exp: r.now().Add(ttl)}
	return nil
}

func (r *MemoryRegistry) Lookup(_ context.Context, sid string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false, nil
	}
	if r.now().After(e.exp) {
		delete(r.sessions, sid)
		return "", false, nil
	}
	return e.uid, true, nil
}

func (r *MemoryRegistry) Revoke(_ context.Context, sid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	return nil
}

func (r *MemoryRegistry) RevokeUser(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, e := range r.sessions {
		if e.uid == uid {
			delete(r.sessions, sid)
		}
	}
	return nil
}

type redisSession struct {
	UID string `json:"uid"`
}

// RedisRegistry key: session:<sid>，另用 set user_sessions:<uid> 记录一个用户的全部 sid
type RedisRegistry struct {
	c *cache.Cache
}

func NewRedisRegistry(c *cache.Cache) *RedisRegistry { return &RedisRegistry{c: c} }

func (r *RedisRegistry) Put(ctx context.Context, sid, uid string, ttl time.Duration) error {
	if err := cache.SetJSON(r.c, ctx, "session:"+sid, redisSession{UID: uid}, ttl); err != nil {
		return err
	}
	userKey := r.c.Prefix + "user_sessions:" + uid
	pipe := r.c.RDB.TxPipeline()
	pipe.SAdd(ctx, userKey, sid)
	pipe.Expire(ctx, userKey, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisRegistry) Lookup(ctx context.Context, sid string) (string, bool, error) {
	s, err := cache.GetJSON[redisSession](r.c, ctx, "session:"+sid)
	if errors.Is(err, cache.ErrMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.UID, true, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, sid string) error {
	return r.c.Del(ctx, "session:"+sid)
}

func (r *RedisRegistry) RevokeUser(ctx context.Context, uid string) error {
	userKey := r.c.Prefix + "user_sessions:" + uid
	sids, err := r.c.RDB.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(sids))
	for _, sid := range sids {
		keys = append(keys, "session:"+sid)
	}
	if len(keys) > 0 {
		if err := r.c.Del(ctx, keys...); err != nil {
			return err
		}
	}
	return r.c.RDB.Del(ctx, userKey).Err()
}
