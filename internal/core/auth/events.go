package auth

import (
	"context"
	"sync"
)

type Event string

const (
	EventSignedIn    Event = "SIGNED_IN"
	EventSignedOut   Event = "SIGNED_OUT"
	EventUserUpdated Event = "USER_UPDATED"
)

// Listener 在触发事件的 goroutine 上同步调用；SIGNED_OUT 时 s 为 nil
type Listener func(ctx context.Context, ev Event, s *Session)

type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe 可重复调用
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}
