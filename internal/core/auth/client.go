package auth

import (
	"context"
	"sync"
)

type subscriber struct {
	id uint64
	fn Listener
}

// Client 绑定一个会话持有者（一个浏览器 / 一个 API 调用方）。
// 登录、登出、更新身份都会向本 Client 的订阅者发事件。
type Client struct {
	svc *Service

	mu     sync.Mutex
	token  string
	subs   []subscriber
	nextID uint64
}

func (s *Service) NewClient(token string) *Client {
	return &Client{svc: s, token: token}
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(t string) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

func (c *Client) OnAuthStateChange(fn Listener) *Subscription {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return &Subscription{cancel: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}}
}

func (c *Client) emit(ctx context.Context, ev Event, s *Session) {
	c.mu.Lock()
	subs := append([]subscriber(nil), c.subs...)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.fn(ctx, ev, s)
	}
}

func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	return c.svc.GetSession(ctx, c.Token())
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	sess, err := c.svc.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setToken(sess.AccessToken)
	c.emit(ctx, EventSignedIn, sess)
	return sess, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string, meta Metadata) (*User, *Session, error) {
	u, sess, err := c.svc.SignUp(ctx, email, password, meta)
	if err != nil {
		return u, nil, err
	}
	c.setToken(sess.AccessToken)
	c.emit(ctx, EventSignedIn, sess)
	return u, sess, nil
}

func (c *Client) SignInWithOAuth(provider, state string) (string, error) {
	return c.svc.AuthorizeURL(provider, state)
}

func (c *Client) ExchangeCodeForSession(ctx context.Context, provider, code string) (*Session, *ProviderUser, error) {
	sess, pu, err := c.svc.ExchangeCodeForSession(ctx, provider, code)
	if err != nil {
		return nil, nil, err
	}
	c.setToken(sess.AccessToken)
	c.emit(ctx, EventSignedIn, sess)
	return sess, pu, nil
}

// SignOut 本地 token 总会被清掉，远端吊销失败只体现在返回值
func (c *Client) SignOut(ctx context.Context) error {
	tok := c.Token()
	c.setToken("")
	err := c.svc.SignOut(ctx, tok)
	c.emit(ctx, EventSignedOut, nil)
	return err
}

func (c *Client) UpdateUser(ctx context.Context, meta Metadata) (*Session, error) {
	sess, err := c.svc.UpdateUser(ctx, c.Token(), meta)
	if err != nil {
		return nil, err
	}
	c.emit(ctx, EventUserUpdated, sess)
	return sess, nil
}

// DeleteUser 删除的是当前会话本人时，同时视为登出
func (c *Client) DeleteUser(ctx context.Context, uid string) error {
	cur, _ := c.GetSession(ctx)
	if err := c.svc.DeleteUser(ctx, uid); err != nil {
		return err
	}
	if cur != nil && cur.User.ID == uid {
		c.setToken("")
		c.emit(ctx, EventSignedOut, nil)
	}
	return nil
}
