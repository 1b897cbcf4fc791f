package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gin-todo-lists/internal/core/auth"
	"gin-todo-lists/internal/domain"
	"gin-todo-lists/pkg/utils"
)

// AuthClient 平台认证客户端，auth.Client 实现
type AuthClient interface {
	Token() string
	GetSession(ctx context.Context) (*auth.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password string, meta auth.Metadata) (*auth.User, *auth.Session, error)
	SignInWithOAuth(provider, state string) (string, error)
	ExchangeCodeForSession(ctx context.Context, provider, code string) (*auth.Session, *auth.ProviderUser, error)
	SignOut(ctx context.Context) error
	UpdateUser(ctx context.Context, meta auth.Metadata) (*auth.Session, error)
	DeleteUser(ctx context.Context, uid string) error
	OnAuthStateChange(fn auth.Listener) *auth.Subscription
}

var _ AuthClient = (*auth.Client)(nil)

type Status int

const (
	StatusLoading Status = iota
	StatusAnonymous
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL,omitempty"`
}

// Result 会话操作的统一返回
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result                 { return Result{Success: true} }
func failed(msg string) Result   { return Result{Error: msg} }
func failedErr(err error) Result { return Result{Error: err.Error()} }

// ProfileUpdate nil 字段不变
type ProfileUpdate struct {
	Name     *string `json:"name"`
	PhotoURL *string `json:"photoURL"`
}

type ManagerOpts struct {
	// 注册时 profile 写入失败，删除刚创建的身份
	RollbackOnProfileFailure bool
}

// Manager 当前会话持有者"是谁"的唯一来源。
// Start 订阅会话变化并完成首次推导；首次推导完成前 Status 为 loading。
type Manager struct {
	client   AuthClient
	profiles domain.ProfileRepository
	log      *zap.Logger
	opts     ManagerOpts

	mu      sync.Mutex
	status  Status
	user    *Identity
	sub     *auth.Subscription
	watchID uint64
	watches map[uint64]func(*Identity)
}

func NewManager(client AuthClient, profiles domain.ProfileRepository, l *zap.Logger, opts ManagerOpts) *Manager {
	return &Manager{
		client:   client,
		profiles: profiles,
		log:      l.Named("session"),
		opts:     opts,
		watches:  map[uint64]func(*Identity){},
	}
}

// Start 返回首次会话查询的后端错误：此时身份按未登录处理，但 token 未必失效
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.sub != nil {
		m.mu.Unlock()
		return nil
	}
	m.sub = m.client.OnAuthStateChange(func(ctx context.Context, ev auth.Event, s *auth.Session) {
		m.log.Debug("auth state change", zap.String("event", string(ev)))
		m.apply(m.derive(ctx, s))
	})
	m.mu.Unlock()

	sess, err := m.client.GetSession(ctx)
	if err != nil {
		m.log.Error("initial session fetch failed", zap.Error(err))
	}
	m.apply(m.derive(ctx, sess))
	return err
}

// Stop 取消订阅；之后可再次 Start
func (m *Manager) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	sub.Unsubscribe()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// User 未登录返回 nil；返回副本
func (m *Manager) User() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) Token() string { return m.client.Token() }

// Subscribe 身份变化时回调，返回取消函数
func (m *Manager) Subscribe(fn func(*Identity)) func() {
	m.mu.Lock()
	m.watchID++
	id := m.watchID
	m.watches[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.watches, id)
		m.mu.Unlock()
	}
}

// derive 会话 + profile → Identity；profile 缺失时用 email 本地部分作名字
func (m *Manager) derive(ctx context.Context, s *auth.Session) *Identity {
	if s == nil {
		return nil
	}
	id := &Identity{ID: s.User.ID, Email: s.User.Email}
	p, err := m.profiles.FindByID(ctx, s.User.ID)
	if err != nil {
		m.log.Warn("profile lookup failed", zap.String("uid", s.User.ID), zap.Error(err))
	}
	if p != nil {
		id.Name = p.Name
		id.PhotoURL = p.AvatarURL
	}
	if id.Name == "" {
		id.Name = utils.EmailLocalPart(s.User.Email)
	}
	if id.Name == "" {
		id.Name = "User"
	}
	return id
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// apply 身份没变（如重复登出）时不通知订阅者
func (m *Manager) apply(u *Identity) {
	m.mu.Lock()
	if m.status != StatusLoading && sameIdentity(m.user, u) {
		m.mu.Unlock()
		return
	}
	m.user = u
	if u == nil {
		m.status = StatusAnonymous
	} else {
		m.status = StatusAuthenticated
	}
	watches := make([]func(*Identity), 0, len(m.watches))
	for _, fn := range m.watches {
		watches = append(watches, fn)
	}
	m.mu.Unlock()
	for _, fn := range watches {
		if u == nil {
			fn(nil)
			continue
		}
		cp := *u
		fn(&cp)
	}
}

func (m *Manager) refresh(ctx context.Context) {
	sess, err := m.client.GetSession(ctx)
	if err != nil {
		m.log.Warn("session refresh failed", zap.Error(err))
		return
	}
	m.apply(m.derive(ctx, sess))
}

func (m *Manager) Login(ctx context.Context, email, password string) Result {
	if strings.TrimSpace(email) == "" || password == "" {
		return failed("email and password are required")
	}
	if _, err := m.client.SignInWithPassword(ctx, email, password); err != nil {
		m.log.Info("login rejected", zap.Error(err))
		return failedErr(err)
	}
	return ok()
}

func (m *Manager) Register(ctx context.Context, email, password, name string) Result {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return failed("email and password are required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = utils.EmailLocalPart(email)
	}
	u, _, err := m.client.SignUp(ctx, email, password, auth.Metadata{Name: name})
	if err != nil {
		m.log.Info("registration rejected", zap.Error(err))
		return failedErr(err)
	}
	if u == nil {
		return ok()
	}
	if err := m.profiles.Create(ctx, &domain.Profile{ID: u.ID, Name: name, Email: u.Email}); err != nil {
		m.log.Error("registration partially failed: identity created, profile insert failed",
			zap.String("uid", u.ID), zap.Bool("rollback", m.opts.RollbackOnProfileFailure), zap.Error(err))
		if m.opts.RollbackOnProfileFailure {
			if rerr := m.client.DeleteUser(ctx, u.ID); rerr != nil {
				m.log.Error("registration rollback failed", zap.String("uid", u.ID), zap.Error(rerr))
			}
		}
		return failedErr(err)
	}
	// SIGNED_IN 时 profile 还没写入，重新推导一次拿到名字
	m.refresh(ctx)
	return ok()
}

type FederatedStart struct {
	URL   string
	State string
}

// FederatedLogin 只产出跳转地址，真正的登录在回调里完成
func (m *Manager) FederatedLogin(_ context.Context, provider string) (FederatedStart, Result) {
	state := utils.NewID()
	u, err := m.client.SignInWithOAuth(provider, state)
	if err != nil {
		m.log.Error("federated login start failed", zap.String("provider", provider), zap.Error(err))
		return FederatedStart{}, failedErr(err)
	}
	return FederatedStart{URL: u, State: state}, ok()
}

// CompleteFederatedLogin 回调用；首次登录的身份会补建 profile
func (m *Manager) CompleteFederatedLogin(ctx context.Context, provider, code string) Result {
	sess, pu, err := m.client.ExchangeCodeForSession(ctx, provider, code)
	if err != nil {
		m.log.Error("code exchange failed", zap.String("provider", provider), zap.Error(err))
		return failedErr(err)
	}
	p, err := m.profiles.FindByID(ctx, sess.User.ID)
	if err != nil {
		m.log.Warn("profile lookup failed", zap.String("uid", sess.User.ID), zap.Error(err))
		return ok()
	}
	if p == nil {
		name := sess.User.Name
		if name == "" {
			name = utils.EmailLocalPart(sess.User.Email)
		}
		np := &domain.Profile{ID: sess.User.ID, Name: name, Email: sess.User.Email}
		if pu != nil {
			np.AvatarURL = pu.Picture
		}
		if err := m.profiles.Create(ctx, np); err != nil {
			m.log.Warn("federated profile insert failed", zap.String("uid", sess.User.ID), zap.Error(err))
			return ok()
		}
		m.refresh(ctx)
	}
	return ok()
}

// Logout 无条件清空本地身份，可重复调用
func (m *Manager) Logout(ctx context.Context) {
	if err := m.client.SignOut(ctx); err != nil {
		m.log.Warn("remote sign out failed", zap.Error(err))
	}
	m.apply(nil)
}

func (m *Manager) UpdateProfile(ctx context.Context, in ProfileUpdate) Result {
	cur := m.User()
	if cur == nil {
		return failed("not authenticated")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return failed("name is required")
	}
	if in.Name != nil {
		if _, err := m.client.UpdateUser(ctx, auth.Metadata{Name: *in.Name}); err != nil {
			m.log.Warn("identity metadata update failed", zap.String("uid", cur.ID), zap.Error(err))
			return failedErr(err)
		}
	}
	err := m.profiles.Update(ctx, cur.ID, domain.ProfileUpdate{Name: in.Name, AvatarURL: in.PhotoURL})
	if errors.Is(err, domain.ErrNotFound) {
		// 注册时 profile 没写成功的老账号，这里补建
		p := &domain.Profile{ID: cur.ID, Name: cur.Name, Email: cur.Email, AvatarURL: cur.PhotoURL}
		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.PhotoURL != nil {
			p.AvatarURL = *in.PhotoURL
		}
		err = m.profiles.Create(ctx, p)
	}
	if err != nil {
		m.log.Warn("profile update failed", zap.String("uid", cur.ID), zap.Error(err))
		return failedErr(err)
	}

	m.mu.Lock()
	if m.user == nil || m.user.ID != cur.ID {
		m.mu.Unlock()
		return ok()
	}
	next := *m.user
	m.mu.Unlock()
	if in.Name != nil {
		next.Name = *in.Name
	}
	if in.PhotoURL != nil {
		next.PhotoURL = *in.PhotoURL
	}
	m.apply(&next)
	return ok()
}
