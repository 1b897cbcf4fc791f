package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gin-todo-lists/pkg/utils"
)

const minPasswordLen = 6

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUserExists         = errors.New("user already registered")
	ErrWeakPassword       = fmt.Errorf("password should be at least %d characters", minPasswordLen)
	ErrInvalidEmail       = errors.New("unable to validate email address: invalid format")
	ErrProviderDisabled   = errors.New("unsupported provider: provider is not enabled")
	ErrNoSession          = errors.New("auth session missing")
	ErrInvalidCode        = errors.New("invalid authorization code")
	ErrEmailUnverified    = errors.New("provider email is not verified")
)

// Service 平台认证服务：身份存 SQL，会话为 JWT + Registry
type Service struct {
	db        *gorm.DB
	jwt       *JWTer
	reg       Registry
	providers map[string]Provider
	log       *zap.Logger
	validate  *validator.Validate
}

type Option func(*Service)

func WithProvider(p Provider) Option {
	return func(s *Service) { s.providers[p.Name()] = p }
}

func NewService(db *gorm.DB, j *JWTer, reg Registry, l *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:        db,
		jwt:       j,
		reg:       reg,
		providers: map[string]Provider{},
		log:       l.Named("auth"),
		validate:  validator.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) HasProvider(name string) bool {
	_, ok := s.providers[name]
	return ok
}

// TTL 会话有效期，cookie 的 Max-Age 跟它对齐
func (s *Service) TTL() time.Duration { return s.jwt.TTL }

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *Service) findByEmail(ctx context.Context, email string) (*IdentityModel, error) {
	var m IdentityModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) findByID(ctx context.Context, id string) (*IdentityModel, error) {
	var m IdentityModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) issue(ctx context.Context, m *IdentityModel) (*Session, error) {
	sid := utils.NewID()
	tok, exp, err := s.jwt.Issue(m.ID, sid)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if err := s.reg.Put(ctx, sid, m.ID, s.jwt.TTL); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	return &Session{AccessToken: tok, ExpiresAt: exp, User: *m.toUser()}, nil
}

func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	m, err := s.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if m == nil || !utils.CheckPassword(password, m.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, m)
}

// SignUp 创建身份并直接登录（不做邮箱确认）
func (s *Service) SignUp(ctx context.Context, email, password string, meta Metadata) (*User, *Session, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, nil, ErrWeakPassword
	}
	existing, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup identity: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrUserExists
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	m := &IdentityModel{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: hash,
		Provider:     ProviderEmail,
		Name:         meta.Name,
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		// 并发兜底：唯一冲突
		if isDupKey(err) {
			return nil, nil, ErrUserExists
		}
		return nil, nil, fmt.Errorf("create identity: %w", err)
	}
	s.log.Info("identity created", zap.String("uid", m.ID), zap.String("provider", m.Provider))
	sess, err := s.issue(ctx, m)
	if err != nil {
		return m.toUser(), nil, err
	}
	return m.toUser(), sess, nil
}

// DeleteUser 删除身份并吊销其所有会话
func (s *Service) DeleteUser(ctx context.Context, uid string) error {
	if err := s.reg.RevokeUser(ctx, uid); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if err := s.db.WithContext(ctx).Where("id = ?", uid).Delete(&IdentityModel{}).Error; err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	s.log.Info("identity deleted", zap.String("uid", uid))
	return nil
}

func (s *Service) AuthorizeURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrProviderDisabled
	}
	return p.AuthCodeURL(state), nil
}

// ExchangeCodeForSession 用授权码换会话；同 email 的已有身份直接复用。
// 只认提供方已验证的 email
func (s *Service) ExchangeCodeForSession(ctx context.Context, provider, code string) (*Session, *ProviderUser, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, nil, ErrProviderDisabled
	}
	if strings.TrimSpace(code) == "" {
		return nil, nil, ErrInvalidCode
	}
	pu, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	if !pu.EmailVerified {
		s.log.Warn("reject unverified provider email", zap.String("provider", provider), zap.String("sub", pu.Subject))
		return nil, nil, ErrEmailUnverified
	}
	email := normalizeEmail(pu.Email)
	m, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup identity: %w", err)
	}
	if m == nil {
		m = &IdentityModel{ID: utils.NewID(), Email: email, Provider: provider, Name: pu.Name}
		if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
			if !isDupKey(err) {
				return nil, nil, fmt.Errorf("create identity: %w", err)
			}
			if m, err = s.findByEmail(ctx, email); err != nil || m == nil {
				return nil, nil, fmt.Errorf("lookup identity after conflict: %w", err)
			}
		} else {
			s.log.Info("identity created", zap.String("uid", m.ID), zap.String("provider", provider))
		}
	}
	sess, err := s.issue(ctx, m)
	if err != nil {
		return nil, nil, err
	}
	return sess, pu, nil
}

// GetSession 无 token / 无效 / 已登出 → nil, nil；只有后端故障才返回 error
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	c, err := s.jwt.Parse(token)
	if err != nil {
		s.log.Debug("reject token", zap.Error(err))
		return nil, nil
	}
	uid, ok, err := s.reg.Lookup(ctx, c.SID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if !ok || uid != c.UID {
		return nil, nil
	}
	m, err := s.findByID(ctx, c.UID)
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if m == nil {
		return nil, nil
	}
	sess := &Session{AccessToken: token, User: *m.toUser()}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, nil
}

// SignOut 幂等
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	c, err := s.jwt.Parse(token)
	if err != nil {
		return nil
	}
	return s.reg.Revoke(ctx, c.SID)
}

func (s *Service) UpdateUser(ctx context.Context, token string, meta Metadata) (*Session, error) {
	sess, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	if err := s.db.WithContext(ctx).Model(&IdentityModel{}).
		Where("id = ?", sess.User.ID).
		Update("name", meta.Name).Error; err != nil {
		return nil, fmt.Errorf("update identity: %w", err)
	}
	sess.User.Name = meta.Name
	return sess, nil
}

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
