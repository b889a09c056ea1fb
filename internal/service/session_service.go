package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"resume-builder-go/internal/storage"
	"resume-builder-go/internal/storage/models"
	"resume-builder-go/internal/tracing"
)

// SessionStore 会话的持久化
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	SessionByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteSessionByToken(ctx context.Context, token string) error
}

// SessionCache 会话查询缓存，未命中时返回错误
type SessionCache interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SetSession(ctx context.Context, s *models.Session) error
	DeleteSession(ctx context.Context, token string) error
}

var (
	_ SessionStore = (*storage.MySQL)(nil)
	_ SessionCache = (*storage.Redis)(nil)
)

// SessionView 新建会话的响应体
type SessionView struct {
	Email        string `json:"email"`
	SessionToken string `json:"session_token"`
	OpenAIKey    string `json:"openai_key"`
}

// SessionService 签发、校验与注销会话
type SessionService struct {
	store SessionStore
	cache SessionCache
}

// NewSessionService cache 可以为 nil
func NewSessionService(store SessionStore, cache SessionCache) *SessionService {
	return &SessionService{store: store, cache: cache}
}

// tokenURLSafe 生成 n 字节随机数的 URL 安全 base64 编码
func tokenURLSafe(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("生成随机令牌失败: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create 为邮箱签发新会话
func (s *SessionService) Create(ctx context.Context, email string) (*SessionView, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	token, err := tokenURLSafe(32)
	if err != nil {
		return nil, err
	}
	key, err := tokenURLSafe(32)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		Email:        email,
		SessionToken: token,
		OpenAIKey:    "sk-" + key,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, &OperationError{Op: "create_session", BaseErr: err}
	}

	zerolog.Ctx(ctx).Info().Str("email", tracing.MaskPII(email)).Msg("会话已创建")
	return &SessionView{Email: session.Email, SessionToken: session.SessionToken, OpenAIKey: session.OpenAIKey}, nil
}

// Authenticate 按令牌查找会话，先查缓存
func (s *SessionService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrSessionMissing
	}

	log := zerolog.Ctx(ctx)
	if s.cache != nil {
		cached, err := s.cache.GetSession(ctx, token)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			log.Warn().Err(err).Msg("读取会话缓存失败，回退到数据库")
		}
	}

	session, err := s.store.SessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, &OperationError{Op: "authenticate", BaseErr: err}
	}

	if s.cache != nil {
		if err := s.cache.SetSession(ctx, session); err != nil {
			log.Warn().Err(err).Msg("写入会话缓存失败")
		}
	}
	return session, nil
}

// Logout 删除会话，同时清除缓存
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidSession
	}
	if err := s.store.DeleteSessionByToken(ctx, token); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidSession
		}
		return &OperationError{Op: "logout", BaseErr: err}
	}
	if s.cache != nil {
		if err := s.cache.DeleteSession(ctx, token); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("清除会话缓存失败")
		}
	}
	return nil
}
