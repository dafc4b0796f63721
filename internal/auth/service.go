package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"NewsCrew/pkg/logger"
)

// Service 校验静态 Bearer Token 并解析出调用方。
type Service struct {
	mode   Mode
	tokens map[[sha256.Size]byte]*Subject
	audit  *slog.Logger
}

// NewService 构造身份认证服务实例。
func NewService(cfg Config) (*Service, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if mode == "" {
		mode = ModeDisabled
	}
	svc := &Service{
		mode:   mode,
		tokens: make(map[[sha256.Size]byte]*Subject, len(cfg.Tokens)),
		audit:  logger.Audit(),
	}

	switch mode {
	case ModeDisabled:
		return svc, nil
	case ModeToken:
	default:
		return nil, errors.New("unsupported auth mode: " + string(cfg.Mode))
	}

	for _, token := range cfg.Tokens {
		secret := strings.TrimSpace(token.Secret)
		if secret == "" {
			return nil, errors.New("token " + token.Name + " has an empty secret")
		}
		subject := &Subject{Name: token.Name, Permissions: append([]string(nil), token.Permissions...)}
		subject.normalise()
		svc.tokens[sha256.Sum256([]byte(secret))] = subject
	}
	if len(svc.tokens) == 0 {
		return nil, errors.New("token mode requires at least one token")
	}
	return svc, nil
}

// Mode 返回当前的认证模式。
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// AuthenticateRequest 解析 Authorization 头并返回对应的调用方。
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(authorization, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	digest := sha256.Sum256([]byte(strings.TrimSpace(token)))
	// 按摘要逐个做常量时间比较。
	for known, subject := range s.tokens {
		if subtle.ConstantTimeCompare(known[:], digest[:]) == 1 {
			return subject, nil
		}
	}
	return nil, ErrInvalidToken
}
