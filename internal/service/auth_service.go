package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/dig-ticket-service/internal/auth"
	"github.com/spec-kit/dig-ticket-service/internal/clock"
	"github.com/spec-kit/dig-ticket-service/internal/config"
	apperrors "github.com/spec-kit/dig-ticket-service/pkg/util/errorutil"
)

type client struct {
	secretHash string
	role       auth.Role
}

// AuthService issues bearer tokens to the configured API clients: the
// conversational intake agent and dashboard operators.
type AuthService struct {
	clients  map[string]client
	tokenMgr *auth.TokenManager
}

// IssuedToken is the result of a successful client login.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
	Role      auth.Role
}

// NewAuthService builds the service. Clients without a secret hash are not registered.
func NewAuthService(cfg config.AuthConfig, c clock.Clock) *AuthService {
	clients := make(map[string]client)
	if cfg.AgentSecretHash != "" {
		clients[cfg.AgentClientID] = client{secretHash: cfg.AgentSecretHash, role: auth.RoleAgent}
	}
	if cfg.OperatorSecretHash != "" {
		clients[cfg.OperatorClientID] = client{secretHash: cfg.OperatorSecretHash, role: auth.RoleOperator}
	}
	return &AuthService{
		clients:  clients,
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL(), c),
	}
}

// IssueToken verifies the client secret and returns a role-bearing token.
func (s *AuthService) IssueToken(_ context.Context, clientID, secret string) (*IssuedToken, error) {
	clientID = strings.TrimSpace(clientID)
	registered, ok := s.clients[clientID]
	if !ok {
		return nil, apperrors.NewUnauthorized("invalid client credentials")
	}
	if err := auth.CompareSecret(registered.secretHash, secret); err != nil {
		return nil, apperrors.NewUnauthorized("invalid client credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(clientID, registered.role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &IssuedToken{Token: token, ExpiresAt: exp, Role: registered.role}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
