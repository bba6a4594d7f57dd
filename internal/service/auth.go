package service

import (
	"farmlokal/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// AuthService exposes the shared-credential coordinator over HTTP.
type AuthService struct {
	tokens *biz.TokenUsecase
	logger *log.Helper
}

// NewAuthService creates a new auth service.
func NewAuthService(tokens *biz.TokenUsecase, logger log.Logger) *AuthService {
	return &AuthService{
		tokens: tokens,
		logger: log.NewHelper(logger),
	}
}

type tokenReply struct {
	AccessToken string `json:"accessToken"`
}

type tokenStatusReply struct {
	Valid bool `json:"valid"`
}

// GetToken handles GET /auth/token. It returns the shared credential,
// triggering a coordinated fetch when none is cached.
func (s *AuthService) GetToken(ctx khttp.Context) error {
	token, err := s.tokens.GetAccessToken(ctx)
	if err != nil {
		return err
	}
	return ctx.Result(200, &tokenReply{AccessToken: token})
}

// RefreshToken handles POST /auth/refresh. It evicts the cached credential
// and fetches a fresh one.
func (s *AuthService) RefreshToken(ctx khttp.Context) error {
	token, err := s.tokens.RefreshToken(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("access token force-refreshed")
	return ctx.Result(200, &tokenReply{AccessToken: token})
}

// TokenStatus handles GET /auth/status. It reports whether a cached
// credential is present without forcing a fetch.
func (s *AuthService) TokenStatus(ctx khttp.Context) error {
	return ctx.Result(200, &tokenStatusReply{Valid: s.tokens.IsTokenValid(ctx)})
}
