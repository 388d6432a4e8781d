package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/anilink/internal/apperror"
	"github.com/sakif/anilink/internal/auth"
)

// CodeExchanger trades an OAuth authorization code for an access token.
// *auth.DiscordProvider implements it.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*auth.Token, error)
}

// AuthService proxies the Discord authorization-code exchange. It holds no
// session state: the code comes in, the access token goes out.
type AuthService struct {
	exchanger CodeExchanger
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(exchanger CodeExchanger, logger *slog.Logger) *AuthService {
	return &AuthService{
		exchanger: exchanger,
		logger:    logger,
	}
}

// ExchangeCode validates the code and forwards it to Discord.
// The code and the returned token are never logged.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*auth.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	token, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("discord token exchange failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	s.logger.Debug("discord token exchanged")
	return token, nil
}
