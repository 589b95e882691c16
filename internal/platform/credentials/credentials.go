package credentials

import (
	"context"
	"log/slog"

	"github.com/SscSPs/general_ledger/internal/platform/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// NewTokenSource returns the credentials used for calls to the invoice services.
// A static token wins over client credentials. It returns nil when neither is configured,
// in which case calls go out unauthenticated.
func NewTokenSource(ctx context.Context, cfg *config.Config) oauth2.TokenSource {
	if cfg.ServiceStaticToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.ServiceStaticToken, TokenType: "Bearer"})
	}
	if cfg.ServiceClientID != "" && cfg.ServiceClientSecret != "" && cfg.ServiceTokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ServiceClientID,
			ClientSecret: cfg.ServiceClientSecret,
			TokenURL:     cfg.ServiceTokenURL,
			Scopes:       cfg.ServiceScopes,
		}
		// The token is cached and refreshed shortly before expiry.
		return cc.TokenSource(ctx)
	}
	slog.Warn("No service credentials configured; invoice service calls will be unauthenticated")
	return nil
}
