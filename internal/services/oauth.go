package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/crossfade/internal/metrics"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

const (
	// tokenExpirySkew refreshes access tokens slightly before the platform would reject them.
	tokenExpirySkew = time.Minute
	// defaultTokenTTL applies when the token endpoint omits expires_in.
	defaultTokenTTL = 55 * time.Minute
	refreshTimeout  = 15 * time.Second
)

// RefreshTokenStore reads and writes stored refresh tokens.
type RefreshTokenStore interface {
	RefreshToken(ctx context.Context, userID string, platform models.Platform) (string, error)
	SaveRefreshToken(ctx context.Context, userID string, platform models.Platform, token string) error
}

// OAuthTokenProvider is the per-platform access token cache.
//
// Access tokens are cached per user until shortly before they expire. On a miss the stored refresh token
// is exchanged; concurrent misses for the same user share one refresh. A missing or rejected refresh
// token yields [shared.AuthRequiredError] and is never retried.
type OAuthTokenProvider struct {
	platform models.Platform
	config   *oauth2.Config
	store    RefreshTokenStore
	tokens   *cache.Cache
	group    singleflight.Group
	http     *http.Client
	logger   *log.Logger
}

var _ TokenProvider = (*OAuthTokenProvider)(nil)

var oauthScopes = map[models.Platform][]string{
	models.PlatformSpotify: {"playlist-read-private", "playlist-modify-public", "playlist-modify-private"},
	models.PlatformYouTube: {"https://www.googleapis.com/auth/youtube"},
}

// OAuthConfig builds the OAuth client for platform. An empty TokenURL in app falls back to the
// platform's public token endpoint.
func OAuthConfig(platform models.Platform, app shared.OAuthAppConfig) *oauth2.Config {
	endpoint := oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL}
	if platform == models.PlatformYouTube {
		endpoint = oauth2.Endpoint{AuthURL: youtubeAuthURL, TokenURL: youtubeTokenURL}
	}
	if app.TokenURL != "" {
		endpoint.TokenURL = app.TokenURL
	}

	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		RedirectURL:  app.RedirectURI,
		Endpoint:     endpoint,
		Scopes:       oauthScopes[platform],
	}
}

// NewOAuthTokenProvider creates a new OAuthTokenProvider for platform.
func NewOAuthTokenProvider(platform models.Platform, app shared.OAuthAppConfig, store RefreshTokenStore, httpClient *http.Client, logger *log.Logger) *OAuthTokenProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &OAuthTokenProvider{
		platform: platform,
		config:   OAuthConfig(platform, app),
		store:    store,
		tokens:   cache.New(defaultTokenTTL, 10*time.Minute),
		http:     httpClient,
		logger:   shared.WithLogger(logger, "tokens", string(platform)),
	}
}

// AccessToken returns a cached access token for userID or refreshes one.
func (p *OAuthTokenProvider) AccessToken(ctx context.Context, userID string) (string, error) {
	if tok, ok := p.tokens.Get(userID); ok {
		return tok.(string), nil
	}

	v, err, joined := p.group.Do(userID, func() (any, error) {
		if tok, ok := p.tokens.Get(userID); ok {
			return tok.(string), nil
		}
		return p.refresh(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	if joined {
		p.logger.Debug("shared in-flight token refresh", "user", userID)
	}
	return v.(string), nil
}

// Invalidate drops the cached access token, forcing the next call to refresh.
func (p *OAuthTokenProvider) Invalidate(userID string) {
	p.tokens.Delete(userID)
}

func (p *OAuthTokenProvider) refresh(ctx context.Context, userID string) (string, error) {
	stored, err := p.store.RefreshToken(ctx, userID, p.platform)
	if errors.Is(err, shared.ErrNoRefreshToken) {
		metrics.TokenRefreshes.WithLabelValues(string(p.platform), "missing").Inc()
		return "", shared.NewAuthRequired(string(p.platform), err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	// The refresh is shared by every waiter, so it must not die with the first caller's context.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()
	rctx = context.WithValue(rctx, oauth2.HTTPClient, p.http)

	tok, err := p.config.TokenSource(rctx, &oauth2.Token{RefreshToken: stored}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
			metrics.TokenRefreshes.WithLabelValues(string(p.platform), "rejected").Inc()
			p.logger.Warn("refresh token rejected", "user", userID, "error", err)
			return "", shared.NewAuthRequired(string(p.platform), err)
		}
		metrics.TokenRefreshes.WithLabelValues(string(p.platform), "error").Inc()
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	metrics.TokenRefreshes.WithLabelValues(string(p.platform), "ok").Inc()

	if tok.RefreshToken != "" && tok.RefreshToken != stored {
		if err := p.store.SaveRefreshToken(ctx, userID, p.platform, tok.RefreshToken); err != nil {
			p.logger.Error("failed to save rotated refresh token", "user", userID, "error", err)
		}
	}

	ttl := defaultTokenTTL
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry) - tokenExpirySkew
	}
	if ttl > 0 {
		p.tokens.Set(userID, tok.AccessToken, ttl)
	}
	return tok.AccessToken, nil
}
