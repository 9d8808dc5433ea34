package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/server"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
)

const (
	defaultLoginTimeout  = 5 * time.Minute
	callbackReadTimeout  = 10 * time.Second
	callbackWriteTimeout = 10 * time.Second
)

// AuthSet stores a refresh token for --platform and --user.
func (r *Runner) AuthSet(ctx context.Context, cmd *cli.Command) error {
	platform, err := accountPlatform(cmd.String("platform"))
	if err != nil {
		return err
	}

	stores, err := r.openStores(cmd)
	if err != nil {
		return err
	}

	user := userID(cmd)
	if err := stores.Tokens.SaveRefreshToken(ctx, user, platform, cmd.String("token")); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	r.logger.Info("refresh token stored", "platform", platform, "user", user)
	return r.writePlain("%s\n", formatter.Success(fmt.Sprintf("Stored %s refresh token for %s", platform.DisplayName(), user)))
}

// AuthLogin runs the authorization code flow: it serves the configured redirect URI locally, sends the
// user to the consent page and stores the refresh token from the exchange.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	platform, err := accountPlatform(cmd.String("platform"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	app := oauthApp(config, platform)
	if app.ClientID == "" || app.RedirectURI == "" {
		return fmt.Errorf("%w: %s client_id and redirect_uri must be configured", shared.ErrMissingCredentials, platform)
	}

	callback, err := callbackServerConfig(app.RedirectURI)
	if err != nil {
		return err
	}
	redirect, _ := url.Parse(app.RedirectURI)

	stores, err := r.openStores(cmd)
	if err != nil {
		return err
	}

	handler := server.NewOAuthHandler(services.OAuthConfig(platform, app), shared.GenerateID(), redirect.Path)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	srv := server.New(callback, router, r.logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(waitCtx) }()

	authURL := handler.AuthCodeURL()
	r.writePlain("Authorize %s by opening:\n\n  %s\n\n", platform.DisplayName(), authURL)
	if !cmd.Bool("no-browser") {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("could not open a browser, open the URL manually", "error", err)
		}
	}

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
		cancel()
		if err := <-errCh; err != nil {
			r.logger.Warn("callback server did not shut down cleanly", "error", err)
		}
	case err := <-errCh:
		if err == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: no callback received", shared.ErrTimeout)
		}
		if err == nil {
			err = waitCtx.Err()
		}
		return fmt.Errorf("callback server stopped: %w", err)
	}

	if result.Err != nil {
		return shared.NewAuthRequired(string(platform), result.Err)
	}

	user := userID(cmd)
	if err := stores.Tokens.SaveRefreshToken(ctx, user, platform, result.Token.RefreshToken); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	r.logger.Info("authorization complete", "platform", platform, "user", user)
	return r.writePlain("%s\n", formatter.Success(fmt.Sprintf("Authorized %s for %s", platform.DisplayName(), user)))
}

// accountPlatform parses a platform that has user accounts.
func accountPlatform(s string) (models.Platform, error) {
	platform, err := models.ParsePlatform(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	if platform.IsText() {
		return "", fmt.Errorf("%w: the text platform needs no authorization", shared.ErrInvalidArgument)
	}
	return platform, nil
}

func oauthApp(config *shared.Config, platform models.Platform) shared.OAuthAppConfig {
	if platform == models.PlatformYouTube {
		return config.Credentials.YouTube
	}
	return config.Credentials.Spotify
}

// callbackServerConfig derives the listen address for a loopback redirect URI like
// "http://127.0.0.1:8888/callback".
func callbackServerConfig(redirectURI string) (shared.ServerConfig, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return shared.ServerConfig{}, fmt.Errorf("%w: redirect_uri: %w", shared.ErrInvalidConfig, err)
	}

	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return shared.ServerConfig{}, fmt.Errorf("%w: redirect_uri needs an explicit port: %w", shared.ErrInvalidConfig, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return shared.ServerConfig{}, fmt.Errorf("%w: redirect_uri port %q", shared.ErrInvalidConfig, portStr)
	}

	return shared.ServerConfig{
		Host:         host,
		Port:         port,
		ReadTimeout:  callbackReadTimeout,
		WriteTimeout: callbackWriteTimeout,
	}, nil
}
