package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/desertthunder/spotskill/internal/repositories"
	"github.com/desertthunder/spotskill/internal/server"
	"github.com/desertthunder/spotskill/internal/services"
	"github.com/desertthunder/spotskill/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 5 * time.Minute

// Auth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local callback server, opens the browser for user authorization, and stores the exchanged
// token in the token cache under the configured user.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if r.config.Spotify.ClientID == "" || r.config.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set in %s", shared.ErrInvalidArgument, r.configPath)
	}

	svc, err := services.NewSpotifyService(r.config.Spotify)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.authorize(ctx, svc, !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	dbs, err := r.databases()
	if err != nil {
		return err
	}
	if err := repositories.NewTokenRepository(dbs.Tokens).Save(ctx, r.config.Spotify.User, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token stored for user %q in %s\n", r.config.Spotify.User, r.config.Database.Path)

	if err := r.authenticate(ctx, svc); err != nil {
		return err
	}
	if user, err := svc.UserProfile(ctx); err != nil {
		r.logger.Warn("token stored but profile lookup failed", "error", err)
	} else {
		r.writePlain("✓ Connected as %s (%s)\n", user.DisplayName, user.Product)
	}
	return nil
}

// authorize serves the callback until one result arrives, the flow times out, or ctx is cancelled.
func (r *Runner) authorize(ctx context.Context, svc *services.SpotifyService, openBrowser bool) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	handler := server.NewOAuthHandler(svc.OAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handler(handler)

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := server.New(callbackAddr(r.config), router, r.logger)
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(srvCtx) }()

	authURL := svc.GetAuthURL(state)
	r.writePlain("Authorize spotskill by visiting:\n%s\n", authURL)
	if openBrowser {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("could not open browser, open the URL above manually", "error", err)
		}
	}

	var (
		token  *oauth2.Token
		result error
	)
	select {
	case res := <-handler.Result():
		token, result = res.Token, res.Err
	case err := <-srvErr:
		return nil, fmt.Errorf("callback server stopped: %w", err)
	case <-time.After(authTimeout):
		result = fmt.Errorf("%w: no callback within %s", shared.ErrTimeout, authTimeout)
	case <-ctx.Done():
		result = ctx.Err()
	}

	cancel()
	if err := <-srvErr; err != nil {
		r.logger.Warn("callback server shutdown", "error", err)
	}
	return token, result
}

// callbackAddr listens where the redirect URI points, falling back to the server settings.
func callbackAddr(cfg *shared.Config) string {
	u, err := url.Parse(cfg.Spotify.RedirectURI)
	if err != nil || u.Host == "" {
		return cfg.Server.Addr()
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return net.JoinHostPort(u.Host, "80")
	}
	return u.Host
}
