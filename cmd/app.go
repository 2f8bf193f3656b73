package cmd

import (
	"errors"
	"fmt"

	"pathways/internal/config"
	"pathways/internal/content"
	"pathways/internal/httpclient"
	"pathways/internal/identity"
	"pathways/internal/session"
	"pathways/internal/storage"
	"pathways/internal/token"
)

// errNotLoggedIn signals commands that need a session when none exists.
var errNotLoggedIn = errors.New("not logged in (run 'pathways login')")

// app holds the wired-up components commands operate on.
type app struct {
	cfg        config.Config
	store      *storage.FileStore
	tokens     *token.Store
	manager    *session.Manager
	aggregator *content.Aggregator
}

// buildApp constructs the component graph from the loaded configuration.
func buildApp() (*app, error) {
	store, err := storage.NewFileStore(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	tokens := token.NewStore(store, cfg.Storage.TokenKey)
	nonces := identity.NewNonceStore(store, cfg.Storage.NonceKey)

	gateway := identity.NewGateway(cfg.Auth, tokens, nonces,
		identity.WithAuthURLHandler(func(url string) {
			fmt.Printf("Opening your browser to sign in. If it does not open, visit:\n  %s\n", url)
		}),
	)

	manager := session.NewManager(cfg.Auth, gateway, tokens,
		session.WithTokenWatchPath(store.Path(cfg.Storage.TokenKey)),
	)

	client := httpclient.New(
		httpclient.WithTokenSource(tokens),
		httpclient.WithCredentialMode(cfg.Auth.CredentialMode, cfg.Auth.CookieName),
		httpclient.WithRetries(cfg.Backend.Retries),
		httpclient.WithAuthFailureHandler(manager.Refresh),
	)

	aggregator := content.NewAggregator(cfg.Backend, cfg.Content, client)

	return &app{
		cfg:        cfg,
		store:      store,
		tokens:     tokens,
		manager:    manager,
		aggregator: aggregator,
	}, nil
}
