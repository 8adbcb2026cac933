package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"
	"github.com/gregjones/httpcache"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"

	"github.com/sevigo/hub2lab/internal/config"
)

const (
	credentialCacheSize = 256
	// refreshMargin is how long before expiry a cached token is replaced.
	refreshMargin = 5 * time.Minute
)

// Credential is an installation access token together with its expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// ValidAt reports whether the credential can still be used at t.
func (c Credential) ValidAt(t time.Time) bool {
	return c.Token != "" && t.Add(refreshMargin).Before(c.ExpiresAt)
}

// CredentialProvider issues installation scoped credentials and clients.
type CredentialProvider interface {
	Credential(ctx context.Context, installationID int64) (Credential, error)
	ForInstallation(ctx context.Context, installationID int64) (Client, error)
}

// AppCredentials exchanges the GitHub App JWT for installation tokens and
// caches them until shortly before they expire.
type AppCredentials struct {
	apps    *github.Client
	baseURL string
	cache   *expirable.LRU[int64, Credential]
	logger  *slog.Logger
	now     func() time.Time
}

// NewAppCredentials builds an AppCredentials for the configured GitHub App.
func NewAppCredentials(cfg config.GitHubConfig, privateKey []byte, logger *slog.Logger) (*AppCredentials, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// We use the apps transport to interact with the GitHub App API (e.g. to get installation tokens)
	appTransport, err := ghinstallation.NewAppsTransport(httpcache.NewMemoryCacheTransport(), cfg.AppID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}
	apps := github.NewClient(&http.Client{Transport: appTransport})
	if cfg.BaseURL != "" {
		if apps, err = apps.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid github.base_url %q: %w", cfg.BaseURL, err)
		}
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 50 * time.Minute
	}
	return &AppCredentials{
		apps:    apps,
		baseURL: cfg.BaseURL,
		cache:   expirable.NewLRU[int64, Credential](credentialCacheSize, nil, ttl),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Credential returns a token for installationID, reusing a cached one while it
// is valid.
func (a *AppCredentials) Credential(ctx context.Context, installationID int64) (Credential, error) {
	if cred, ok := a.cache.Get(installationID); ok && cred.ValidAt(a.now()) {
		return cred, nil
	}

	token, resp, err := a.apps.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return Credential{}, wrap(fmt.Sprintf("create installation token for %d", installationID), resp, err)
	}
	if token.GetToken() == "" {
		return Credential{}, fmt.Errorf("received an empty installation token for installation %d", installationID)
	}
	cred := Credential{Token: token.GetToken(), ExpiresAt: token.GetExpiresAt().Time}
	a.cache.Add(installationID, cred)
	a.logger.Info("issued installation token", "installation_id", installationID, "expires_at", cred.ExpiresAt)
	return cred, nil
}

// ForInstallation returns a Client authenticated as the installation.
func (a *AppCredentials) ForInstallation(ctx context.Context, installationID int64) (Client, error) {
	cred, err := a.Credential(ctx, installationID)
	if err != nil {
		return nil, err
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.Token, Expiry: cred.ExpiresAt})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if a.baseURL != "" {
		if client, err = client.WithEnterpriseURLs(a.baseURL, a.baseURL); err != nil {
			return nil, err
		}
	}
	return NewGitHubClient(client, a.logger.With("installation_id", installationID)), nil
}
