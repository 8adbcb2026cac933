package gitutil

import (
	"fmt"
	"net/url"
	"strings"
)

const redacted = "***"

// AuthenticatedURL embeds username and token into an HTTP(S) repository URL.
// Local paths are returned unchanged; other schemes are rejected.
func AuthenticatedURL(repoURL, username, token string) (string, error) {
	// Handle local paths directly. file:// is intentionally unsupported.
	if !strings.Contains(repoURL, "://") {
		return repoURL, nil
	}
	if !strings.HasPrefix(repoURL, "https://") && !strings.HasPrefix(repoURL, "http://") {
		return "", fmt.Errorf("invalid repository URL: %s", repoURL)
	}

	parsedURL, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse repository URL '%s': %w", repoURL, err)
	}
	if token != "" {
		parsedURL.User = url.UserPassword(username, token)
	}
	return parsedURL.String(), nil
}

// Redact replaces every occurrence of the given secrets in s.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, redacted)
		if escaped := url.QueryEscape(secret); escaped != secret {
			s = strings.ReplaceAll(s, escaped, redacted)
		}
	}
	return s
}
