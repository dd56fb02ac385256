package config

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// OAuthProvider describes one OpenID Connect identity provider used for
// staff sign-in.
type OAuthProvider struct {
	Name     string
	Issuers  []string // accepted "iss" values; empty skips the check
	OAuth2   *oauth2.Config
	Verifies bool // ID token signature is verified against the provider's keys
}

// LoadOAuthProviders returns the providers that have a client id and secret
// configured, keyed by name ("google", "microsoft").
func LoadOAuthProviders() map[string]OAuthProvider {
	v := env()
	v.SetDefault("MICROSOFT_TENANT", "common")
	out := map[string]OAuthProvider{}

	if id, secret := v.GetString("GOOGLE_CLIENT_ID"), v.GetString("GOOGLE_CLIENT_SECRET"); id != "" && secret != "" {
		out["google"] = OAuthProvider{
			Name:    "google",
			Issuers: []string{"https://accounts.google.com", "accounts.google.com"},
			OAuth2: &oauth2.Config{
				ClientID:     id,
				ClientSecret: secret,
				RedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			Verifies: true,
		}
	}
	if id, secret := v.GetString("MICROSOFT_CLIENT_ID"), v.GetString("MICROSOFT_CLIENT_SECRET"); id != "" && secret != "" {
		out["microsoft"] = OAuthProvider{
			Name: "microsoft",
			// the issuer embeds the tenant id, which varies for the "common" tenant
			OAuth2: &oauth2.Config{
				ClientID:     id,
				ClientSecret: secret,
				RedirectURL:  v.GetString("MICROSOFT_REDIRECT_URL"),
				Endpoint:     microsoft.AzureADEndpoint(v.GetString("MICROSOFT_TENANT")),
				Scopes:       []string{"openid", "email", "profile"},
			},
		}
	}
	return out
}
