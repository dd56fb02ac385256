package handler

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/iliyamo/kids-checkin/internal/config"
	"github.com/iliyamo/kids-checkin/internal/middleware"
	"github.com/iliyamo/kids-checkin/internal/repository"
	"github.com/iliyamo/kids-checkin/internal/utils"
)

const (
	oauthCookie     = "oauth_session"
	oauthSessionTTL = 10 * time.Minute
)

// IDTokenVerifier checks an ID token's signature and audience.
type IDTokenVerifier interface {
	VerifyIDToken(idToken string, audience []string) error
}

// OAuthHandler implements the OIDC authorization-code login for staff.
// Only emails that already belong to an active user may sign in.
type OAuthHandler struct {
	Auth      *AuthHandler
	Providers map[string]config.OAuthProvider
	// Verifiers holds signature verifiers by provider name.
	Verifiers map[string]IDTokenVerifier
}

func NewOAuthHandler(auth *AuthHandler, providers map[string]config.OAuthProvider) *OAuthHandler {
	return &OAuthHandler{
		Auth:      auth,
		Providers: providers,
		Verifiers: map[string]IDTokenVerifier{"google": &googleAuthIDTokenVerifier.Verifier{}},
	}
}

type idTokenClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Nonce             string `json:"nonce"`
	jwt.RegisteredClaims
}

func (h *OAuthHandler) provider(c echo.Context) (config.OAuthProvider, bool) {
	p, ok := h.Providers[strings.ToLower(c.Param("provider"))]
	return p, ok
}

func (h *OAuthHandler) secureCookies() bool { return h.Auth.Cfg.Env == "prod" }

// Start handles GET /v1/auth/oauth/:provider/start.  It stores state and
// nonce in a signed HttpOnly cookie and redirects to the provider.
func (h *OAuthHandler) Start(c echo.Context) error {
	p, ok := h.provider(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown provider"})
	}
	state, nonce := uuid.NewString(), uuid.NewString()
	session, err := utils.NewOAuthSession(h.Auth.Cfg.JWTSecret, p.Name, state, nonce, oauthSessionTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session failed"})
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthCookie,
		Value:    session,
		Path:     "/v1/auth/oauth",
		MaxAge:   int(oauthSessionTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	})
	url := p.OAuth2.AuthCodeURL(state, oauth2Nonce(nonce))
	return c.Redirect(http.StatusFound, url)
}

// Callback handles GET /v1/auth/oauth/:provider/callback.
func (h *OAuthHandler) Callback(c echo.Context) error {
	p, ok := h.provider(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown provider"})
	}
	if e := c.QueryParam("error"); e != "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "provider denied login: " + e})
	}

	cookie, err := c.Cookie(oauthCookie)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing oauth session"})
	}
	// single use
	c.SetCookie(&http.Cookie{Name: oauthCookie, Value: "", Path: "/v1/auth/oauth", MaxAge: -1, HttpOnly: true, Secure: h.secureCookies()})

	session, err := utils.ParseOAuthSession(h.Auth.Cfg.JWTSecret, cookie.Value)
	if err != nil || session.Provider != p.Name {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid oauth session"})
	}
	state := c.QueryParam("state")
	if subtle.ConstantTimeCompare([]byte(state), []byte(session.State)) != 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "state mismatch"})
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing code"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	log := middleware.Logger(c).With(zap.String("provider", p.Name))

	tok, err := p.OAuth2.Exchange(ctx, code)
	if err != nil {
		log.Warn("oauth code exchange failed", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "code exchange failed"})
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "provider returned no id_token"})
	}
	email, err := h.checkIDToken(p, rawID, session.Nonce)
	if err != nil {
		log.Warn("id token rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid id_token"})
	}

	u, err := h.Auth.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) || (err == nil && !u.IsActive) {
		log.Info("oauth login refused", zap.String("email", email))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no active account for this email"})
	}
	if err != nil {
		return dbError(c, err)
	}
	resp, err := h.Auth.issue(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// checkIDToken validates nonce, audience, expiry and issuer and returns
// the email.  Providers with a verifier also get a signature check.
func (h *OAuthHandler) checkIDToken(p config.OAuthProvider, raw, nonce string) (string, error) {
	if v, ok := h.Verifiers[p.Name]; ok && p.Verifies {
		if err := v.VerifyIDToken(raw, []string{p.OAuth2.ClientID}); err != nil {
			return "", fmt.Errorf("signature: %w", err)
		}
	}
	var claims idTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return "", errors.New("nonce mismatch")
	}
	if !slices.Contains(claims.Audience, p.OAuth2.ClientID) {
		return "", errors.New("audience mismatch")
	}
	if claims.ExpiresAt == nil || time.Now().After(claims.ExpiresAt.Time) {
		return "", errors.New("token expired")
	}
	if len(p.Issuers) > 0 && !slices.Contains(p.Issuers, claims.Issuer) {
		return "", fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return "", errors.New("no email claim")
	}
	return email, nil
}

func oauth2Nonce(nonce string) oauth2.AuthCodeOption {
	return oauth2.SetAuthURLParam("nonce", nonce)
}
