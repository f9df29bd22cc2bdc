package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine"
	"reminderdesk/internal/engine/auth"
)

const (
	headerAPIKey      = "X-Api-Key"
	headerViewerRole  = "X-Viewer-Role"
	headerViewerEmail = "X-Viewer-Email"
)

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	// DevHeaders trusts X-Viewer-Role/X-Viewer-Email without a token.
	DevHeaders bool
	DevTokens  bool
}

func AuthFromConfig(cfg *config.Config) AuthConfig {
	if cfg == nil {
		return AuthConfig{}
	}
	return AuthConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		DevHeaders: cfg.Auth.DevHeaders,
		DevTokens:  cfg.Auth.DevTokens,
	}
}

type Principal struct {
	Viewer  domain.Viewer
	Subject string
	Source  string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// requireViewer returns the caller's viewer, checking perm when non-empty.
func requireViewer(ctx context.Context, e engine.Engine, perm string) (domain.Viewer, huma.StatusError) {
	p, ok := principalFromContext(ctx)
	if !ok {
		return domain.Viewer{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	if perm == "" {
		return p.Viewer, nil
	}
	if err := (auth.Service{Config: e.Config, Repo: e.Repo}).Require(p.Viewer, perm); err != nil {
		return domain.Viewer{}, handleError(err)
	}
	return p.Viewer, nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

// SignToken mints an HS256 token carrying the viewer's role and email.
func SignToken(cfg AuthConfig, v domain.Viewer, subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if subject == "" {
		subject = v.Actor()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  string(v.Role),
		Email: domain.NormalizeEmail(v.Email),
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

func authenticateJWT(token string, cfg AuthConfig) (Principal, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	claims := &jwtClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		Viewer:  domain.Viewer{Role: role, Email: domain.NormalizeEmail(claims.Email)},
		Subject: claims.Subject,
		Source:  "jwt",
	}, nil
}

func authenticateAPIKey(ctx context.Context, e engine.Engine, key string) (Principal, error) {
	u, err := e.Repo.UserByAPIKey(ctx, key)
	if err != nil {
		return Principal{}, err
	}
	v, err := auth.ViewerForUser(u)
	if err != nil {
		return Principal{}, err
	}
	return Principal{Viewer: v, Subject: u.ID, Source: "api_key"}, nil
}

func authenticateHeaders(req *http.Request) (Principal, error) {
	role, err := domain.ParseRole(req.Header.Get(headerViewerRole))
	if err != nil {
		return Principal{}, err
	}
	v := domain.Viewer{Role: role, Email: domain.NormalizeEmail(req.Header.Get(headerViewerEmail))}
	return Principal{Viewer: v, Subject: v.Actor(), Source: "dev_headers"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig, e engine.Engine, logger *zap.Logger) func(http.Handler) http.Handler {
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/token"): true,
		path.Join(basePath, "openapi.json"):   true,
	}
	unauthorized := newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if (basePath != "" && !strings.HasPrefix(req.URL.Path, basePath)) || open[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKey := strings.TrimSpace(req.Header.Get(headerAPIKey))

			var (
				principal Principal
				err       error
			)
			switch {
			case authz != "":
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, unauthorized)
					return
				}
				principal, err = authenticateJWT(token, cfg)
			case apiKey != "":
				principal, err = authenticateAPIKey(req.Context(), e, apiKey)
			case cfg.DevHeaders && req.Header.Get(headerViewerRole) != "":
				principal, err = authenticateHeaders(req)
			default:
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			var inactive auth.InactiveUserError
			if errors.As(err, &inactive) {
				respondStatusError(w, newAPIError(http.StatusForbidden, "inactive_user", err.Error(), nil))
				return
			}
			if err != nil {
				logger.Debug("authentication failed", zap.String("path", req.URL.Path), zap.Error(err))
				respondStatusError(w, unauthorized)
				return
			}
			if err := e.CheckViewerActive(req.Context(), principal.Viewer); err != nil {
				if errors.As(err, &inactive) {
					respondStatusError(w, newAPIError(http.StatusForbidden, "inactive_user", err.Error(), nil))
					return
				}
				respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
