package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Claims is the token payload issued by the firm's identity service.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	LawyerID string `json:"lawyer_id,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

// SessionMiddleware resolves the request session from a bearer token. A
// request without an Authorization header continues as anonymous so the
// public booking routes stay open; a header that does not verify is
// rejected with 401.
func SessionMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return next(withSession(c, Anonymous()))
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(strings.TrimSpace(tokenStr), claims, keyFunc)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			sess, err := sessionFromClaims(claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			return next(withSession(c, sess))
		}
	}
}

func sessionFromClaims(claims *Claims) (Session, error) {
	sess := Session{
		UserID:          claims.Subject,
		Role:            strings.ToLower(claims.Role),
		IsAuthenticated: true,
	}
	if sess.UserID == "" {
		return Session{}, errInvalidClaims("missing subject")
	}
	switch sess.Role {
	case RoleAdmin, RoleClient:
	case RoleLawyer:
		id, err := uuid.Parse(claims.LawyerID)
		if err != nil {
			return Session{}, errInvalidClaims("lawyer token without lawyer_id")
		}
		sess.LawyerID = id
	default:
		return Session{}, errInvalidClaims("unknown role")
	}
	return sess, nil
}

type errInvalidClaims string

func (e errInvalidClaims) Error() string { return "invalid token claims: " + string(e) }

// DevSessionMiddleware gives every request an admin session. Only wired when
// ENV=development.
func DevSessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(withSession(c, Session{
				UserID:          "dev-user",
				Role:            RoleAdmin,
				IsAuthenticated: true,
			}))
		}
	}
}

func withSession(c echo.Context, s Session) echo.Context {
	c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), s)))
	c.Set("user_id", s.UserID)
	return c
}
