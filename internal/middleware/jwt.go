package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-cms/internal/metrics"
	"github.com/iliyamo/blog-cms/internal/utils"
)

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revocationTimeout = 2 * time.Second

// JWTAuth returns an Echo middleware guarding protected routes. The request
// must carry "Authorization: Bearer <token>"; the token is verified with
// issuer and, when revocations is non-nil, checked against the deny-list.
// On success the verified claims are stored under the keys in identity.go.
// Every failure is answered with 401 and the handler is never reached.
func JWTAuth(issuer *utils.TokenIssuer, revocations RevocationChecker, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				m.GateRejected("missing")
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "missing bearer token"})
			}

			claims, err := issuer.Verify(raw)
			if err != nil {
				m.GateRejected("invalid")
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
			}

			if revocations != nil && claims.TokenID != "" {
				ctx, cancel := context.WithTimeout(c.Request().Context(), revocationTimeout)
				revoked, err := revocations.IsRevoked(ctx, claims.TokenID)
				cancel()
				if err != nil {
					// an unreachable deny-list must not let revoked tokens through
					slog.ErrorContext(c.Request().Context(), "revocation lookup failed", "err", err)
					m.GateRejected("revocation_error")
					return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
				}
				if revoked {
					m.GateRejected("revoked")
					return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
				}
			}

			setIdentity(c, claims)
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
