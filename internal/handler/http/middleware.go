package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/checkoutcore/internal/domain"
	apperrors "github.com/utafrali/checkoutcore/pkg/errors"
	"github.com/utafrali/checkoutcore/pkg/httputil"
	"github.com/utafrali/checkoutcore/pkg/middleware"
	"github.com/utafrali/checkoutcore/pkg/validator"
)

// Identity headers. They are trusted as sent unless an identity secret is
// configured, in which case user, level and coupons come from the signed
// X-Identity-Token instead.
const (
	UserIDHeader        = "X-User-ID"
	CustomerLevelHeader = "X-Customer-Level"
	CouponCodesHeader   = "X-Coupon-Codes"
	IdentityTokenHeader = "X-Identity-Token"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFromHeaders builds the caller identity for every request. The
// payment credential is the bearer token of the Authorization header. A
// missing session is left for the service to reject.
func IdentityFromHeaders(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := domain.Identity{
				SessionID:  r.Header.Get(middleware.SessionIDHeader),
				Credential: bearerToken(r.Header.Get("Authorization")),
			}
			if id.SessionID != "" && !validator.IsIdent(id.SessionID) {
				httputil.WriteError(w, r, apperrors.InvalidInput("X-Session-ID must be 1-64 letters, digits or _.:- characters"), logger)
				return
			}

			if secret == "" {
				id.UserID = r.Header.Get(UserIDHeader)
				id.Level = r.Header.Get(CustomerLevelHeader)
				id.Coupons = splitCoupons(r.Header.Get(CouponCodesHeader))
			} else if token := r.Header.Get(IdentityTokenHeader); token != "" {
				claims, err := parseIdentityToken(token, secret)
				if err != nil {
					logger.WarnContext(r.Context(), "invalid identity token",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					httputil.WriteError(w, r, apperrors.Unauthenticated("invalid or expired identity token"), logger)
					return
				}
				id.UserID, id.Level, id.Coupons = claims.userID, claims.level, claims.coupons
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFromContext returns the identity stored by IdentityFromHeaders.
func identityFromContext(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey).(domain.Identity)
	return id
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func splitCoupons(header string) []string {
	if header == "" {
		return nil
	}
	var codes []string
	for _, c := range strings.Split(header, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

type identityClaims struct {
	userID  string
	level   string
	coupons []string
}

func parseIdentityToken(tokenString, secret string) (*identityClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	out := &identityClaims{}
	out.userID, _ = claims["user_id"].(string)
	if out.userID == "" {
		out.userID, _ = claims["sub"].(string)
	}
	out.level, _ = claims["level"].(string)
	if raw, ok := claims["coupons"].([]any); ok {
		for _, c := range raw {
			if s, ok := c.(string); ok && s != "" {
				out.coupons = append(out.coupons, s)
			}
		}
	}
	return out, nil
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Kind:    apperrors.KindInvalidArgument,
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
