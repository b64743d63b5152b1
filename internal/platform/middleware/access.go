package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"lineage/pkg/requestcontext"
)

// The gateway in front of this service authenticates callers, resolves
// chart permissions, and forwards its decision as a short-lived signed
// assertion. This middleware only verifies the signature and transports
// the decision into context; the core never derives permissions itself.

// accessClaims is the assertion payload minted by the gateway.
type accessClaims struct {
	ChartID  string `json:"chart_id"`
	CanRead  bool   `json:"can_read"`
	CanWrite bool   `json:"can_write"`
	IsOwner  bool   `json:"is_owner"`
	jwt.RegisteredClaims
}

// AccessVerifier verifies gateway access assertions.
type AccessVerifier struct {
	signingKey []byte
}

func NewAccessVerifier(signingKey string) *AccessVerifier {
	return &AccessVerifier{signingKey: []byte(signingKey)}
}

// Verify parses and validates an assertion, returning the decision it carries.
func (v *AccessVerifier) Verify(token string) (requestcontext.Access, error) {
	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return requestcontext.Access{}, err
	}
	if !parsed.Valid {
		return requestcontext.Access{}, fmt.Errorf("invalid assertion")
	}
	return requestcontext.Access{
		CallerID: claims.Subject,
		ChartID:  claims.ChartID,
		CanRead:  claims.CanRead,
		CanWrite: claims.CanWrite,
		IsOwner:  claims.IsOwner,
	}, nil
}

// RequireChartAccess validates the assertion, checks it targets the chart
// in the URL, and injects the decision into context. Handlers consult the
// decision booleans; nothing downstream re-authorizes.
func RequireChartAccess(verifier *AccessVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "missing access assertion",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			access, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(ctx, "invalid access assertion",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired access assertion")
				return
			}

			if chartID := chi.URLParam(r, "chartID"); chartID != "" && chartID != access.ChartID {
				logger.WarnContext(ctx, "assertion chart mismatch",
					"assertion_chart", access.ChartID,
					"request_chart", chartID,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Assertion does not cover this chart")
				return
			}

			ctx = requestcontext.WithCallerID(ctx, access.CallerID)
			ctx = requestcontext.WithAccess(ctx, access)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":"unauthorized","error_description":%q}`, description)
}
