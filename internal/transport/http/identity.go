package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/ticket-ledger/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

type accountKey struct{}

// WithAccount attaches a verified caller identity to the context.
func WithAccount(ctx context.Context, account domain.Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFromContext returns the caller identity injected by RequireIdentity.
func AccountFromContext(ctx context.Context) (domain.Account, bool) {
	account, ok := ctx.Value(accountKey{}).(domain.Account)
	return account, ok
}

// RequireIdentity verifies the bearer token and injects its subject as the
// caller account. Every state-changing route sits behind it; the core trusts
// the account it receives, so this is the only authentication step.
func RequireIdentity(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, codeMissingIdentity, "missing bearer token")
			return
		}
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, codeInvalidIdentity, "malformed authorization header")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			writeError(w, http.StatusUnauthorized, codeInvalidIdentity, "invalid bearer token")
			return
		}

		ctx := WithAccount(r.Context(), domain.Account(claims.Subject))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SignIdentity mints a token for an account; used by tests and local tooling.
func SignIdentity(secret []byte, account domain.Account, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   string(account),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// callerOr401 pulls the identity out of the request, writing the error
// response itself when absent.
func callerOr401(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeMissingIdentity, "missing caller identity")
		return domain.NoAccount, false
	}
	return account, true
}
