package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/platform/httputil"
	"peoplehub/pkg/requestcontext"
)

const TokenHeader = "X-Admin-Token"

// RequireAdminToken guards administrative routes with a shared token. An empty
// expected token disables the routes entirely rather than accepting any caller.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(TokenHeader)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, "admin-api")))
		})
	}
}
