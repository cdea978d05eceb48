package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"peoplehub/pkg/requestcontext"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var actor string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		expected string
		sent     string
		status   int
	}{
		{"matching token", "secret", "secret", http.StatusNoContent},
		{"wrong token", "secret", "guess", http.StatusUnauthorized},
		{"missing token", "secret", "", http.StatusUnauthorized},
		{"unconfigured token rejects all", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor = ""
			req := httptest.NewRequest(http.MethodPost, "/v1/admin/emails/repair", nil)
			if tt.sent != "" {
				req.Header.Set(TokenHeader, tt.sent)
			}
			rec := httptest.NewRecorder()
			RequireAdminToken(tt.expected, logger)(next).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "admin-api", actor)
			}
		})
	}
}
