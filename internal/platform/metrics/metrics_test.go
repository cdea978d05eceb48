package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentLabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/v1/session/permissions/{permission}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, perm := range []string{"track_time", "manage_users"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session/permissions/"+perm, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/v1/session/permissions/{permission}", "204"))
	assert.Equal(t, float64(2), got)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.requests.WithLabelValues(http.MethodGet, "/healthz", "200").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "peoplehub_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}
