// Package testutil provides helpers for handler, service and integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRequest builds a request without a body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewJSONRequest builds a request whose body is body encoded as JSON. A nil
// body sends no payload.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body), "encode request body")
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAdminRequest is NewJSONRequest with the X-Admin-Token header set.
func NewAdminRequest(t *testing.T, method, path, token string, body any) *http.Request {
	t.Helper()
	req := NewJSONRequest(t, method, path, body)
	req.Header.Set("X-Admin-Token", token)
	return req
}

// DoRequest serves req on handler and returns the recorded response.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// UnmarshalResponse decodes the recorded JSON body into a T.
func UnmarshalResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "decode response: %s", rec.Body.String())
	return &out
}

// ErrorCode returns the "error" field of a JSON error response.
func ErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := UnmarshalResponse[map[string]string](t, rec)
	return (*body)["error"]
}

// AssertJSONContains checks a top-level key of the JSON response body.
func AssertJSONContains(t *testing.T, rec *httptest.ResponseRecorder, key string, want any) {
	t.Helper()
	body := UnmarshalResponse[map[string]any](t, rec)
	assert.Equal(t, want, (*body)[key], "unexpected value for key %q", key)
}
