package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-console/pkg/logger"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newTestClient(t *testing.T, handler http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, staticToken(token), nil, testLogger())
}

func TestDoAttachesBearerToken(t *testing.T) {
	var gotAuth, gotAccept string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{}`))
	}), "tok-123")

	err := client.Get(context.Background(), "/patients", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestDoOmitsAuthorizationWithoutToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}), "")

	require.NoError(t, client.Get(context.Background(), "/patients", nil))
	assert.Empty(t, gotAuth)
}

func TestDoSetsIdempotencyKeyOnMutations(t *testing.T) {
	keys := map[string]string{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys[r.Method] = r.Header.Get("X-Idempotency-Key")
		w.Write([]byte(`{}`))
	}), "tok")

	ctx := context.Background()
	require.NoError(t, client.Post(ctx, "/records", map[string]string{"a": "b"}, nil))
	require.NoError(t, client.Get(ctx, "/records", nil))
	require.NoError(t, client.Delete(ctx, "/records/1"))

	assert.NotEmpty(t, keys[http.MethodPost])
	assert.NotEmpty(t, keys[http.MethodDelete])
	assert.Empty(t, keys[http.MethodGet])
}

func TestDoDecodesResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"r1","diagnosis":"Flu"}`))
	}), "tok")

	var out struct {
		ID        string `json:"id"`
		Diagnosis string `json:"diagnosis"`
	}
	require.NoError(t, client.Get(context.Background(), "/records/patient/p1", &out))
	assert.Equal(t, "r1", out.ID)
	assert.Equal(t, "Flu", out.Diagnosis)
}

func TestDoMapsStatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		isNotFound bool
		isConflict bool
	}{
		{"not found", http.StatusNotFound, "", "Not Found", true, false},
		{"conflict with plain body", http.StatusConflict, "Time slot not available", "Time slot not available", false, true},
		{"server error with envelope", http.StatusInternalServerError, `{"message":"database down"}`, "database down", false, false},
		{"error field envelope", http.StatusBadRequest, `{"error":"bad input"}`, "bad input", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}), "tok")

			err := client.Get(context.Background(), "/x", nil)
			require.Error(t, err)
			assert.Equal(t, tt.isNotFound, IsNotFound(err))
			assert.Equal(t, tt.isConflict, IsConflict(err))
			assert.Equal(t, tt.wantMsg, Detail(err))
		})
	}
}

func TestDoSurfacesNetworkError(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, nil, nil, testLogger())
	err := client.Get(context.Background(), "/patients", nil)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Empty(t, Detail(err))
}

func TestDoEmptyBodySkipsDecode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), "tok")

	var out map[string]string
	require.NoError(t, client.Delete(context.Background(), "/interventions/i1"))
	require.NoError(t, client.Get(context.Background(), "/interventions/i1", &out))
	assert.Nil(t, out)
}
