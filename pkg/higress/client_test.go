package higress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:       server.URL,
		SessionCookie: "test-session",
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)
	return client, server
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestClient_SendsSessionCookie(t *testing.T) {
	var gotCookie string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("_hi_sess"); err == nil {
			gotCookie = c.Value
		}
		writeJSON(w, map[string]interface{}{"data": []interface{}{}})
	}))

	_, err := client.ListRoutes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-session", gotCookie)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"not found", http.StatusNotFound, KindNotFound},
		{"conflict", http.StatusConflict, KindConflict},
		{"unauthorized", http.StatusUnauthorized, KindUnauthorized},
		{"forbidden", http.StatusForbidden, KindUnauthorized},
		{"server error", http.StatusInternalServerError, KindTransient},
		{"rate limited", http.StatusTooManyRequests, KindTransient},
		{"teapot", http.StatusTeapot, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))

			_, err := client.GetRoute(context.Background(), "r1")
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestClient_TransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // force a connection error

	client, err := NewClient(Config{BaseURL: server.URL, SessionCookie: "x", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = client.ListRoutes(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Retryable())
}

func TestClient_ListRoutes_UnwrapsEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/routes", r.URL.Path)
		writeJSON(w, map[string]interface{}{
			"data": []interface{}{
				map[string]interface{}{"name": "route-a"},
				map[string]interface{}{"name": "route-b"},
			},
		})
	}))

	routes, err := client.ListRoutes(context.Background())
	require.NoError(t, err)
	assert.Len(t, routes, 2)
}

func TestClient_ListRoutes_PaginatedEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{
				"list":  []interface{}{map[string]interface{}{"name": "route-a"}},
				"total": 1,
			},
		})
	}))

	routes, err := client.ListRoutes(context.Background())
	require.NoError(t, err)
	assert.Len(t, routes, 1)
}

func TestClient_AddRoute_RequiredFields(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the console when validation fails")
	}))

	_, err := client.AddRoute(context.Background(), map[string]interface{}{"name": "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "services")
}

func TestClient_AddRoute_PostsConfiguration(t *testing.T) {
	var gotMethod string
	var gotBody map[string]interface{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, map[string]interface{}{"data": gotBody})
	}))

	cfg := map[string]interface{}{
		"name":     "route-example",
		"path":     map[string]interface{}{"matchType": "PRE", "matchValue": "/test"},
		"services": []interface{}{map[string]interface{}{"name": "svc.dns", "port": float64(443)}},
	}
	created, err := client.AddRoute(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "route-example", created["name"])
}

func TestClient_UpdateRoute_MergesCurrent(t *testing.T) {
	var putBody map[string]interface{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, map[string]interface{}{"data": map[string]interface{}{
				"name":    "r1",
				"domains": []interface{}{"example.com"},
				"methods": []interface{}{"GET"},
			}})
		case http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&putBody)
			writeJSON(w, map[string]interface{}{"data": putBody})
		}
	}))

	updated, err := client.UpdateRoute(context.Background(), "r1", map[string]interface{}{
		"methods": []interface{}{"GET", "POST"},
	})
	require.NoError(t, err)

	// Untouched fields survive the merge
	assert.Equal(t, []interface{}{"example.com"}, putBody["domains"])
	assert.Equal(t, []interface{}{"GET", "POST"}, putBody["methods"])
	assert.Equal(t, "r1", updated["name"])
}

func TestClient_UpdatePlugin_ReadMergeWrite(t *testing.T) {
	var putBody map[string]interface{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/global/plugin-instances/request-block", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, map[string]interface{}{"data": map[string]interface{}{
				"pluginName": "request-block",
				"configurations": map[string]interface{}{
					"block_urls":   []interface{}{"seven.html"},
					"blocked_code": float64(404),
				},
			}})
		case http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&putBody)
			writeJSON(w, map[string]interface{}{"data": putBody})
		}
	}))

	enabled := true
	_, err := client.UpdatePlugin(context.Background(), "request-block", &enabled, map[string]interface{}{
		"blocked_code": float64(500),
	})
	require.NoError(t, err)

	config := putBody["configurations"].(map[string]interface{})
	assert.Equal(t, float64(500), config["blocked_code"])
	assert.Equal(t, true, putBody["enabled"])
	// Existing keys the caller did not mention are preserved
	assert.Equal(t, []interface{}{"seven.html"}, config["block_urls"])
}

func TestClient_Login_SetsSessionCookie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/session/login", r.URL.Path)
		http.SetCookie(w, &http.Cookie{Name: "_hi_sess", Value: "issued", Path: "/"})
		writeJSON(w, map[string]interface{}{"data": map[string]interface{}{}})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:  server.URL,
		Username: "admin",
		Password: "admin",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.False(t, client.HasSession())

	require.NoError(t, client.Login(context.Background()))
	assert.True(t, client.HasSession())
}

func TestClient_Login_WithoutCredentials(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost:1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	err = client.Login(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}
