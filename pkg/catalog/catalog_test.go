package catalog

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

	"github.com/arpith/higate/pkg/higress"
	"github.com/arpith/higate/pkg/registry"
)

func newTestCatalog(t *testing.T, handler http.Handler) *registry.Registry {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := higress.NewClient(higress.Config{
		BaseURL:       server.URL,
		SessionCookie: "test-session",
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)

	reg, err := Build(client)
	require.NoError(t, err)
	return reg
}

func writeData(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": v})
}

func TestBuild_RegistersFullToolSet(t *testing.T) {
	reg := newTestCatalog(t, http.NotFoundHandler())

	assert.Equal(t, 10, reg.Count())
	assert.True(t, reg.Sealed())

	sensitive := map[string]bool{}
	for _, info := range reg.List() {
		sensitive[info.Name] = info.Sensitive
	}

	for _, name := range []string{"list_routes", "get_route", "list_service_sources", "get_service_source", "get_plugin"} {
		has, ok := sensitive[name]
		require.True(t, ok, name)
		assert.False(t, has, name)
	}
	for _, name := range []string{"add_route", "update_route", "add_service_source", "update_service_source", "update_request_block_plugin"} {
		has, ok := sensitive[name]
		require.True(t, ok, name)
		assert.True(t, has, name)
	}
}

func TestGetRoute_CallsConsole(t *testing.T) {
	reg := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/routes/my-route", r.URL.Path)
		writeData(w, map[string]interface{}{"name": "my-route"})
	}))

	def, err := reg.Lookup("get_route")
	require.NoError(t, err)

	payload, err := def.Handler(context.Background(), map[string]interface{}{"name": "my-route"})
	require.NoError(t, err)

	route := payload.(map[string]interface{})
	assert.Equal(t, "my-route", route["name"])
}

func TestUpdateRoute_StripsNameFromMergeFields(t *testing.T) {
	var putBody map[string]interface{}
	reg := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeData(w, map[string]interface{}{"name": "r1", "domains": []interface{}{"example.com"}})
		case http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&putBody)
			writeData(w, putBody)
		}
	}))

	def, err := reg.Lookup("update_route")
	require.NoError(t, err)

	_, err = def.Handler(context.Background(), map[string]interface{}{
		"name":    "r1",
		"methods": []interface{}{"GET"},
	})
	require.NoError(t, err)

	assert.Equal(t, "r1", putBody["name"])
	assert.Equal(t, []interface{}{"GET"}, putBody["methods"])
	assert.Equal(t, []interface{}{"example.com"}, putBody["domains"])
}

func TestRequestBlock_ValidConfigReachesConsole(t *testing.T) {
	var putBody map[string]interface{}
	reg := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/global/plugin-instances/request-block", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeData(w, map[string]interface{}{
				"pluginName":     "request-block",
				"configurations": map[string]interface{}{"blocked_code": float64(404)},
			})
		case http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&putBody)
			writeData(w, putBody)
		}
	}))

	def, err := reg.Lookup("update_request_block_plugin")
	require.NoError(t, err)

	_, err = def.Handler(context.Background(), map[string]interface{}{
		"enabled":    true,
		"block_urls": []interface{}{"/admin", "/debug"},
	})
	require.NoError(t, err)

	assert.Equal(t, true, putBody["enabled"])
	config := putBody["configurations"].(map[string]interface{})
	assert.Equal(t, []interface{}{"/admin", "/debug"}, config["block_urls"])
	// Preserved from the current instance configuration.
	assert.Equal(t, float64(404), config["blocked_code"])
	// The transport-level toggle never lands inside configurations.
	assert.NotContains(t, config, "enabled")
}

func TestRequestBlock_ValidationRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"no rules at all", map[string]interface{}{"enabled": true}},
		{"empty rule lists", map[string]interface{}{"block_urls": []interface{}{}}},
		{"non-array rules", map[string]interface{}{"block_urls": "not-a-list"}},
		{"non-string entries", map[string]interface{}{"block_urls": []interface{}{42}}},
		{"bad blocked code", map[string]interface{}{
			"block_urls":   []interface{}{"/admin"},
			"blocked_code": float64(9000),
		}},
	}

	reg := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid configuration must not reach the console")
	}))

	def, err := reg.Lookup("update_request_block_plugin")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := def.Handler(context.Background(), tt.args)
			require.Error(t, err)

			var verr *registry.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "update_request_block_plugin", verr.Tool)
		})
	}
}

func TestCatalog_DownstreamErrorPropagates(t *testing.T) {
	reg := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such route", http.StatusNotFound)
	}))

	def, err := reg.Lookup("get_route")
	require.NoError(t, err)

	_, err = def.Handler(context.Background(), map[string]interface{}{"name": "missing"})
	require.Error(t, err)
	assert.Equal(t, higress.KindNotFound, higress.KindOf(err))
}
