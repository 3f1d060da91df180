package openapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/schemair/internal/adapter/outbound/openapi"
)

func TestAutoDiscoverer_ResolveSchemaSource(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/api-docs" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"openapi":"3.0.0"}`))
	}))
	defer srv.Close()

	d := openapi.NewAutoDiscoverer(srv.Client(), testLogger())
	ctx := context.Background()
	headers := map[string]string{"Authorization": "Bearer t"}

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{name: "base URL is resolved", source: srv.URL, want: srv.URL + "/v3/api-docs"},
		{name: "trailing slash", source: srv.URL + "/", want: srv.URL + "/v3/api-docs"},
		{name: "document URL kept", source: srv.URL + "/specs/petstore.yaml", want: srv.URL + "/specs/petstore.yaml"},
		{name: "swagger URL kept", source: srv.URL + "/swagger", want: srv.URL + "/swagger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.ResolveSchemaSource(ctx, tt.source, headers))
		})
	}
	assert.Equal(t, "Bearer t", gotAuth)
}

func TestAutoDiscoverer_DiscoverSchema_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	d := openapi.NewAutoDiscoverer(srv.Client(), testLogger())
	_, err := d.DiscoverSchema(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find OpenAPI document")

	assert.Equal(t, srv.URL, d.ResolveSchemaSource(context.Background(), srv.URL, nil))

	_, err = d.DiscoverSchema(context.Background(), "localhost:8080", nil)
	assert.Error(t, err)
}
