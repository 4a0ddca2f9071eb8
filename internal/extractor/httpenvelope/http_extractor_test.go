package httpenvelope_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/extractor"
	"docbench/internal/extractor/httpenvelope"
	"docbench/internal/port"
)

func TestHTTPExtractor_Extract_Passthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "bank_statement", r.FormValue("document_type"))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "s.png", header.Filename)

		_, _ = w.Write([]byte(`{"result":{"Countoftransactions":2}}`))
	}))
	defer server.Close()

	e := httpenvelope.NewExtractor(&config.BackendConfig{Name: "local", Endpoint: server.URL, APIKey: "tok"})
	env, err := e.Extract(context.Background(), port.ExtractInput{
		FileName: "s.png", FileBytes: []byte("png"), ContentType: "image/png",
		DocumentType: domain.DocumentTypeBankStatement,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Countoftransactions":2}`, string(env.Result))
}

func TestHTTPExtractor_Extract_ErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model crashed","status":"failed"}`))
	}))
	defer server.Close()

	e := httpenvelope.NewExtractor(&config.BackendConfig{Name: "local", Endpoint: server.URL})
	env, err := e.Extract(context.Background(), port.ExtractInput{FileBytes: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "model crashed", env.Error)
	assert.Equal(t, port.StatusFailed, env.Status)
}

func TestHTTPExtractor_Extract_StatusWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	e := httpenvelope.NewExtractor(&config.BackendConfig{Name: "local", Endpoint: server.URL})
	_, err := e.Extract(context.Background(), port.ExtractInput{FileBytes: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestHTTPExtractor_Extract_UndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	e := httpenvelope.NewExtractor(&config.BackendConfig{Name: "local", Endpoint: server.URL})
	_, err := e.Extract(context.Background(), port.ExtractInput{FileBytes: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding envelope")
}

func TestHTTPExtractor_Extract_NoEndpoint(t *testing.T) {
	_, err := httpenvelope.NewExtractor(&config.BackendConfig{Name: "local"}).
		Extract(context.Background(), port.ExtractInput{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestHTTPExtractor_Registered(t *testing.T) {
	ext, err := extractor.New(&config.BackendConfig{Name: "local", Provider: "http", Endpoint: "http://x"}, extractor.Deps{})
	require.NoError(t, err)
	assert.IsType(t, &httpenvelope.Extractor{}, ext)
}
