package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/extractor/openai"
	"docbench/internal/port"
)

func chatReply(content, finish string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}, "finish_reason": finish},
		},
	}
}

func TestOpenAIExtractor_Extract_PDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "gpt-4o", reqBody["model"])
		assert.Equal(t, float64(16384), reqBody["max_completion_tokens"])

		content := reqBody["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		require.Len(t, content, 2)
		file := content[0].(map[string]interface{})
		assert.Equal(t, "file", file["type"])
		assert.Equal(t, "inv.pdf", file["file"].(map[string]interface{})["filename"])
		assert.Equal(t, "text", content[1].(map[string]interface{})["type"])

		_ = json.NewEncoder(w).Encode(chatReply(`{"isDuplicate":"no"}`, "stop"))
	}))
	defer server.Close()

	e := openai.NewExtractorWithEndpoint(&config.BackendConfig{APIKey: "sk-test"}, openai.FlavorOpenAI, server.URL)
	env, err := e.Extract(context.Background(), port.ExtractInput{
		FileName: "inv.pdf", FileBytes: []byte("%PDF"), ContentType: "application/pdf",
	})
	require.NoError(t, err)

	var text string
	require.NoError(t, json.Unmarshal(env.Result, &text))
	assert.Equal(t, `{"isDuplicate":"no"}`, text)
}

func TestMistralExtractor_Extract_DocumentURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "mistral-small-latest", reqBody["model"])
		assert.Equal(t, float64(16384), reqBody["max_tokens"])
		assert.Nil(t, reqBody["max_completion_tokens"])

		content := reqBody["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		require.Len(t, content, 2)
		assert.Equal(t, "text", content[0].(map[string]interface{})["type"])
		doc := content[1].(map[string]interface{})
		assert.Equal(t, "document_url", doc["type"])
		assert.Contains(t, doc["document_url"], "data:application/pdf;base64,")

		_ = json.NewEncoder(w).Encode(chatReply("```json\n{}\n```", "stop"))
	}))
	defer server.Close()

	e := openai.NewExtractorWithEndpoint(&config.BackendConfig{APIKey: "m-key"}, openai.FlavorMistral, server.URL)
	_, err := e.Extract(context.Background(), port.ExtractInput{
		FileBytes: []byte("%PDF"), ContentType: "application/pdf", DocumentType: domain.DocumentTypeInvoice,
	})
	require.NoError(t, err)
}

func TestMistralExtractor_Extract_Image(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		content := reqBody["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		assert.Equal(t, "image_url", content[1].(map[string]interface{})["type"])
		_ = json.NewEncoder(w).Encode(chatReply("{}", "stop"))
	}))
	defer server.Close()

	e := openai.NewExtractorWithEndpoint(&config.BackendConfig{APIKey: "m-key"}, openai.FlavorMistral, server.URL)
	_, err := e.Extract(context.Background(), port.ExtractInput{FileBytes: []byte("img"), ContentType: "image/jpeg"})
	require.NoError(t, err)
}

func TestOpenAIExtractor_Extract_MissingKey(t *testing.T) {
	e := openai.NewMistralExtractor(&config.BackendConfig{})
	_, err := e.Extract(context.Background(), port.ExtractInput{ContentType: "application/pdf"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "mistral")
}

func TestOpenAIExtractor_Extract_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatReply(`{"a":`, "length"))
	}))
	defer server.Close()

	e := openai.NewExtractorWithEndpoint(&config.BackendConfig{APIKey: "k"}, openai.FlavorOpenAI, server.URL)
	_, err := e.Extract(context.Background(), port.ExtractInput{FileBytes: []byte("x"), ContentType: "image/png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestOpenAIExtractor_Extract_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad file"}}`))
	}))
	defer server.Close()

	e := openai.NewExtractorWithEndpoint(&config.BackendConfig{APIKey: "k"}, openai.FlavorOpenAI, server.URL)
	_, err := e.Extract(context.Background(), port.ExtractInput{FileBytes: []byte("x"), ContentType: "image/png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "bad file")
}
