package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docbench/internal/config"
	"docbench/internal/extractor"
	"docbench/internal/port"
)

const (
	apiURL        = "https://api.openai.com/v1/chat/completions"
	mistralAPIURL = "https://api.mistral.ai/v1/chat/completions"
)

// Flavor selects how the document is attached to the chat message. The
// Chat Completions wire format is otherwise shared.
type Flavor string

const (
	FlavorOpenAI  Flavor = "openai"
	FlavorMistral Flavor = "mistral"
)

func init() {
	extractor.RegisterProvider("openai", func(cfg *config.BackendConfig, _ extractor.Deps) (port.Extractor, error) {
		return NewExtractor(cfg), nil
	})
	extractor.RegisterProvider("mistral", func(cfg *config.BackendConfig, _ extractor.Deps) (port.Extractor, error) {
		return NewMistralExtractor(cfg), nil
	})
}

// Extractor implements port.Extractor using a Chat Completions API.
type Extractor struct {
	flavor   Flavor
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewExtractor creates an OpenAI-based extractor from a backend config.
func NewExtractor(cfg *config.BackendConfig) *Extractor {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = apiURL
	}
	return newExtractor(cfg, FlavorOpenAI, endpoint)
}

// NewMistralExtractor creates an extractor for Mistral's chat API.
func NewMistralExtractor(cfg *config.BackendConfig) *Extractor {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = mistralAPIURL
	}
	return newExtractor(cfg, FlavorMistral, endpoint)
}

// NewExtractorWithEndpoint creates an extractor pointing at a custom API endpoint (for testing).
func NewExtractorWithEndpoint(cfg *config.BackendConfig, flavor Flavor, endpoint string) *Extractor {
	return newExtractor(cfg, flavor, endpoint)
}

func newExtractor(cfg *config.BackendConfig, flavor Flavor, endpoint string) *Extractor {
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
		if flavor == FlavorMistral {
			model = "mistral-small-latest"
		}
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Extractor{
		flavor:   flavor,
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.Envelope, error) {
	provider := string(e.flavor)
	if err := extractor.RequireSetting(provider, "api key", e.apiKey); err != nil {
		return nil, err
	}

	contentBlocks, err := e.buildContentBlocks(input, extractor.BuildPrompt(input.DocumentType))
	if err != nil {
		return nil, fmt.Errorf("building content blocks: %w", err)
	}

	reqBody := map[string]interface{}{
		"model": e.model,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": contentBlocks,
			},
		},
		"response_format": map[string]interface{}{
			"type": "json_object",
		},
	}
	if e.flavor == FlavorMistral {
		reqBody["max_tokens"] = 16384
	} else {
		reqBody["max_completion_tokens"] = 16384
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s API: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, extractor.StatusError(provider, resp, respBody)
	}

	text, err := parseResponse(respBody)
	if err != nil {
		return nil, err
	}
	return port.TextEnvelope(text), nil
}

func (e *Extractor) buildContentBlocks(input port.ExtractInput, prompt string) ([]map[string]interface{}, error) {
	encoded := base64.StdEncoding.EncodeToString(input.FileBytes)
	dataURI := fmt.Sprintf("data:%s;base64,%s", input.ContentType, encoded)
	var blocks []map[string]interface{}

	// Mistral takes the prompt first, as its document-QA examples do.
	if e.flavor == FlavorMistral {
		blocks = append(blocks, map[string]interface{}{"type": "text", "text": prompt})
	}

	switch input.ContentType {
	case "application/pdf":
		if e.flavor == FlavorMistral {
			blocks = append(blocks, map[string]interface{}{
				"type":         "document_url",
				"document_url": dataURI,
			})
			break
		}
		filename := input.FileName
		if filename == "" {
			filename = "document.pdf"
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "file",
			"file": map[string]interface{}{
				"filename":  filename,
				"file_data": dataURI,
			},
		})
	case "image/jpeg", "image/png":
		blocks = append(blocks, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url": dataURI,
			},
		})
	default:
		return nil, fmt.Errorf("unsupported content type for extraction: %s", input.ContentType)
	}

	if e.flavor != FlavorMistral {
		blocks = append(blocks, map[string]interface{}{"type": "text", "text": prompt})
	}
	return blocks, nil
}

// apiResponse models the Chat Completions API response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseResponse(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API: no choices")
	}

	if resp.Choices[0].FinishReason == "length" {
		return "", fmt.Errorf("output truncated (finish_reason: length): response exceeded output token limit")
	}

	return resp.Choices[0].Message.Content, nil
}
