// Package httpenvelope registers any external process that speaks the
// extraction envelope contract over HTTP. The file is POSTed as multipart
// form data and the response body is taken verbatim as the envelope.
package httpenvelope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"docbench/internal/config"
	"docbench/internal/extractor"
	"docbench/internal/port"
)

func init() {
	extractor.RegisterProvider("http", func(cfg *config.BackendConfig, _ extractor.Deps) (port.Extractor, error) {
		return NewExtractor(cfg), nil
	})
}

// Extractor implements port.Extractor by delegating to a remote endpoint.
type Extractor struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewExtractor creates an HTTP envelope extractor.
func NewExtractor(cfg *config.BackendConfig) *Extractor {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	return &Extractor{
		name:     cfg.Name,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.Envelope, error) {
	if err := extractor.RequireSetting(e.name, "endpoint", e.endpoint); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, input.FileName))
	h.Set("Content-Type", input.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating multipart file: %w", err)
	}
	if _, err := part.Write(input.FileBytes); err != nil {
		return nil, fmt.Errorf("writing multipart file: %w", err)
	}
	if err := w.WriteField("document_type", string(input.DocumentType)); err != nil {
		return nil, fmt.Errorf("writing multipart field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", e.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var env port.Envelope
	decodeErr := json.Unmarshal(respBody, &env)

	// A failed call may still carry a well-formed error envelope.
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && env.Error != "" {
			return &env, nil
		}
		return nil, extractor.StatusError(e.name, resp, respBody)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding envelope: %w (raw: %s)", decodeErr, extractor.Truncate(string(respBody), 500))
	}
	return &env, nil
}
