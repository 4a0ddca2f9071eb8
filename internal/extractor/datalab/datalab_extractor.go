// Package datalab runs documents through the Datalab Marker OCR API and
// restructures the recognized markdown into the extraction schema.
package datalab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/rs/zerolog"

	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/extractor"
	"docbench/internal/port"
)

const apiURL = "https://www.datalab.to/api/v1/marker"

const statusComplete = "complete"

func init() {
	extractor.RegisterProvider("datalab", func(cfg *config.BackendConfig, deps extractor.Deps) (port.Extractor, error) {
		return NewExtractor(cfg, deps.Restructurer, deps.Logger), nil
	})
}

// Extractor implements port.Extractor with a submit / poll / restructure
// pipeline.
type Extractor struct {
	apiKey       string
	endpoint     string
	pollInterval time.Duration
	pollTimeout  time.Duration
	restructurer port.Restructurer
	client       *http.Client
	log          zerolog.Logger
}

// NewExtractor creates a Datalab extractor. restructurer may be nil, in
// which case every extraction reports a configuration error.
func NewExtractor(cfg *config.BackendConfig, restructurer port.Restructurer, log zerolog.Logger) *Extractor {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = apiURL
	}
	interval := time.Duration(cfg.PollIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := time.Duration(cfg.PollTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &Extractor{
		apiKey:       cfg.APIKey,
		endpoint:     endpoint,
		pollInterval: interval,
		pollTimeout:  timeout,
		restructurer: restructurer,
		client:       &http.Client{Timeout: 60 * time.Second},
		log:          log.With().Str("backend", cfg.Name).Logger(),
	}
}

// WithPolling overrides the poll cadence (for testing).
func (e *Extractor) WithPolling(interval, timeout time.Duration) *Extractor {
	e.pollInterval = interval
	e.pollTimeout = timeout
	return e
}

type submitResponse struct {
	Success         bool   `json:"success"`
	Error           string `json:"error"`
	RequestID       string `json:"request_id"`
	RequestCheckURL string `json:"request_check_url"`
}

type pollResponse struct {
	Status   string `json:"status"`
	Success  *bool  `json:"success"`
	Error    string `json:"error"`
	Markdown string `json:"markdown"`
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.Envelope, error) {
	if err := extractor.RequireSetting("datalab", "api key", e.apiKey); err != nil {
		return nil, err
	}
	if e.restructurer == nil {
		return nil, fmt.Errorf("%w: datalab needs a restructure model", domain.ErrConfiguration)
	}

	checkURL, err := e.submit(ctx, input)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("check_url", checkURL).Msg("datalab: submitted, polling")

	text, err := e.poll(ctx, checkURL)
	if err != nil {
		return nil, err
	}

	result, err := e.restructurer.Restructure(ctx, port.RestructureInput{
		Text:         text,
		DocumentType: input.DocumentType,
	})
	if err != nil {
		return nil, err
	}
	return port.TextEnvelope(result), nil
}

func (e *Extractor) submit(ctx context.Context, input port.ExtractInput) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, input.FileName))
	h.Set("Content-Type", input.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("creating multipart file: %w", err)
	}
	if _, err := part.Write(input.FileBytes); err != nil {
		return "", fmt.Errorf("writing multipart file: %w", err)
	}
	if err := w.WriteField("langs", "English"); err != nil {
		return "", fmt.Errorf("writing multipart field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Api-Key", e.apiKey)

	respBody, err := e.do(req)
	if err != nil {
		return "", err
	}

	var sr submitResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return "", fmt.Errorf("unmarshaling submit response: %w", err)
	}
	if sr.RequestCheckURL == "" {
		if sr.Error != "" {
			return "", fmt.Errorf("datalab submit failed: %s", sr.Error)
		}
		return "", errors.New("no check URL received")
	}
	return sr.RequestCheckURL, nil
}

func (e *Extractor) poll(ctx context.Context, checkURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("polling timeout after %d attempts: %w", attempt-1, ctx.Err())
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
		if err != nil {
			return "", fmt.Errorf("creating poll request: %w", err)
		}
		req.Header.Set("X-Api-Key", e.apiKey)

		respBody, err := e.do(req)
		if err != nil {
			return "", err
		}

		var pr pollResponse
		if err := json.Unmarshal(respBody, &pr); err != nil {
			return "", fmt.Errorf("unmarshaling poll response: %w", err)
		}

		if pr.Status == statusComplete {
			if pr.Success != nil && !*pr.Success {
				return "", fmt.Errorf("datalab OCR failed: %s", pr.Error)
			}
			if pr.Markdown != "" {
				return pr.Markdown, nil
			}
			return string(respBody), nil
		}
		e.log.Debug().Int("attempt", attempt).Str("status", pr.Status).Msg("datalab: poll")
	}
}

func (e *Extractor) do(req *http.Request) ([]byte, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling datalab API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, extractor.StatusError("datalab", resp, respBody)
	}
	return respBody, nil
}
