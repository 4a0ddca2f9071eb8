// Package azure analyzes documents with Azure AI Document Intelligence and
// restructures the analyzer fields into the extraction schema. With a
// model_id configured it serves custom (fine-tuned) models as well.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/extractor"
	"docbench/internal/port"
)

// APIVersion is the Document Intelligence REST version used for analysis.
const APIVersion = "2023-07-31"

// Prebuilt models per document type.
const (
	ModelInvoice       = "prebuilt-invoice"
	ModelBankStatement = "prebuilt-bankStatement.us"
)

func init() {
	extractor.RegisterProvider("azure", func(cfg *config.BackendConfig, deps extractor.Deps) (port.Extractor, error) {
		return NewExtractor(cfg, deps.Restructurer, deps.Logger), nil
	})
}

// Extractor implements port.Extractor with analyze / poll / restructure.
type Extractor struct {
	endpoint     string
	apiKey       string
	modelID      string
	pollInterval time.Duration
	pollTimeout  time.Duration
	restructurer port.Restructurer
	client       *http.Client
	log          zerolog.Logger
}

// NewExtractor creates an Azure Document Intelligence extractor.
func NewExtractor(cfg *config.BackendConfig, restructurer port.Restructurer, log zerolog.Logger) *Extractor {
	interval := time.Duration(cfg.PollIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := time.Duration(cfg.PollTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &Extractor{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		modelID:      cfg.ModelID,
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

// ModelFor returns the analyzer model used for a document type.
func (e *Extractor) ModelFor(docType domain.DocumentType) string {
	if e.modelID != "" {
		return e.modelID
	}
	if docType == domain.DocumentTypeBankStatement {
		return ModelBankStatement
	}
	return ModelInvoice
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.Envelope, error) {
	if err := extractor.RequireSetting("azure", "endpoint", e.endpoint); err != nil {
		return nil, err
	}
	if err := extractor.RequireSetting("azure", "api key", e.apiKey); err != nil {
		return nil, err
	}
	if e.restructurer == nil {
		return nil, fmt.Errorf("%w: azure needs a restructure model", domain.ErrConfiguration)
	}

	model := e.ModelFor(input.DocumentType)
	opURL, err := e.analyze(ctx, model, input)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("model", model).Msg("azure: analysis started")

	result, err := e.poll(ctx, opURL)
	if err != nil {
		return nil, err
	}
	if len(result.Documents) == 0 {
		return nil, fmt.Errorf("azure analysis returned no documents for model %s", model)
	}

	fields, err := json.Marshal(simplifyFields(result.Documents[0].Fields))
	if err != nil {
		return nil, fmt.Errorf("marshaling analyzer fields: %w", err)
	}

	text, err := e.restructurer.Restructure(ctx, port.RestructureInput{
		Text:         string(fields),
		DocumentType: input.DocumentType,
	})
	if err != nil {
		return nil, err
	}
	return port.TextEnvelope(text), nil
}

func (e *Extractor) analyze(ctx context.Context, model string, input port.ExtractInput) (string, error) {
	u := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s",
		e.endpoint, url.PathEscape(model), APIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(input.FileBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", input.ContentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling azure analyze API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", extractor.StatusError("azure", resp, body)
	}
	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", errors.New("azure analyze response has no Operation-Location")
	}
	return opURL, nil
}

type analyzeResult struct {
	Content   string `json:"content"`
	Documents []struct {
		DocType string                   `json:"docType"`
		Fields  map[string]documentField `json:"fields"`
	} `json:"documents"`
}

type operation struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// documentField is the subset of the analyzer field model that carries values.
type documentField struct {
	Type        string                   `json:"type"`
	Content     string                   `json:"content"`
	Confidence  *float64                 `json:"confidence"`
	ValueArray  []documentField          `json:"valueArray"`
	ValueObject map[string]documentField `json:"valueObject"`
}

func (e *Extractor) poll(ctx context.Context, opURL string) (*analyzeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("polling azure analysis: %w", ctx.Err())
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating poll request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", e.apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling azure operation API: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, extractor.StatusError("azure", resp, body)
		}

		var op operation
		if err := json.Unmarshal(body, &op); err != nil {
			return nil, fmt.Errorf("unmarshaling operation: %w", err)
		}
		switch op.Status {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return nil, errors.New("azure analysis succeeded without a result")
			}
			return op.AnalyzeResult, nil
		case "failed":
			if op.Error != nil {
				return nil, fmt.Errorf("azure analysis failed: %s: %s", op.Error.Code, op.Error.Message)
			}
			return nil, errors.New("azure analysis failed")
		}
	}
}

// simplifyFields reduces analyzer fields to {value, confidence} leaves while
// keeping arrays (line items) and objects nested.
func simplifyFields(fields map[string]documentField) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for name, f := range fields {
		out[name] = simplifyField(f)
	}
	return out
}

func simplifyField(f documentField) interface{} {
	switch {
	case f.ValueArray != nil:
		items := make([]interface{}, 0, len(f.ValueArray))
		for _, item := range f.ValueArray {
			items = append(items, simplifyField(item))
		}
		return items
	case f.ValueObject != nil:
		return simplifyFields(f.ValueObject)
	default:
		leaf := map[string]interface{}{"value": f.Content}
		if f.Confidence != nil {
			leaf["confidence"] = *f.Confidence
		}
		return leaf
	}
}
