// Package azure starts custom model builds in Azure AI Document Intelligence
// from labelled documents stored in a blob container.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/extractor"
	"docbench/internal/port"
)

// ModelPrefix prefixes generated model ids.
const ModelPrefix = "finetune-model-"

const defaultDescription = "Auto-trained model from flagged documents"

// Trainer implements port.Trainer with the documentModels:build API.
type Trainer struct {
	endpoint     string
	apiKey       string
	containerURL string
	apiVersion   string
	client       *http.Client
	newModelID   func() string
}

// NewTrainer creates an Azure model-build trainer.
func NewTrainer(cfg *config.FineTuneConfig) *Trainer {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	version := cfg.APIVersion
	if version == "" {
		version = "2023-07-31"
	}
	return &Trainer{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		containerURL: cfg.ContainerURL,
		apiVersion:   version,
		client:       &http.Client{Timeout: timeout},
		newModelID:   randomModelID,
	}
}

func randomModelID() string {
	return ModelPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

type buildRequest struct {
	ModelID         string          `json:"modelId"`
	Description     string          `json:"description"`
	BuildMode       string          `json:"buildMode"`
	AzureBlobSource azureBlobSource `json:"azureBlobSource"`
}

type azureBlobSource struct {
	ContainerURL string `json:"containerUrl"`
}

// Train starts a template build. The labelled documents are expected to be
// present in the configured container; the build reads them from there.
func (t *Trainer) Train(ctx context.Context, input port.TrainInput) (string, error) {
	for _, s := range []struct{ name, value string }{
		{"endpoint", t.endpoint},
		{"api key", t.apiKey},
		{"container url", t.containerURL},
	} {
		if err := extractor.RequireSetting("finetune", s.name, s.value); err != nil {
			return "", err
		}
	}

	description := input.Description
	if description == "" {
		description = defaultDescription
	}
	payload := buildRequest{
		ModelID:         t.newModelID(),
		Description:     description,
		BuildMode:       "template",
		AzureBlobSource: azureBlobSource{ContainerURL: t.containerURL},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling build request: %w", err)
	}

	u := fmt.Sprintf("%s/formrecognizer/documentModels:build?api-version=%s", t.endpoint, t.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling azure build API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%w: %w", domain.ErrTrainingFailed, extractor.StatusError("azure", resp, respBody))
	}

	var out struct {
		ModelID string `json:"modelId"`
	}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &out); err != nil {
			return "", errors.Join(domain.ErrTrainingFailed, fmt.Errorf("decoding build response: %w", err))
		}
	}
	if out.ModelID == "" {
		out.ModelID = payload.ModelID
	}
	return out.ModelID, nil
}
