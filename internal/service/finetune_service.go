package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/port"
	"docbench/internal/validation"
)

const trainingPageSize = 100

// FlagInput is the DTO for flagging a document for fine-tuning.
type FlagInput struct {
	FileName     string
	File         io.Reader
	Size         int64
	ExpectedJSON []byte
	DocumentType domain.DocumentType
	Backend      string
}

// TrainingResult reports a started training job.
type TrainingResult struct {
	ModelID   string `json:"model_id"`
	Documents int    `json:"documents"`
	Skipped   int    `json:"skipped"`
}

// FineTuneService defines the fine-tune workflow contract.
type FineTuneService interface {
	Flag(ctx context.Context, input FlagInput) (*domain.FineTuneRecord, error)
	ListFlagged(ctx context.Context, offset, limit int) ([]domain.FineTuneRecord, int, error)
	GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error)
	TriggerTraining(ctx context.Context) (*TrainingResult, error)
}

type fineTuneService struct {
	repo        port.FineTuneRepository
	storage     port.ObjectStorage
	trainer     port.Trainer
	notifier    port.Notifier
	cfg         *config.S3Config
	maxFileSize int64
	log         zerolog.Logger
}

// NewFineTuneService creates a new FineTuneService implementation.
func NewFineTuneService(
	repo port.FineTuneRepository,
	storage port.ObjectStorage,
	trainer port.Trainer,
	notifier port.Notifier,
	cfg *config.S3Config,
	maxFileSize int64,
	log zerolog.Logger,
) FineTuneService {
	return &fineTuneService{
		repo:        repo,
		storage:     storage,
		trainer:     trainer,
		notifier:    notifier,
		cfg:         cfg,
		maxFileSize: maxFileSize,
		log:         log,
	}
}

func (s *fineTuneService) Flag(ctx context.Context, input FlagInput) (*domain.FineTuneRecord, error) {
	contentType, err := domain.ContentTypeForFile(input.FileName)
	if err != nil {
		return nil, err
	}
	if s.maxFileSize > 0 && input.Size > s.maxFileSize {
		return nil, domain.ErrFileTooLarge
	}
	expected, err := expectedPayload(input.ExpectedJSON)
	if err != nil {
		return nil, err
	}

	docType := input.DocumentType
	if docType == "" {
		docType = domain.DocumentTypeInvoice
	}

	id := uuid.New()
	fileName := filepath.Base(input.FileName)
	key := fmt.Sprintf("%s/%s/%s", s.keyPrefix(), id, fileName)

	s.log.Info().
		Str("record_id", id.String()).
		Str("file_name", fileName).
		Str("backend", input.Backend).
		Int64("size", input.Size).
		Msg("fineTuneService.Flag: uploading flagged document")

	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        input.File,
		ContentType: contentType,
		Size:        input.Size,
	}); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("fineTuneService.Flag: upload failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
	}

	rec := &domain.FineTuneRecord{
		ID:           id,
		FileName:     fileName,
		FileURL:      fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key),
		Backend:      input.Backend,
		DocumentType: docType,
		ExpectedJSON: expected,
		Status:       domain.FineTuneStatusNeeded,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if delErr := s.storage.Delete(ctx, s.cfg.Bucket, key); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", key).Msg("fineTuneService.Flag: orphaned object not removed")
		}
		return nil, fmt.Errorf("saving fine-tune record: %w", err)
	}

	if err := s.notifier.NotifyFlagged(ctx, port.FlagNotice{
		RecordID:     rec.ID,
		FileName:     rec.FileName,
		FileURL:      rec.FileURL,
		Backend:      rec.Backend,
		DocumentType: rec.DocumentType,
	}); err != nil {
		s.log.Warn().Err(err).Str("record_id", id.String()).Msg("fineTuneService.Flag: notification failed")
	}

	return rec, nil
}

func (s *fineTuneService) ListFlagged(ctx context.Context, offset, limit int) ([]domain.FineTuneRecord, int, error) {
	return s.repo.ListByStatus(ctx, domain.FineTuneStatusNeeded, offset, limit)
}

func (s *fineTuneService) GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	bucket, key, ok := splitObjectURL(rec.FileURL)
	if !ok {
		return "", fmt.Errorf("record %s has no object location: %q", id, rec.FileURL)
	}
	expiry := time.Duration(s.cfg.PresignExpiry) * time.Second
	if expiry <= 0 {
		expiry = time.Hour
	}
	return s.storage.PresignGetURL(ctx, bucket, key, expiry)
}

func (s *fineTuneService) TriggerTraining(ctx context.Context) (*TrainingResult, error) {
	var (
		docs    []port.TrainingDocument
		ids     []uuid.UUID
		docType domain.DocumentType
		skipped int
	)
	for offset := 0; ; offset += trainingPageSize {
		page, total, err := s.repo.ListByStatus(ctx, domain.FineTuneStatusNeeded, offset, trainingPageSize)
		if err != nil {
			return nil, fmt.Errorf("listing flagged documents: %w", err)
		}
		for i := range page {
			rec := &page[i]
			expected, ok := trainingLabel(rec.ExpectedJSON)
			if !ok {
				skipped++
				s.log.Warn().
					Str("record_id", rec.ID.String()).
					Str("file_name", rec.FileName).
					Msg("fineTuneService.TriggerTraining: skipping record with unparsable expected JSON")
				continue
			}
			if docType == "" {
				docType = rec.DocumentType
			}
			docs = append(docs, port.TrainingDocument{FileURL: rec.FileURL, ExpectedJSON: expected})
			ids = append(ids, rec.ID)
		}
		if len(page) == 0 || offset+len(page) >= total {
			break
		}
	}

	if len(docs) == 0 {
		return nil, domain.ErrNoTrainingData
	}

	modelID, err := s.trainer.Train(ctx, port.TrainInput{
		DocumentType: docType,
		Description:  fmt.Sprintf("Auto-trained model from %d flagged documents", len(docs)),
		Documents:    docs,
	})
	if err != nil {
		s.log.Error().Err(err).Int("documents", len(docs)).Msg("fineTuneService.TriggerTraining: training failed")
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, ids, domain.FineTuneStatusTraining, &modelID); err != nil {
		return nil, fmt.Errorf("marking records as training: %w", err)
	}

	s.log.Info().
		Str("model_id", modelID).
		Int("documents", len(docs)).
		Int("skipped", skipped).
		Msg("fineTuneService.TriggerTraining: training started")

	if err := s.notifier.NotifyTrainingStarted(ctx, modelID, len(docs)); err != nil {
		s.log.Warn().Err(err).Str("model_id", modelID).Msg("fineTuneService.TriggerTraining: notification failed")
	}

	return &TrainingResult{ModelID: modelID, Documents: len(docs), Skipped: skipped}, nil
}

func (s *fineTuneService) keyPrefix() string {
	prefix := strings.Trim(s.cfg.KeyPrefix, "/")
	if prefix == "" {
		return "finetune"
	}
	return prefix
}

// expectedPayload keeps valid JSON as is and stores anything else as a JSON
// string, so the edited text survives until training decides what to do.
func expectedPayload(data []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: expected JSON is empty", domain.ErrInvalidExpectedJSON)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed), nil
	}
	raw, err := json.Marshal(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("encoding expected text: %w", err)
	}
	return raw, nil
}

// trainingLabel returns the expected JSON as an object or array. A stored
// string is unwrapped and fence-stripped first.
func trainingLabel(raw json.RawMessage) (json.RawMessage, bool) {
	payload := raw
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		payload = json.RawMessage(validation.StripFences(text))
	}
	v, err := validation.ParseExpected(payload)
	if err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
	default:
		return nil, false
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return out, true
}

func splitObjectURL(u string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(u, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
