package port

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"docbench/internal/domain"
)

// FineTuneRepository persists documents flagged for fine-tuning.
type FineTuneRepository interface {
	Create(ctx context.Context, rec *domain.FineTuneRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FineTuneRecord, error)
	ListByStatus(ctx context.Context, status domain.FineTuneStatus, offset, limit int) ([]domain.FineTuneRecord, int, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.FineTuneStatus, modelID *string) error
}

// TrainingDocument is one labelled example sent to a trainer.
type TrainingDocument struct {
	FileURL      string
	ExpectedJSON json.RawMessage
}

// TrainInput describes a training job.
type TrainInput struct {
	DocumentType domain.DocumentType
	Description  string
	Documents    []TrainingDocument
}

// Trainer starts a custom-model build and returns the new model id.
type Trainer interface {
	Train(ctx context.Context, input TrainInput) (string, error)
}

// FlagNotice summarizes a newly flagged document.
type FlagNotice struct {
	RecordID     uuid.UUID
	FileName     string
	FileURL      string
	Backend      string
	DocumentType domain.DocumentType
}

// Notifier informs maintainers about fine-tune activity.
type Notifier interface {
	NotifyFlagged(ctx context.Context, notice FlagNotice) error
	NotifyTrainingStarted(ctx context.Context, modelID string, documents int) error
}
