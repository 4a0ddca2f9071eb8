package noop

import (
	"context"

	"github.com/rs/zerolog"

	"docbench/internal/port"
)

type noopNotifier struct {
	log zerolog.Logger
}

// NewNoopNotifier creates a Notifier that only logs.
func NewNoopNotifier(log zerolog.Logger) port.Notifier {
	return &noopNotifier{log: log}
}

func (n *noopNotifier) NotifyFlagged(_ context.Context, notice port.FlagNotice) error {
	n.log.Info().
		Str("record_id", notice.RecordID.String()).
		Str("file_name", notice.FileName).
		Str("backend", notice.Backend).
		Str("file_url", notice.FileURL).
		Msg("[NOOP EMAIL] document flagged for fine-tuning")
	return nil
}

func (n *noopNotifier) NotifyTrainingStarted(_ context.Context, modelID string, documents int) error {
	n.log.Info().
		Str("model_id", modelID).
		Int("documents", documents).
		Msg("[NOOP EMAIL] fine-tune training started")
	return nil
}
