package ses

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"docbench/internal/config"
	"docbench/internal/port"
)

// SendEmailAPI is the subset of the SES v2 client the notifier uses.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesNotifier struct {
	client      SendEmailAPI
	fromAddress string
	fromName    string
	to          []string
}

// NewSESNotifier creates a new SES-backed Notifier.
func NewSESNotifier(ctx context.Context, cfg *config.EmailConfig) (port.Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return NewSESNotifierWithClient(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESNotifierWithClient creates a Notifier around an existing client.
func NewSESNotifierWithClient(client SendEmailAPI, cfg *config.EmailConfig) (port.Notifier, error) {
	if cfg.FromAddress == "" {
		return nil, errors.New("email from_address is required for SES")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("email recipients are required for SES")
	}
	name := cfg.FromName
	if name == "" {
		name = "docbench"
	}
	return &sesNotifier{client: client, fromAddress: cfg.FromAddress, fromName: name, to: cfg.To}, nil
}

func (s *sesNotifier) NotifyFlagged(ctx context.Context, n port.FlagNotice) error {
	subject := fmt.Sprintf("Document flagged for fine-tuning: %s", n.FileName)
	text := fmt.Sprintf(
		"A document was flagged for fine-tuning.\n\nFile: %s\nBackend: %s\nDocument type: %s\nStored at: %s\nRecord: %s\n",
		n.FileName, n.Backend, n.DocumentType, n.FileURL, n.RecordID)
	return s.send(ctx, subject, text)
}

func (s *sesNotifier) NotifyTrainingStarted(ctx context.Context, modelID string, documents int) error {
	subject := fmt.Sprintf("Fine-tune training started: %s", modelID)
	text := fmt.Sprintf("Training of model %s started with %d documents.\n", modelID, documents)
	return s.send(ctx, subject, text)
}

func (s *sesNotifier) send(ctx context.Context, subject, text string) error {
	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: s.to,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Text: &types.Content{Data: &text},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}
