package ses_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/email/ses"
	"docbench/internal/port"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sesv2.SendEmailOutput{}, f.err
}

func TestSESNotifier_NotifyFlagged(t *testing.T) {
	fake := &fakeSES{}
	n, err := ses.NewSESNotifierWithClient(fake, &config.EmailConfig{
		FromAddress: "bench@example.com",
		To:          []string{"ml@example.com"},
	})
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, n.NotifyFlagged(context.Background(), port.FlagNotice{
		RecordID:     id,
		FileName:     "inv.pdf",
		FileURL:      "s3://flags/inv.pdf",
		Backend:      "azure",
		DocumentType: domain.DocumentTypeInvoice,
	}))

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "docbench <bench@example.com>", *in.FromEmailAddress)
	assert.Equal(t, []string{"ml@example.com"}, in.Destination.ToAddresses)
	assert.Contains(t, *in.Content.Simple.Subject.Data, "inv.pdf")
	body := *in.Content.Simple.Body.Text.Data
	assert.Contains(t, body, "s3://flags/inv.pdf")
	assert.Contains(t, body, id.String())
}

func TestSESNotifier_NotifyTrainingStarted_Error(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	n, err := ses.NewSESNotifierWithClient(fake, &config.EmailConfig{FromAddress: "a@b.c", To: []string{"x@y.z"}})
	require.NoError(t, err)

	err = n.NotifyTrainingStarted(context.Background(), "finetune-model-1", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Contains(t, *fake.inputs[0].Content.Simple.Body.Text.Data, "3 documents")
}

func TestNewSESNotifierWithClient_Validation(t *testing.T) {
	_, err := ses.NewSESNotifierWithClient(&fakeSES{}, &config.EmailConfig{To: []string{"x@y.z"}})
	assert.Error(t, err)
	_, err = ses.NewSESNotifierWithClient(&fakeSES{}, &config.EmailConfig{FromAddress: "a@b.c"})
	assert.Error(t, err)
}
