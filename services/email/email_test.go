package emailsvc

import (
	"context"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/tests"
)

type confirmation struct {
	GuardianName   string
	StudentName    string
	Grade          string
	StudentID      string
	EnrollmentDate string
	FeeAmount      string
}

func newConfirmation() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Mama Amani", Address: "amani@test.cd"}},
		Subject:      "Enrollment confirmation: 24/00001",
		TemplateName: "enrollment_confirmation",
		TemplateData: confirmation{
			GuardianName:   "Mama Amani",
			StudentName:    "Amani Kalala",
			Grade:          "5",
			StudentID:      "24/00001",
			EnrollmentDate: "2024-09-02",
			FeeAmount:      "1234.56",
		},
	}
}

func TestConsoleService_Send(t *testing.T) {
	conf := testutil.NewConfig(t)
	svc := NewConsoleServiceMock(conf, testutil.NewLogger(conf))
	ctx := context.Background()

	tests := []struct {
		name    string
		msg     *core.EmailMessage
		wantErr error
	}{
		{name: "No recipients", msg: &core.EmailMessage{BodyStr: "hi"}, wantErr: errNoRecipients},
		{name: "No content", msg: &core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}}, wantErr: errNoContent},
		{name: "Plain text", msg: &core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, Subject: "Hi", BodyStr: "hello"}},
		{name: "Template", msg: newConfirmation()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, svc.Send(ctx, tt.msg))
		})
	}

	sent := svc.Outbox().Messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "hello", sent[0].TextContent)

	text := sent[1].TextContent
	for _, want := range []string{"Dear Mama Amani", "Amani Kalala", "grade 5", "24/00001", "2024-09-02", "1234.56"} {
		assert.True(t, strings.Contains(text, want), "%q not in %q", want, text)
	}
	assert.NotEmpty(t, sent[1].HTMLContent)

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.Equal(t, context.Canceled, svc.Send(ctx, newConfirmation()))
	})

	t.Run("SendMessages", func(t *testing.T) {
		svc.Outbox().Clear()
		svc.SendMessages(newConfirmation(), &core.EmailMessage{}, newConfirmation())
		assert.Len(t, svc.Outbox().Messages(), 2)
	})
}

func TestConsoleService_compose(t *testing.T) {
	conf := testutil.NewConfig(t)
	svc := NewConsoleService(conf, testutil.NewLogger(conf))

	msg := newConfirmation()
	require.NoError(t, msg.Render(conf))
	require.NoError(t, msg.Attach(strings.NewReader("name,grade\nAmani,5\n"), "roster.csv", "text/csv"))

	body, err := svc.compose(*msg)
	require.NoError(t, err)
	assert.Contains(t, body, "Subject: ["+conf.AppName+"] Enrollment confirmation: 24/00001")
	assert.Contains(t, body, `To: "Mama Amani" <amani@test.cd>`)
	assert.Contains(t, body, "multipart/mixed")
	assert.Contains(t, body, "filename=roster.csv")
}

func TestSendgridService_prepare(t *testing.T) {
	conf := testutil.NewConfig(t)
	svc := NewSendgridService(conf, testutil.NewLogger(conf))

	msg := newConfirmation()
	msg.Cc = []mail.Address{{Address: "office@test.cd"}}
	require.NoError(t, msg.Render(conf))

	m := svc.prepare(*msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "["+conf.AppName+"] Enrollment confirmation: 24/00001", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "amani@test.cd", p.To[0].Address)
	require.Len(t, p.CC, 1)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
}

func TestSendgridService_Send_invalid(t *testing.T) {
	conf := testutil.NewConfig(t)
	svc := NewSendgridService(conf, testutil.NewLogger(conf))

	assert.Equal(t, errNoRecipients, svc.Send(context.Background(), &core.EmailMessage{BodyStr: "hi"}))
	assert.Equal(t, errNoContent, svc.Send(context.Background(), &core.EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}}))
}
