package enrollment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/enrollment"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/core/student"
	emailsvc "github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/tests"
)

func TestEmailNotifier(t *testing.T) {
	conf := testutil.NewConfig(t)
	mail := emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger(conf))
	n := enrollment.NewEmailNotifier(mail)
	ctx := context.Background()

	s := student.Student{
		StudentID:      "24/00007",
		Name:           "Amani Kalala",
		Grade:          "5",
		EnrollmentDate: time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC),
		FeeAmount:      decimal.RequireFromString("1234.56"),
	}

	t.Run("No email", func(t *testing.T) {
		err := n.NotifyEnrollment(ctx, guardian.Guardian{Name: "Papa", Phone: "1"}, s)
		assert.EqualError(t, err, "guardian has no email address")
		assert.Empty(t, mail.Outbox().Messages())
	})

	t.Run("Sent", func(t *testing.T) {
		require.NoError(t, n.NotifyEnrollment(ctx, guardian.Guardian{Name: "Mama Amani", Email: "amani@test.cd"}, s))
		sent := mail.Outbox().Messages()
		require.Len(t, sent, 1)
		assert.Equal(t, "Enrollment confirmation: 24/00007", sent[0].Subject)
		assert.Equal(t, "amani@test.cd", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "1234.56")
		assert.Contains(t, sent[0].TextContent, "2024-09-02")
	})

	t.Run("Provider down", func(t *testing.T) {
		down := errors.New("sendgrid: 503")
		n := enrollment.NewEmailNotifier(emailsvc.FailingService{Err: down})
		assert.Equal(t, down, n.NotifyEnrollment(ctx, guardian.Guardian{Email: "amani@test.cd"}, s))
	})
}
