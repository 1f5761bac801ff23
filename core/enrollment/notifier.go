package enrollment

import (
	"context"
	"errors"
	"net/mail"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/core/student"
)

const confirmationTemplate = "enrollment_confirmation"

var errNoGuardianEmail = errors.New("guardian has no email address")

// Notifier tells a guardian about a completed enrollment.
type Notifier interface {
	NotifyEnrollment(ctx context.Context, g guardian.Guardian, s student.Student) error
}

type confirmationData struct {
	GuardianName   string
	StudentName    string
	Grade          string
	StudentID      string
	EnrollmentDate string
	FeeAmount      string
}

// EmailNotifier sends the enrollment confirmation email.
type EmailNotifier struct {
	mailSvc core.EmailService
}

var _ Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(mailSvc core.EmailService) *EmailNotifier {
	return &EmailNotifier{mailSvc: mailSvc}
}

func (n *EmailNotifier) NotifyEnrollment(ctx context.Context, g guardian.Guardian, s student.Student) error {
	if g.Email == "" {
		return errNoGuardianEmail
	}
	return n.mailSvc.Send(ctx, &core.EmailMessage{
		To:           []mail.Address{{Name: g.Name, Address: g.Email}},
		Subject:      "Enrollment confirmation: " + s.StudentID,
		TemplateName: confirmationTemplate,
		TemplateData: confirmationData{
			GuardianName:   g.Name,
			StudentName:    s.Name,
			Grade:          s.Grade,
			StudentID:      s.StudentID,
			EnrollmentDate: s.EnrollmentDate.Format(core.DateLayout),
			FeeAmount:      s.FeeAmount.String(),
		},
	})
}
