// Package enrollment admits new students: it resolves the teachers and subjects of the grade,
// finds or creates the guardian, persists the student with a generated identifier, notifies
// the guardian and records the action.
package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/core/student"
)

// State is a step of an Enrollment.
type State string

const (
	StateValidating          State = "validating"
	StateResolvingAssignment State = "resolving_assignment"
	StateResolvingGuardian   State = "resolving_guardian"
	StatePersistingStudent   State = "persisting_student"
	StateLinkingGuardian     State = "linking_guardian"
	StateNotifying           State = "notifying"
	StateLogging             State = "logging"
	StateComplete            State = "complete"
	StateError               State = "error"
)

// NewEnrollment is the input of an enrollment. Every field is required.
type NewEnrollment struct {
	Name           string               `json:"name" validate:"required,notblank"`
	Age            *int                 `json:"age" validate:"required,min=0"`
	Grade          string               `json:"grade" validate:"required,notblank"`
	EnrollmentDate string               `json:"enrollmentDate" validate:"required,date"`
	FeeAmount      *decimal.Decimal     `json:"fee_amount" validate:"required,min=0"`
	Guardian       *guardian.Descriptor `json:"guardian" validate:"required"`
}

func (ne *NewEnrollment) Clean() {
	ne.Name = core.CleanString(ne.Name)
	ne.Grade = core.CleanString(ne.Grade)
	ne.EnrollmentDate = core.CleanString(ne.EnrollmentDate)
	if ne.Guardian != nil {
		ne.Guardian.Clean()
	}
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.Clean()
	return validate.Struct(ne)
}

// Enrollment tracks one run of the Orchestrator.
type Enrollment struct {
	ID              string // correlation ID, only used in logs
	State           State  // last state reached; StateComplete on success
	FailedAt        State  // state that failed, when State is StateError
	Student         student.Student
	Guardian        guardian.Guardian
	GuardianCreated bool
	NotifyErr       error // set when the guardian could not be notified
	StartedAt       time.Time
}
