package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

const defaultNotifyTimeout = 10 * time.Second

type (
	// GuardianResolver finds or creates guardians and links them to students.
	GuardianResolver interface {
		Resolve(ctx context.Context, desc guardian.Descriptor, exec ...core.DBExecutor) (guardian.Guardian, bool, error)
		LinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error
	}

	// ActivityRecorder records audit entries without blocking.
	ActivityRecorder interface {
		Record(description, actor string)
	}

	OrchestratorDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Tx          core.Transactor
		Assignments *AssignmentResolver
		Guardians   GuardianResolver
		Students    student.Repository
		Teachers    teacher.Repository
		IDs         *IDGenerator
		Notifier    Notifier
		Recorder    ActivityRecorder
	}

	// Orchestrator runs enrollments. Every store write of an enrollment happens in one
	// transaction; notification and activity recording happen after commit and never fail it.
	Orchestrator struct {
		OrchestratorDeps
		notifyTimeout time.Duration
	}
)

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	timeout := defaultNotifyTimeout
	if deps.Conf != nil && deps.Conf.Enrollment.NotifyTimeout > 0 {
		timeout = deps.Conf.Enrollment.NotifyTimeout
	}
	return &Orchestrator{OrchestratorDeps: deps, notifyTimeout: timeout}
}

// Enroll admits a new student on behalf of actor. The returned Enrollment is never nil;
// its State tells how far the run went.
func (o *Orchestrator) Enroll(ctx context.Context, ne NewEnrollment, actor string) (*Enrollment, error) {
	e := &Enrollment{ID: uuid.New().String(), StartedAt: time.Now().UTC()}
	fail := func(err error) (*Enrollment, error) {
		e.FailedAt = e.State
		o.transition(e, StateError)
		o.Logger.Debug(fmt.Sprintf("enrollment %s: failed at %s: %v", e.ID, e.FailedAt, err))
		return e, err
	}

	o.transition(e, StateValidating)
	if err := ne.Validate(o.Validate); err != nil {
		return fail(err)
	}
	enrollDate, err := core.ParseDate(ne.EnrollmentDate)
	if err != nil {
		return fail(core.NewValidationError(nil, core.FieldError{Field: "enrollmentDate", Error: err.Error()}))
	}

	o.transition(e, StateResolvingAssignment)
	asg, err := o.Assignments.Resolve(ctx, ne.Grade)
	if err != nil {
		return fail(err)
	}

	err = o.Tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		o.transition(e, StateResolvingGuardian)
		g, created, err := o.Guardians.Resolve(ctx, *ne.Guardian, exec)
		if err != nil {
			return err
		}
		e.Guardian, e.GuardianCreated = g, created

		o.transition(e, StatePersistingStudent)
		sid, err := o.IDs.Generate(ctx, exec)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		s, err := o.Students.CreateStudent(ctx, student.Student{
			StudentID:      sid,
			Name:           ne.Name,
			Age:            *ne.Age,
			Grade:          ne.Grade,
			EnrollmentDate: enrollDate,
			FeeAmount:      *ne.FeeAmount,
			Guardian:       g.ID,
			Teachers:       asg.TeacherIDs(),
			Subjects:       asg.SubjectIDs(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating student")
		}
		for _, t := range asg.Teachers {
			for _, a := range t.AssignmentsIn(asg.Grade) {
				if err = o.Teachers.AddAssignmentStudent(ctx, a.ID, s.ID, exec); err != nil {
					return errors.Wrap(err, "adding student to teacher assignment")
				}
			}
		}
		e.Student = s

		o.transition(e, StateLinkingGuardian)
		if err = o.Guardians.LinkStudent(ctx, g.ID, s.ID, exec); err != nil {
			return errors.Wrap(err, "linking guardian")
		}
		if !e.Guardian.HasStudent(s.ID) {
			e.Guardian.Students = append(e.Guardian.Students, s.ID)
		}
		return nil
	})
	if err != nil {
		e.Student, e.Guardian, e.GuardianCreated = student.Student{}, guardian.Guardian{}, false
		return fail(classify(err))
	}

	o.transition(e, StateNotifying)
	o.notify(ctx, e)

	o.transition(e, StateLogging)
	o.Recorder.Record(
		fmt.Sprintf("Enrolled student %s (%s) in grade %s", e.Student.Name, e.Student.StudentID, e.Student.Grade),
		actor,
	)

	o.transition(e, StateComplete)
	return e, nil
}

func (o *Orchestrator) transition(e *Enrollment, next State) {
	o.Logger.Debug(fmt.Sprintf("enrollment %s: %s -> %s", e.ID, e.State, next))
	e.State = next
}

// notify runs after commit, so it outlives the request context.
func (o *Orchestrator) notify(ctx context.Context, e *Enrollment) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.notifyTimeout)
	defer cancel()

	if err := o.Notifier.NotifyEnrollment(ctx, e.Guardian, e.Student); err != nil {
		e.NotifyErr = core.NewNotificationError(e.Guardian.Email, err)
		o.Logger.Warn(
			fmt.Sprintf("enrollment %s: guardian not notified of %s", e.ID, e.Student.StudentID),
			e.NotifyErr,
		)
	}
}

// classify keeps client errors as they are and turns everything else into a PersistenceError.
func classify(err error) error {
	switch errors.Cause(err).(type) {
	case *core.NotFoundError, *core.ValidationError, *core.UnavailableError, validator.ValidationErrors:
		return err
	}
	if core.IsPersistence(err) {
		return err
	}
	return core.NewPersistenceError("enrolling student", err)
}
