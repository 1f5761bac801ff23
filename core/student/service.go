package student

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/guardian"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("student not found")
	errNoFields = errors.New("at least one field must be provided")
)

type (
	Repository interface {
		// QueryStudents applies AND operation on available QueryFilter fields and orders by name
		// unless ordering is given.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Student, error)
		// CountStudents counts the students whose identifier starts with prefix; all students when empty.
		CountStudents(ctx context.Context, prefix string, exec ...core.DBExecutor) (int, error)
		// LastSequence returns the highest sequence number used by the identifiers of a year
		// partition, 0 when it has none.
		LastSequence(ctx context.Context, partition string, exec ...core.DBExecutor) (int, error)
		// CreateStudent inserts s with its teacher and subject links.
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// UpdateStudent saves the scalar fields and the guardian of s.
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// DeleteStudent returns ErrNotFound when no student has that ID.
		DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		// QueryByGrade returns a NotFoundError when the grade has no students.
		QueryByGrade(ctx context.Context, grade string) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		GetByStudentID(ctx context.Context, studentID string) (Student, error)
		Count(ctx context.Context) (int, error)
		Update(ctx context.Context, s Student, us UpdateStudent) (Student, error)
		UpdateFee(ctx context.Context, s Student, fee decimal.Decimal) (Student, error)
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		repo      Repository
		guardians guardian.ServiceInterface
		tx        core.Transactor
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, guardians guardian.ServiceInterface, tx core.Transactor) *Service {
	return &Service{repo: repo, guardians: guardians, tx: tx}
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) QueryByGrade(ctx context.Context, grade string) ([]Student, error) {
	grade = core.CleanString(grade)
	students, err := svc.repo.QueryStudents(ctx, &QueryFilter{Grade: grade}, nil)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, core.NewNotFoundError(fmt.Sprintf("no students found in grade %s", grade))
	}
	return students, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByStudentID(ctx context.Context, studentID string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{StudentID: core.CleanString(studentID)})
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountStudents(ctx, "")
}

func (svc *Service) Update(ctx context.Context, s Student, us UpdateStudent) (Student, error) {
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.Age != nil {
		s.Age = *us.Age
	}
	if us.Grade != nil {
		s.Grade = *us.Grade
	}
	if us.EnrollmentDate != nil {
		date, err := core.ParseDate(*us.EnrollmentDate)
		if err != nil {
			return Student{}, core.NewValidationError(nil, core.FieldError{Field: "enrollmentDate", Error: err.Error()})
		}
		s.EnrollmentDate = date
	}
	if us.FeeAmount != nil {
		s.FeeAmount = *us.FeeAmount
	}
	s.UpdatedAt = time.Now().UTC()

	err := svc.tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		if us.Guardian != nil {
			g, _, err := svc.guardians.Resolve(ctx, *us.Guardian, exec)
			if err != nil {
				return err
			}
			if g.ID != s.Guardian {
				if err = svc.guardians.UnlinkStudent(ctx, s.Guardian, s.ID, exec); err != nil {
					return pkgerrors.Wrap(err, "unlinking previous guardian")
				}
				if err = svc.guardians.LinkStudent(ctx, g.ID, s.ID, exec); err != nil {
					return pkgerrors.Wrap(err, "linking guardian")
				}
				s.Guardian = g.ID
			}
		}

		var err error
		s, err = svc.repo.UpdateStudent(ctx, s, exec)
		return err
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

func (svc *Service) UpdateFee(ctx context.Context, s Student, fee decimal.Decimal) (Student, error) {
	s.FeeAmount = fee
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteStudent(ctx, id)
}
