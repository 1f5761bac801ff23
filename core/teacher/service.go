package teacher

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("teacher not found")
	ErrEmailExists = errors.New("a teacher with this email already exists")
)

type (
	Repository interface {
		// QueryTeachers returns teachers ordered by name. QueryFilter.Grade keeps teachers with
		// at least one assignment in that grade.
		QueryTeachers(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Teacher, error)
		GetTeacher(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Teacher, error)
		CountTeachers(ctx context.Context, exec ...core.DBExecutor) (int, error)
		// CreateTeacher inserts t and its assignments; it returns ErrEmailExists on duplicate email.
		CreateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		// UpdateTeacher saves the scalar fields of t; it returns ErrEmailExists on duplicate email.
		UpdateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		AddAssignment(ctx context.Context, teacherID string, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		RemoveAssignment(ctx context.Context, teacherID, assignmentID string, exec ...core.DBExecutor) error
		AddAssignmentStudent(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) error
		DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Query(ctx context.Context, filter *QueryFilter) ([]Teacher, error)
		GetByID(ctx context.Context, id string) (Teacher, error)
		GetByEmail(ctx context.Context, email string) (Teacher, error)
		Create(ctx context.Context, nt NewTeacher) (Teacher, error)
		Update(ctx context.Context, t Teacher, ut UpdateTeacher) (Teacher, error)
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		repo   Repository
		usrSvc user.ServiceInterface
		tx     core.Transactor
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, usrSvc user.ServiceInterface, tx core.Transactor) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, tx: tx}
}

func emailExistsErr() error {
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Create saves a new Teacher. When nt.Password is set, a teacher user account is created
// for nt.Email too, and the Teacher is removed again if that fails.
func (svc *Service) Create(ctx context.Context, nt NewTeacher) (Teacher, error) {
	now := time.Now().UTC()
	t := Teacher{
		Name:      nt.Name,
		Email:     nt.Email,
		Phone:     nt.Phone,
		Subjects:  make([]Assignment, 0, len(nt.Subjects)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, na := range nt.Subjects {
		if _, dup := t.FindAssignment(na.SubjectName, na.Grade); !dup {
			t.Subjects = append(t.Subjects, Assignment{SubjectName: na.SubjectName, Grade: na.Grade, Students: []string{}})
		}
	}

	err := svc.tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		var err error
		t, err = svc.repo.CreateTeacher(ctx, t, exec)
		return err
	})
	if err != nil {
		if err == ErrEmailExists {
			return Teacher{}, emailExistsErr()
		}
		return Teacher{}, pkgerrors.Wrap(err, "creating teacher")
	}

	if nt.Password != "" {
		_, err = svc.usrSvc.Create(ctx, user.NewUser{
			Name:            nt.Name,
			Email:           nt.Email,
			Password:        nt.Password,
			PasswordConfirm: nt.Password,
			Roles:           []string{user.RoleTeacher},
		})
		if err != nil {
			if dErr := svc.repo.DeleteTeacher(ctx, t.ID); dErr != nil {
				return Teacher{}, pkgerrors.Wrap(dErr, fmt.Sprintf("removing teacher after account failure (%v)", err))
			}
			return Teacher{}, pkgerrors.Wrap(err, "creating teacher account")
		}
	}
	return t, nil
}

func (svc *Service) Update(ctx context.Context, t Teacher, ut UpdateTeacher) (Teacher, error) {
	if ut.Name != nil {
		t.Name = *ut.Name
	}
	if ut.Email != nil {
		t.Email = *ut.Email
	}
	if ut.Phone != nil {
		t.Phone = *ut.Phone
	}
	t.UpdatedAt = time.Now().UTC()

	err := svc.tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		if _, err := svc.repo.UpdateTeacher(ctx, t, exec); err != nil {
			return err
		}
		if ut.Subjects == nil {
			return nil
		}

		wanted := *ut.Subjects
		for _, a := range t.Subjects {
			keep := false
			for _, na := range wanted {
				if a.matches(na.SubjectName, na.Grade) {
					keep = true
					break
				}
			}
			if !keep {
				if err := svc.repo.RemoveAssignment(ctx, t.ID, a.ID, exec); err != nil {
					return pkgerrors.Wrap(err, "removing assignment")
				}
			}
		}
		for _, na := range wanted {
			if _, ok := t.FindAssignment(na.SubjectName, na.Grade); ok {
				continue
			}
			a := Assignment{SubjectName: na.SubjectName, Grade: na.Grade, Students: []string{}}
			if _, err := svc.repo.AddAssignment(ctx, t.ID, a, exec); err != nil {
				return pkgerrors.Wrap(err, "adding assignment")
			}
			t.Subjects = append(t.Subjects, a) // avoids duplicates within wanted
		}
		return nil
	})
	if err != nil {
		if pkgerrors.Cause(err) == ErrEmailExists {
			return Teacher{}, emailExistsErr()
		}
		return Teacher{}, pkgerrors.Wrap(err, "updating teacher")
	}
	return svc.repo.GetTeacher(ctx, GetFilter{ID: t.ID})
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTeacher(ctx, id)
}
