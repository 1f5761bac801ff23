package subject

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/teacher"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("subject not found")
)

type (
	Repository interface {
		// QuerySubjects returns subjects ordered by name.
		QuerySubjects(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		CreateSubject(ctx context.Context, s Subject, exec ...core.DBExecutor) (Subject, error)
		UpdateSubject(ctx context.Context, s Subject, exec ...core.DBExecutor) (Subject, error)
		LinkTeacher(ctx context.Context, subjectID, teacherID string, exec ...core.DBExecutor) error
		UnlinkTeacher(ctx context.Context, subjectID, teacherID string, exec ...core.DBExecutor) error
		DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Query(ctx context.Context, filter *QueryFilter) ([]Subject, error)
		GetByID(ctx context.Context, id string) (Subject, error)
		Create(ctx context.Context, ns NewSubject) (Subject, error)
		Update(ctx context.Context, s Subject, us UpdateSubject) (Subject, error)
		Delete(ctx context.Context, id string) error
		// AssignTeacher links the subject to the teacher and gives the teacher an assignment
		// for the subject's name and grade.
		AssignTeacher(ctx context.Context, subjectID, teacherID string) (teacher.Teacher, error)
		// UnassignTeacher undoes AssignTeacher.
		UnassignTeacher(ctx context.Context, subjectID, teacherID string) (teacher.Teacher, error)
	}

	Service struct {
		repo     Repository
		teachers teacher.Repository
		tx       core.Transactor
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, teachers teacher.Repository, tx core.Transactor) *Service {
	return &Service{repo: repo, teachers: teachers, tx: tx}
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) Create(ctx context.Context, ns NewSubject) (Subject, error) {
	now := time.Now().UTC()
	s := Subject{
		Name:      ns.Name,
		Grade:     ns.Grade,
		Teachers:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := svc.tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		var err error
		if s, err = svc.repo.CreateSubject(ctx, s, exec); err != nil {
			return errors.Wrap(err, "creating subject")
		}
		for _, tid := range ns.Teachers {
			if err = svc.assign(ctx, s, tid, exec); err != nil {
				return err
			}
			s.Teachers = append(s.Teachers, tid)
		}
		return nil
	})
	if err != nil {
		return Subject{}, err
	}
	return s, nil
}

func (svc *Service) Update(ctx context.Context, s Subject, us UpdateSubject) (Subject, error) {
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.Grade != nil {
		s.Grade = *us.Grade
	}
	s.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubject(ctx, s)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSubject(ctx, id)
}

func (svc *Service) AssignTeacher(ctx context.Context, subjectID, teacherID string) (teacher.Teacher, error) {
	err := svc.tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		s, err := svc.repo.GetSubject(ctx, subjectID, exec)
		if err != nil {
			return err
		}
		return svc.assign(ctx, s, teacherID, exec)
	})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return svc.teachers.GetTeacher(ctx, teacher.GetFilter{ID: teacherID})
}

func (svc *Service) assign(ctx context.Context, s Subject, teacherID string, exec core.DBExecutor) error {
	t, err := svc.teachers.GetTeacher(ctx, teacher.GetFilter{ID: teacherID}, exec)
	if err != nil {
		return err
	}
	if !s.HasTeacher(t.ID) {
		if err = svc.repo.LinkTeacher(ctx, s.ID, t.ID, exec); err != nil {
			return errors.Wrap(err, "linking teacher")
		}
	}
	if _, ok := t.FindAssignment(s.Name, s.Grade); !ok {
		a := teacher.Assignment{SubjectName: s.Name, Grade: s.Grade, Students: []string{}}
		if _, err = svc.teachers.AddAssignment(ctx, t.ID, a, exec); err != nil {
			return errors.Wrap(err, "adding assignment")
		}
	}
	return nil
}

func (svc *Service) UnassignTeacher(ctx context.Context, subjectID, teacherID string) (teacher.Teacher, error) {
	err := svc.tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		s, err := svc.repo.GetSubject(ctx, subjectID, exec)
		if err != nil {
			return err
		}
		t, err := svc.teachers.GetTeacher(ctx, teacher.GetFilter{ID: teacherID}, exec)
		if err != nil {
			return err
		}
		if !s.HasTeacher(t.ID) {
			return core.NewNotFoundError("teacher is not assigned to this subject")
		}
		if err = svc.repo.UnlinkTeacher(ctx, s.ID, t.ID, exec); err != nil {
			return errors.Wrap(err, "unlinking teacher")
		}
		if a, ok := t.FindAssignment(s.Name, s.Grade); ok {
			if err = svc.teachers.RemoveAssignment(ctx, t.ID, a.ID, exec); err != nil {
				return errors.Wrap(err, "removing assignment")
			}
		}
		return nil
	})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return svc.teachers.GetTeacher(ctx, teacher.GetFilter{ID: teacherID})
}
