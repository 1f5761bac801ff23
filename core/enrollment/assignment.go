package enrollment

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/subject"
	"github.com/trezcool/shule/core/teacher"
)

// ErrNoTeachers is returned when nobody teaches the requested grade.
var ErrNoTeachers = core.NewUnavailableError("no teachers available for this grade")

// Assignment is what a student of Grade is taught, and by whom.
type Assignment struct {
	Grade    string
	Teachers []teacher.Teacher
	Subjects []subject.Subject
}

func (a Assignment) TeacherIDs() []string {
	ids := make([]string, 0, len(a.Teachers))
	for _, t := range a.Teachers {
		ids = append(ids, t.ID)
	}
	return ids
}

func (a Assignment) SubjectIDs() []string {
	ids := make([]string, 0, len(a.Subjects))
	for _, s := range a.Subjects {
		ids = append(ids, s.ID)
	}
	return ids
}

type AssignmentResolver struct {
	teachers teacher.Repository
	subjects subject.Repository
}

func NewAssignmentResolver(teachers teacher.Repository, subjects subject.Repository) *AssignmentResolver {
	return &AssignmentResolver{teachers: teachers, subjects: subjects}
}

// Resolve returns the teachers with an assignment in grade and the subjects of grade.
// It fails with ErrNoTeachers when there are no such teachers; having no subjects is fine.
func (r *AssignmentResolver) Resolve(ctx context.Context, grade string, exec ...core.DBExecutor) (Assignment, error) {
	teachers, err := r.teachers.QueryTeachers(ctx, &teacher.QueryFilter{Grade: grade}, exec...)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "querying teachers")
	}
	if len(teachers) == 0 {
		return Assignment{}, ErrNoTeachers
	}

	subjects, err := r.subjects.QuerySubjects(ctx, &subject.QueryFilter{Grade: grade}, exec...)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "querying subjects")
	}
	return Assignment{Grade: grade, Teachers: teachers, Subjects: subjects}, nil
}
