package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/storage/database"
)

type teacherRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type assignmentRow struct {
	ID          string `db:"id"`
	TeacherID   string `db:"teacher_id"`
	SubjectName string `db:"subject_name"`
	Grade       string `db:"grade"`
}

const teacherColumns = "id, name, email, phone, created_at, updated_at"

type teacherRepository struct {
	repo
}

var _ teacher.Repository = (*teacherRepository)(nil) // interface compliance check

func NewTeacherRepository(db *sqlx.DB) *teacherRepository {
	return &teacherRepository{repo{db: db}}
}

// hydrate loads the assignments of rows, with their students.
func (r teacherRepository) hydrate(ctx context.Context, ext sqlx.ExtContext, rows []teacherRow) ([]teacher.Teacher, error) {
	teachers := make([]teacher.Teacher, 0, len(rows))
	if len(rows) == 0 {
		return teachers, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var asgRows []assignmentRow
	err := selectIn(ctx, ext, &asgRows,
		"SELECT id, teacher_id, subject_name, grade FROM teacher_subject WHERE teacher_id IN (?) ORDER BY grade, subject_name",
		ids)
	if err != nil {
		return nil, errors.Wrap(err, "loading assignments")
	}
	asgIDs := make([]string, 0, len(asgRows))
	for _, a := range asgRows {
		asgIDs = append(asgIDs, a.ID)
	}
	students, err := loadLinks(ctx, ext, "teacher_subject_student", "teacher_subject_id", "student_id", asgIDs)
	if err != nil {
		return nil, err
	}

	byTeacher := make(map[string][]teacher.Assignment, len(rows))
	for _, a := range asgRows {
		byTeacher[a.TeacherID] = append(byTeacher[a.TeacherID], teacher.Assignment{
			ID:          a.ID,
			SubjectName: a.SubjectName,
			Grade:       a.Grade,
			Students:    nonNil(students[a.ID]),
		})
	}

	for _, row := range rows {
		subjects := byTeacher[row.ID]
		if subjects == nil {
			subjects = []teacher.Assignment{}
		}
		teachers = append(teachers, teacher.Teacher{
			ID:        row.ID,
			Name:      row.Name,
			Email:     row.Email,
			Phone:     row.Phone,
			Subjects:  subjects,
			CreatedAt: row.CreatedAt.UTC(),
			UpdatedAt: row.UpdatedAt.UTC(),
		})
	}
	return teachers, nil
}

func (r teacherRepository) QueryTeachers(ctx context.Context, filter *teacher.QueryFilter, exec ...core.DBExecutor) ([]teacher.Teacher, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.Grade != "" {
			conds = append(conds, "id IN (SELECT teacher_id FROM teacher_subject WHERE grade = "+arg(filter.Grade)+")")
		}
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
		}
	}

	ext := r.getExec(exec)
	var rows []teacherRow
	q := "SELECT " + teacherColumns + " FROM teacher" + where(conds) + " ORDER BY name ASC"
	if err := sqlx.SelectContext(ctx, ext, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	return r.hydrate(ctx, ext, rows)
}

func (r teacherRepository) GetTeacher(ctx context.Context, filter teacher.GetFilter, exec ...core.DBExecutor) (teacher.Teacher, error) {
	var (
		q   = "SELECT " + teacherColumns + " FROM teacher WHERE "
		arg string
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return teacher.Teacher{}, teacher.ErrNotFound
		}
		q, arg = q+"id = $1", filter.ID
	case filter.Email != "":
		q, arg = q+"email = $1", filter.Email
	default:
		return teacher.Teacher{}, teacher.ErrNotFound
	}

	ext := r.getExec(exec)
	var row teacherRow
	if err := sqlx.GetContext(ctx, ext, &row, q, arg); err != nil {
		return teacher.Teacher{}, trapNoRowsErr(err, teacher.ErrNotFound, "finding teacher")
	}
	teachers, err := r.hydrate(ctx, ext, []teacherRow{row})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return teachers[0], nil
}

func (r teacherRepository) CountTeachers(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var cnt int
	if err := sqlx.GetContext(ctx, r.getExec(exec), &cnt, "SELECT COUNT(*) FROM teacher"); err != nil {
		return 0, errors.Wrap(err, "counting teachers")
	}
	return cnt, nil
}

func (r teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	t.ID = uuid.New().String()
	ext := r.getExec(exec)

	_, err := ext.ExecContext(ctx,
		"INSERT INTO teacher ("+teacherColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		t.ID, t.Name, t.Email, t.Phone, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return teacher.Teacher{}, teacher.ErrEmailExists
		}
		return teacher.Teacher{}, errors.Wrap(err, "inserting teacher")
	}

	subjects := make([]teacher.Assignment, 0, len(t.Subjects))
	for _, a := range t.Subjects {
		if a, err = r.AddAssignment(ctx, t.ID, a, exec...); err != nil {
			return teacher.Teacher{}, err
		}
		subjects = append(subjects, a)
	}
	t.Subjects = subjects
	return t, nil
}

func (r teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	res, err := r.getExec(exec).ExecContext(ctx,
		"UPDATE teacher SET name = $2, email = $3, phone = $4, updated_at = $5 WHERE id = $1",
		t.ID, t.Name, t.Email, t.Phone, t.UpdatedAt,
	)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return teacher.Teacher{}, teacher.ErrEmailExists
		}
		return teacher.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return t, nil
}

func (r teacherRepository) AddAssignment(ctx context.Context, teacherID string, a teacher.Assignment, exec ...core.DBExecutor) (teacher.Assignment, error) {
	a.ID = uuid.New().String()
	_, err := r.getExec(exec).ExecContext(ctx,
		"INSERT INTO teacher_subject (id, teacher_id, subject_name, grade) VALUES ($1, $2, $3, $4)",
		a.ID, teacherID, a.SubjectName, a.Grade,
	)
	if err != nil {
		return teacher.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	a.Students = nonNil(a.Students)
	return a, nil
}

func (r teacherRepository) RemoveAssignment(ctx context.Context, teacherID, assignmentID string, exec ...core.DBExecutor) error {
	_, err := r.getExec(exec).ExecContext(ctx,
		"DELETE FROM teacher_subject WHERE id = $1 AND teacher_id = $2", assignmentID, teacherID)
	return errors.Wrap(err, "deleting assignment")
}

func (r teacherRepository) AddAssignmentStudent(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) error {
	_, err := r.getExec(exec).ExecContext(ctx,
		"INSERT INTO teacher_subject_student (teacher_subject_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		assignmentID, studentID,
	)
	return errors.Wrap(err, "adding assignment student")
}

func (r teacherRepository) DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return teacher.ErrNotFound
	}
	res, err := r.getExec(exec).ExecContext(ctx, "DELETE FROM teacher WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return teacher.ErrNotFound
	}
	return nil
}
