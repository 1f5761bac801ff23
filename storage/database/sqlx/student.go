package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

// lastSequenceQuery reads the NNNNN part of "YY/NNNNN" identifiers.
const lastSequenceQuery = `SELECT COALESCE(MAX(CAST(substring(student_id FROM 4) AS INTEGER)), 0)
	FROM student WHERE student_id LIKE $1 || '/%'`

type studentRow struct {
	ID             string          `db:"id"`
	StudentID      string          `db:"student_id"`
	Name           string          `db:"name"`
	Age            int             `db:"age"`
	Grade          string          `db:"grade"`
	EnrollmentDate time.Time       `db:"enrollment_date"`
	FeeAmount      decimal.Decimal `db:"fee_amount"`
	GuardianID     string          `db:"guardian_id"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (row studentRow) student(teachers, subjects []string) student.Student {
	return student.Student{
		ID:             row.ID,
		StudentID:      row.StudentID,
		Name:           row.Name,
		Age:            row.Age,
		Grade:          row.Grade,
		EnrollmentDate: row.EnrollmentDate.UTC(),
		FeeAmount:      row.FeeAmount,
		Guardian:       row.GuardianID,
		Teachers:       nonNil(teachers),
		Subjects:       nonNil(subjects),
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

const studentColumns = "id, student_id, name, age, grade, enrollment_date, fee_amount, guardian_id, created_at, updated_at"

type studentRepository struct {
	repo
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{repo{db: db}}
}

// hydrate loads the teacher and subject links of rows.
func (r studentRepository) hydrate(ctx context.Context, ext sqlx.ExtContext, rows []studentRow) ([]student.Student, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	teachers, err := loadLinks(ctx, ext, "student_teacher", "student_id", "teacher_id", ids)
	if err != nil {
		return nil, err
	}
	subjects, err := loadLinks(ctx, ext, "student_subject", "student_id", "subject_id", ids)
	if err != nil {
		return nil, err
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student(teachers[row.ID], subjects[row.ID]))
	}
	return students, nil
}

func (r studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
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
			conds = append(conds, "grade = "+arg(filter.Grade))
		}
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(name ILIKE %s OR student_id ILIKE %s)", p, p))
		}
		if filter.TeacherID != "" {
			if _, err := uuid.Parse(filter.TeacherID); err != nil {
				return []student.Student{}, nil
			}
			conds = append(conds, "id IN (SELECT student_id FROM student_teacher WHERE teacher_id = "+arg(filter.TeacherID)+")")
		}
		if filter.GuardianID != "" {
			if _, err := uuid.Parse(filter.GuardianID); err != nil {
				return []student.Student{}, nil
			}
			conds = append(conds, "guardian_id = "+arg(filter.GuardianID))
		}
	}

	ext := r.getExec(exec)
	q := "SELECT " + studentColumns + " FROM student" + where(conds) + orderBy(ordering, "name ASC, student_id ASC")

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, ext, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return r.hydrate(ctx, ext, rows)
}

func (r studentRepository) GetStudent(ctx context.Context, filter student.GetFilter, exec ...core.DBExecutor) (student.Student, error) {
	var (
		q   = "SELECT " + studentColumns + " FROM student WHERE "
		arg string
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return student.Student{}, student.ErrNotFound
		}
		q, arg = q+"id = $1", filter.ID
	case filter.StudentID != "":
		q, arg = q+"student_id = $1", filter.StudentID
	default:
		return student.Student{}, student.ErrNotFound
	}

	ext := r.getExec(exec)
	var row studentRow
	if err := sqlx.GetContext(ctx, ext, &row, q, arg); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	students, err := r.hydrate(ctx, ext, []studentRow{row})
	if err != nil {
		return student.Student{}, err
	}
	return students[0], nil
}

func (r studentRepository) LastSequence(ctx context.Context, partition string, exec ...core.DBExecutor) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.getExec(exec), &n, lastSequenceQuery, partition)
	if err != nil {
		return 0, errors.Wrap(err, "finding last student sequence")
	}
	return n, nil
}

func (r studentRepository) CountStudents(ctx context.Context, prefix string, exec ...core.DBExecutor) (int, error) {
	var (
		cnt int
		err error
	)
	ext := r.getExec(exec)
	if prefix == "" {
		err = sqlx.GetContext(ctx, ext, &cnt, "SELECT COUNT(*) FROM student")
	} else {
		err = sqlx.GetContext(ctx, ext, &cnt, "SELECT COUNT(*) FROM student WHERE student_id LIKE $1 || '/%'", prefix)
	}
	if err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return cnt, nil
}

func (r studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	s.ID = uuid.New().String()
	ext := r.getExec(exec)

	_, err := ext.ExecContext(ctx,
		"INSERT INTO student ("+studentColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		s.ID, s.StudentID, s.Name, s.Age, s.Grade, s.EnrollmentDate.UTC(), s.FeeAmount, s.Guardian, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	for _, tid := range s.Teachers {
		if _, err = ext.ExecContext(ctx, "INSERT INTO student_teacher (student_id, teacher_id) VALUES ($1, $2)", s.ID, tid); err != nil {
			return student.Student{}, errors.Wrap(err, "linking student teacher")
		}
	}
	for _, sid := range s.Subjects {
		if _, err = ext.ExecContext(ctx, "INSERT INTO student_subject (student_id, subject_id) VALUES ($1, $2)", s.ID, sid); err != nil {
			return student.Student{}, errors.Wrap(err, "linking student subject")
		}
	}
	s.Teachers, s.Subjects = nonNil(s.Teachers), nonNil(s.Subjects)
	return s, nil
}

func (r studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	res, err := r.getExec(exec).ExecContext(ctx,
		`UPDATE student SET name = $2, age = $3, grade = $4, enrollment_date = $5, fee_amount = $6,
			guardian_id = $7, updated_at = $8 WHERE id = $1`,
		s.ID, s.Name, s.Age, s.Grade, s.EnrollmentDate.UTC(), s.FeeAmount, s.Guardian, s.UpdatedAt,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return s, nil
}

func (r studentRepository) DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return student.ErrNotFound
	}
	res, err := r.getExec(exec).ExecContext(ctx, "DELETE FROM student WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.ErrNotFound
	}
	return nil
}
