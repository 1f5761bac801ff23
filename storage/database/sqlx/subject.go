package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/subject"
)

type subjectRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Grade     string    `db:"grade"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const subjectColumns = "id, name, grade, created_at, updated_at"

type subjectRepository struct {
	repo
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *sqlx.DB) *subjectRepository {
	return &subjectRepository{repo{db: db}}
}

func (r subjectRepository) hydrate(ctx context.Context, ext sqlx.ExtContext, rows []subjectRow) ([]subject.Subject, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	teachers, err := loadLinks(ctx, ext, "subject_teacher", "subject_id", "teacher_id", ids)
	if err != nil {
		return nil, err
	}
	subjects := make([]subject.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, subject.Subject{
			ID:        row.ID,
			Name:      row.Name,
			Grade:     row.Grade,
			Teachers:  nonNil(teachers[row.ID]),
			CreatedAt: row.CreatedAt.UTC(),
			UpdatedAt: row.UpdatedAt.UTC(),
		})
	}
	return subjects, nil
}

func (r subjectRepository) QuerySubjects(ctx context.Context, filter *subject.QueryFilter, exec ...core.DBExecutor) ([]subject.Subject, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil && filter.Grade != "" {
		conds = append(conds, "grade = $1")
		args = append(args, filter.Grade)
	}

	ext := r.getExec(exec)
	var rows []subjectRow
	q := "SELECT " + subjectColumns + " FROM subject" + where(conds) + " ORDER BY name ASC, grade ASC"
	if err := sqlx.SelectContext(ctx, ext, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return r.hydrate(ctx, ext, rows)
}

func (r subjectRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (subject.Subject, error) {
	if _, err := uuid.Parse(id); err != nil {
		return subject.Subject{}, subject.ErrNotFound
	}

	ext := r.getExec(exec)
	var row subjectRow
	if err := sqlx.GetContext(ctx, ext, &row, "SELECT "+subjectColumns+" FROM subject WHERE id = $1", id); err != nil {
		return subject.Subject{}, trapNoRowsErr(err, subject.ErrNotFound, "finding subject")
	}
	subjects, err := r.hydrate(ctx, ext, []subjectRow{row})
	if err != nil {
		return subject.Subject{}, err
	}
	return subjects[0], nil
}

// CreateSubject inserts s; its Teachers are linked separately with LinkTeacher.
func (r subjectRepository) CreateSubject(ctx context.Context, s subject.Subject, exec ...core.DBExecutor) (subject.Subject, error) {
	s.ID = uuid.New().String()
	_, err := r.getExec(exec).ExecContext(ctx,
		"INSERT INTO subject ("+subjectColumns+") VALUES ($1, $2, $3, $4, $5)",
		s.ID, s.Name, s.Grade, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return subject.Subject{}, errors.Wrap(err, "inserting subject")
	}
	s.Teachers = []string{}
	return s, nil
}

func (r subjectRepository) UpdateSubject(ctx context.Context, s subject.Subject, exec ...core.DBExecutor) (subject.Subject, error) {
	res, err := r.getExec(exec).ExecContext(ctx,
		"UPDATE subject SET name = $2, grade = $3, updated_at = $4 WHERE id = $1",
		s.ID, s.Name, s.Grade, s.UpdatedAt,
	)
	if err != nil {
		return subject.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subject.Subject{}, subject.ErrNotFound
	}
	return s, nil
}

func (r subjectRepository) LinkTeacher(ctx context.Context, subjectID, teacherID string, exec ...core.DBExecutor) error {
	_, err := r.getExec(exec).ExecContext(ctx,
		"INSERT INTO subject_teacher (subject_id, teacher_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		subjectID, teacherID,
	)
	return errors.Wrap(err, "linking subject teacher")
}

func (r subjectRepository) UnlinkTeacher(ctx context.Context, subjectID, teacherID string, exec ...core.DBExecutor) error {
	_, err := r.getExec(exec).ExecContext(ctx,
		"DELETE FROM subject_teacher WHERE subject_id = $1 AND teacher_id = $2",
		subjectID, teacherID,
	)
	return errors.Wrap(err, "unlinking subject teacher")
}

func (r subjectRepository) DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return subject.ErrNotFound
	}
	res, err := r.getExec(exec).ExecContext(ctx, "DELETE FROM subject WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subject.ErrNotFound
	}
	return nil
}
