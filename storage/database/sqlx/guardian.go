package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/storage/database"
)

type guardianRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Relationship string    `db:"relationship"`
	Phone        string    `db:"phone"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (row guardianRow) guardian(students []string) guardian.Guardian {
	return guardian.Guardian{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Relationship: row.Relationship,
		Phone:        row.Phone,
		Students:     nonNil(students),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

const guardianColumns = "id, name, email, relationship, phone, created_at, updated_at"

type guardianRepository struct {
	repo
}

var _ guardian.Repository = (*guardianRepository)(nil) // interface compliance check

func NewGuardianRepository(db *sqlx.DB) *guardianRepository {
	return &guardianRepository{repo{db: db}}
}

func (r guardianRepository) hydrate(ctx context.Context, ext sqlx.ExtContext, rows []guardianRow) ([]guardian.Guardian, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	students, err := loadLinks(ctx, ext, "guardian_student", "guardian_id", "student_id", ids)
	if err != nil {
		return nil, err
	}
	guardians := make([]guardian.Guardian, 0, len(rows))
	for _, row := range rows {
		guardians = append(guardians, row.guardian(students[row.ID]))
	}
	return guardians, nil
}

func (r guardianRepository) QueryGuardians(ctx context.Context, filter *guardian.QueryFilter, exec ...core.DBExecutor) ([]guardian.Guardian, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil && filter.Search != "" {
		conds = append(conds, "(name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1)")
		args = append(args, "%"+filter.Search+"%")
	}

	ext := r.getExec(exec)
	var rows []guardianRow
	q := "SELECT " + guardianColumns + " FROM guardian" + where(conds) + " ORDER BY name ASC"
	if err := sqlx.SelectContext(ctx, ext, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying guardians")
	}
	return r.hydrate(ctx, ext, rows)
}

func (r guardianRepository) GetGuardian(ctx context.Context, id string, exec ...core.DBExecutor) (guardian.Guardian, error) {
	if _, err := uuid.Parse(id); err != nil {
		return guardian.Guardian{}, guardian.ErrNotFound
	}

	ext := r.getExec(exec)
	var row guardianRow
	if err := sqlx.GetContext(ctx, ext, &row, "SELECT "+guardianColumns+" FROM guardian WHERE id = $1", id); err != nil {
		return guardian.Guardian{}, trapNoRowsErr(err, guardian.ErrNotFound, "finding guardian")
	}
	guardians, err := r.hydrate(ctx, ext, []guardianRow{row})
	if err != nil {
		return guardian.Guardian{}, err
	}
	return guardians[0], nil
}

// UpsertGuardian relies on the (email, phone) unique constraint, so concurrent calls with
// the same contact pair converge on one row. The no-op update locks the existing row and
// makes RETURNING report it; xmax is 0 only for freshly inserted rows.
func (r guardianRepository) UpsertGuardian(ctx context.Context, g guardian.Guardian, exec ...core.DBExecutor) (guardian.Guardian, bool, error) {
	ext := r.getExec(exec)

	var res struct {
		guardianRow
		Created bool `db:"created"`
	}
	err := sqlx.GetContext(ctx, ext, &res,
		`INSERT INTO guardian (`+guardianColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT guardian_email_phone_key DO UPDATE SET email = EXCLUDED.email
		RETURNING `+guardianColumns+`, (xmax = 0) AS created`,
		uuid.New().String(), g.Name, g.Email, g.Relationship, g.Phone, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return guardian.Guardian{}, false, errors.Wrap(err, "upserting guardian")
	}

	guardians, err := r.hydrate(ctx, ext, []guardianRow{res.guardianRow})
	if err != nil {
		return guardian.Guardian{}, false, err
	}
	return guardians[0], res.Created, nil
}

func (r guardianRepository) UpdateGuardian(ctx context.Context, g guardian.Guardian, exec ...core.DBExecutor) (guardian.Guardian, error) {
	res, err := r.getExec(exec).ExecContext(ctx,
		"UPDATE guardian SET name = $2, email = $3, relationship = $4, phone = $5, updated_at = $6 WHERE id = $1",
		g.ID, g.Name, g.Email, g.Relationship, g.Phone, g.UpdatedAt,
	)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return guardian.Guardian{}, guardian.ErrContactExists
		}
		return guardian.Guardian{}, errors.Wrap(err, "updating guardian")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return guardian.Guardian{}, guardian.ErrNotFound
	}
	return g, nil
}

func (r guardianRepository) LinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error {
	_, err := r.getExec(exec).ExecContext(ctx,
		"INSERT INTO guardian_student (guardian_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		guardianID, studentID,
	)
	return errors.Wrap(err, "linking guardian student")
}

func (r guardianRepository) UnlinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error {
	_, err := r.getExec(exec).ExecContext(ctx,
		"DELETE FROM guardian_student WHERE guardian_id = $1 AND student_id = $2",
		guardianID, studentID,
	)
	return errors.Wrap(err, "unlinking guardian student")
}

func (r guardianRepository) DeleteGuardian(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := uuid.Parse(id); err != nil {
		return guardian.ErrNotFound
	}
	res, err := r.getExec(exec).ExecContext(ctx, "DELETE FROM guardian WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting guardian")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return guardian.ErrNotFound
	}
	return nil
}
