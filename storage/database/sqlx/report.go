package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/report"
)

type reportRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	Status      string      `db:"status"`
	AssignedTo  null.String `db:"assigned_to"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (row reportRow) report() report.Report {
	return report.Report{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description.String,
		Status:      row.Status,
		AssignedTo:  row.AssignedTo.String,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

const reportColumns = "id, title, description, status, assigned_to, created_at, updated_at"

type reportRepository struct {
	repo
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *sqlx.DB) *reportRepository {
	return &reportRepository{repo{db: db}}
}

func (r reportRepository) CreateReport(ctx context.Context, rep report.Report, exec ...core.DBExecutor) (report.Report, error) {
	rep.ID = uuid.New().String()
	_, err := r.getExec(exec).ExecContext(ctx,
		"INSERT INTO report ("+reportColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		rep.ID, rep.Title, null.NewString(rep.Description, rep.Description != ""), rep.Status,
		null.NewString(rep.AssignedTo, rep.AssignedTo != ""), rep.CreatedAt, rep.UpdatedAt,
	)
	if err != nil {
		return report.Report{}, errors.Wrap(err, "inserting report")
	}
	return rep, nil
}

func (r reportRepository) GetReport(ctx context.Context, id string, exec ...core.DBExecutor) (report.Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return report.Report{}, report.ErrNotFound
	}
	var row reportRow
	if err := sqlx.GetContext(ctx, r.getExec(exec), &row, "SELECT "+reportColumns+" FROM report WHERE id = $1", id); err != nil {
		return report.Report{}, trapNoRowsErr(err, report.ErrNotFound, "finding report")
	}
	return row.report(), nil
}

func (r reportRepository) UpdateReport(ctx context.Context, rep report.Report, exec ...core.DBExecutor) (report.Report, error) {
	res, err := r.getExec(exec).ExecContext(ctx,
		"UPDATE report SET title = $2, description = $3, status = $4, updated_at = $5 WHERE id = $1",
		rep.ID, rep.Title, null.NewString(rep.Description, rep.Description != ""), rep.Status, rep.UpdatedAt,
	)
	if err != nil {
		return report.Report{}, errors.Wrap(err, "updating report")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return report.Report{}, report.ErrNotFound
	}
	return rep, nil
}

func (r reportRepository) SearchReports(ctx context.Context, query string, exec ...core.DBExecutor) ([]report.Report, error) {
	var (
		rows []reportRow
		err  error
	)
	ext := r.getExec(exec)
	if _, pErr := uuid.Parse(query); pErr == nil {
		err = sqlx.SelectContext(ctx, ext, &rows,
			"SELECT "+reportColumns+" FROM report WHERE id = $1 OR title ILIKE $2 ORDER BY created_at DESC",
			query, "%"+query+"%")
	} else {
		err = sqlx.SelectContext(ctx, ext, &rows,
			"SELECT "+reportColumns+" FROM report WHERE title ILIKE $1 ORDER BY created_at DESC",
			"%"+query+"%")
	}
	if err != nil {
		return nil, errors.Wrap(err, "searching reports")
	}

	reports := make([]report.Report, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, row.report())
	}
	return reports, nil
}
