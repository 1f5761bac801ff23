package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/activity"
)

type activityRow struct {
	ID          string    `boil:"id"`
	Description string    `boil:"description"`
	Actor       string    `boil:"actor"`
	CreatedAt   time.Time `boil:"created_at"`
}

type activityRepository struct {
	exec boil.ContextExecutor
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(exec core.DBExecutor) *activityRepository {
	return &activityRepository{exec: exec}
}

func (repo activityRepository) getExec(svcExec []core.DBExecutor) boil.ContextExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo activityRepository) CreateLog(ctx context.Context, l activity.Log, exec ...core.DBExecutor) (activity.Log, error) {
	l.ID = uuid.New().String()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := queries.Raw(
		"INSERT INTO activity_log (id, description, actor, created_at) VALUES ($1, $2, $3, $4)",
		l.ID, l.Description, l.Actor, l.CreatedAt,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return activity.Log{}, errors.Wrap(err, "inserting activity log")
	}
	return l, nil
}

func (repo activityRepository) QueryLogs(ctx context.Context, limit int, exec ...core.DBExecutor) ([]activity.Log, error) {
	var rows []activityRow
	err := queries.Raw(
		"SELECT id, description, actor, created_at FROM activity_log ORDER BY created_at DESC, id LIMIT $1", limit,
	).Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying activity logs")
	}

	logs := make([]activity.Log, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, activity.Log{
			ID:          row.ID,
			Description: row.Description,
			Actor:       row.Actor,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return logs, nil
}
