package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/update"
)

type updateRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Image     string    `db:"image"`
	Content   string    `db:"content"`
	Category  string    `db:"category"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const updateColumns = "id, title, image, content, category, created_at, updated_at"

type updateRepository struct {
	repo
}

var _ update.Repository = (*updateRepository)(nil) // interface compliance check

func NewUpdateRepository(db *sqlx.DB) *updateRepository {
	return &updateRepository{repo{db: db}}
}

func (r updateRepository) QueryUpdates(ctx context.Context, filter *update.QueryFilter, exec ...core.DBExecutor) ([]update.Update, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil && filter.Category != "" {
		conds = append(conds, "category = $1")
		args = append(args, filter.Category)
	}

	var rows []updateRow
	q := "SELECT " + updateColumns + " FROM news_update" + where(conds) + " ORDER BY created_at DESC"
	if err := sqlx.SelectContext(ctx, r.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying updates")
	}

	updates := make([]update.Update, 0, len(rows))
	for _, row := range rows {
		updates = append(updates, update.Update{
			ID:        row.ID,
			Title:     row.Title,
			Image:     row.Image,
			Content:   row.Content,
			Category:  row.Category,
			CreatedAt: row.CreatedAt.UTC(),
			UpdatedAt: row.UpdatedAt.UTC(),
		})
	}
	return updates, nil
}

func (r updateRepository) CreateUpdate(ctx context.Context, u update.Update, exec ...core.DBExecutor) (update.Update, error) {
	u.ID = uuid.New().String()
	_, err := r.getExec(exec).ExecContext(ctx,
		"INSERT INTO news_update ("+updateColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		u.ID, u.Title, u.Image, u.Content, u.Category, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return update.Update{}, errors.Wrap(err, "inserting update")
	}
	return u, nil
}
