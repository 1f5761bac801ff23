package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/update"
)

type updateRepository struct {
	db *DB
}

var _ update.Repository = (*updateRepository)(nil) // interface compliance check

func NewUpdateRepository(db *DB) *updateRepository {
	return &updateRepository{db: db}
}

func (repo *updateRepository) QueryUpdates(ctx context.Context, filter *update.QueryFilter, _ ...core.DBExecutor) ([]update.Update, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	updates := make([]update.Update, 0, len(repo.db.state.updates))
	for _, u := range repo.db.state.updates {
		if filter != nil && filter.Category != "" && u.Category != filter.Category {
			continue
		}
		updates = append(updates, u)
	}
	sort.Slice(updates, func(i, j int) bool {
		if !updates[i].CreatedAt.Equal(updates[j].CreatedAt) {
			return updates[i].CreatedAt.After(updates[j].CreatedAt)
		}
		return updates[i].ID < updates[j].ID
	})
	return updates, nil
}

func (repo *updateRepository) CreateUpdate(ctx context.Context, u update.Update, exec ...core.DBExecutor) (update.Update, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	u.ID = uuid.New().String()
	journal(exec, "updates", repo.db.state.updates, u.ID, nil)
	repo.db.state.updates[u.ID] = u
	return u, nil
}
