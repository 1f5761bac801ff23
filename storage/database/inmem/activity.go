package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/activity"
)

type activityRepository struct {
	db *DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateLog(ctx context.Context, l activity.Log, _ ...core.DBExecutor) (activity.Log, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	l.ID = uuid.New().String()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	repo.db.logs = append(repo.db.logs, l)
	return l, nil
}

func (repo *activityRepository) QueryLogs(ctx context.Context, limit int, _ ...core.DBExecutor) ([]activity.Log, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	// newest first; the latest recorded wins ties
	logs := make([]activity.Log, 0, len(repo.db.logs))
	for i := len(repo.db.logs) - 1; i >= 0; i-- {
		logs = append(logs, repo.db.logs[i])
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].CreatedAt.After(logs[j].CreatedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
