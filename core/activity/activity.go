// Package activity keeps the append-only audit trail of the school.
package activity

import (
	"context"
	"time"

	"github.com/trezcool/shule/core"
)

const DefaultLimit = 50

type Log struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Actor       string    `json:"actor"`
	CreatedAt   time.Time `json:"created_at"`
}

type (
	Repository interface {
		CreateLog(ctx context.Context, l Log, exec ...core.DBExecutor) (Log, error)
		// QueryLogs returns at most limit entries, newest first.
		QueryLogs(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Log, error)
	}

	ServiceInterface interface {
		Recent(ctx context.Context, limit int) ([]Log, error)
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Recent(ctx context.Context, limit int) ([]Log, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return svc.repo.QueryLogs(ctx, limit)
}
