package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/report"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) *reportRepository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) CreateReport(ctx context.Context, r report.Report, exec ...core.DBExecutor) (report.Report, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r.ID = uuid.New().String()
	journal(exec, "reports", repo.db.state.reports, r.ID, nil)
	repo.db.state.reports[r.ID] = r
	return r, nil
}

func (repo *reportRepository) GetReport(ctx context.Context, id string, _ ...core.DBExecutor) (report.Report, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.state.reports[id]; ok {
		return r, nil
	}
	return report.Report{}, report.ErrNotFound
}

func (repo *reportRepository) UpdateReport(ctx context.Context, r report.Report, exec ...core.DBExecutor) (report.Report, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.state.reports[r.ID]
	if !ok {
		return report.Report{}, report.ErrNotFound
	}
	r.AssignedTo, r.CreatedAt = orig.AssignedTo, orig.CreatedAt
	journal(exec, "reports", repo.db.state.reports, r.ID, nil)
	repo.db.state.reports[r.ID] = r
	return r, nil
}

func (repo *reportRepository) SearchReports(ctx context.Context, query string, _ ...core.DBExecutor) ([]report.Report, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reports := make([]report.Report, 0)
	for _, r := range repo.db.state.reports {
		if r.ID == query || containsFold(r.Title, query) {
			reports = append(reports, r)
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].CreatedAt.After(reports[j].CreatedAt)
		}
		return reports[i].ID < reports[j].ID
	})
	return reports, nil
}
