// Package dashboard computes the admin dashboard summary.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/activity"
)

const (
	summaryCacheKey = "dashboard:summary"
	recentActivity  = 5
)

type (
	Activity struct {
		Description string `json:"description"`
		Date        string `json:"date"` // YYYY-MM-DD
	}

	Summary struct {
		TotalStudents  int        `json:"totalStudents"`
		TotalTeachers  int        `json:"totalTeachers"`
		RecentActivity []Activity `json:"recentActivity"`
	}

	StudentCounter interface {
		CountStudents(ctx context.Context, prefix string, exec ...core.DBExecutor) (int, error)
	}

	TeacherCounter interface {
		CountTeachers(ctx context.Context, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Summary(ctx context.Context) (Summary, error)
		Invalidate(ctx context.Context)
	}

	Service struct {
		students   StudentCounter
		teachers   TeacherCounter
		activities activity.Repository
		cache      core.Cache // optional
		ttl        time.Duration
		logger     core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

// NewService returns a dashboard Service; cache may be nil.
func NewService(
	students StudentCounter,
	teachers TeacherCounter,
	activities activity.Repository,
	cache core.Cache,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		students:   students,
		teachers:   teachers,
		activities: activities,
		cache:      cache,
		ttl:        conf.Redis.CacheTTL,
		logger:     logger,
	}
}

func (svc *Service) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	if svc.cache != nil {
		err := svc.cache.Get(ctx, summaryCacheKey, &sum)
		if err == nil {
			return sum, nil
		}
		if err != core.ErrCacheMiss {
			svc.logger.Warn(fmt.Sprintf("reading dashboard summary from cache: %v", err), err)
		}
	}

	sum, err := svc.compute(ctx)
	if err != nil {
		return Summary{}, err
	}

	if svc.cache != nil && svc.ttl > 0 {
		if err := svc.cache.Set(ctx, summaryCacheKey, sum, svc.ttl); err != nil {
			svc.logger.Warn(fmt.Sprintf("caching dashboard summary: %v", err), err)
		}
	}
	return sum, nil
}

func (svc *Service) compute(ctx context.Context) (Summary, error) {
	var (
		sum Summary
		err error
	)
	if sum.TotalStudents, err = svc.students.CountStudents(ctx, ""); err != nil {
		return Summary{}, errors.Wrap(err, "counting students")
	}
	if sum.TotalTeachers, err = svc.teachers.CountTeachers(ctx); err != nil {
		return Summary{}, errors.Wrap(err, "counting teachers")
	}

	logs, err := svc.activities.QueryLogs(ctx, recentActivity)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying recent activity")
	}
	sum.RecentActivity = make([]Activity, 0, len(logs))
	for _, l := range logs {
		sum.RecentActivity = append(sum.RecentActivity, Activity{
			Description: l.Description,
			Date:        l.CreatedAt.UTC().Format(core.DateLayout),
		})
	}
	return sum, nil
}

// Invalidate drops the cached summary.
func (svc *Service) Invalidate(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, summaryCacheKey); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating dashboard summary: %v", err), err)
	}
}
