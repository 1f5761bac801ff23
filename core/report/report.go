// Package report tracks reports handed to teachers.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/teacher"
)

// Statuses
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("report not found")
	ErrNoMatch    = core.NewNotFoundError("no reports match the query")
	errEmptyQuery = core.NewValidationError(errors.New("query parameter is required"))
)

type Report struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	AssignedTo  string    `json:"assignedTo"` // teacher ID, empty once the teacher is gone
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewReport struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
	AssignedTo  string `json:"assignedTo" validate:"required"`
}

func (nr *NewReport) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.AssignedTo = core.CleanString(nr.AssignedTo)
	return validate.Struct(nr)
}

type UpdateReport struct {
	Title       *string `json:"title" validate:"omitempty,notblank"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
}

func (ur *UpdateReport) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ur.Title, ur.Description, ur.Status} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(ur)
}

type (
	Repository interface {
		CreateReport(ctx context.Context, r Report, exec ...core.DBExecutor) (Report, error)
		GetReport(ctx context.Context, id string, exec ...core.DBExecutor) (Report, error)
		UpdateReport(ctx context.Context, r Report, exec ...core.DBExecutor) (Report, error)
		// SearchReports returns the report with ID query, or the reports whose title contains
		// query (case-insensitive), newest first.
		SearchReports(ctx context.Context, query string, exec ...core.DBExecutor) ([]Report, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, nr NewReport) (Report, error)
		GetByID(ctx context.Context, id string) (Report, error)
		Update(ctx context.Context, r Report, ur UpdateReport) (Report, error)
		Search(ctx context.Context, query string) ([]Report, error)
	}

	Service struct {
		repo     Repository
		teachers teacher.Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, teachers teacher.Repository) *Service {
	return &Service{repo: repo, teachers: teachers}
}

func (svc *Service) Create(ctx context.Context, nr NewReport) (Report, error) {
	t, err := svc.teachers.GetTeacher(ctx, teacher.GetFilter{ID: nr.AssignedTo})
	if err != nil {
		return Report{}, pkgerrors.Wrap(err, "finding assigned teacher")
	}

	now := time.Now().UTC()
	return svc.repo.CreateReport(ctx, Report{
		Title:       nr.Title,
		Description: nr.Description,
		Status:      StatusPending,
		AssignedTo:  t.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Report, error) {
	return svc.repo.GetReport(ctx, id)
}

func (svc *Service) Update(ctx context.Context, r Report, ur UpdateReport) (Report, error) {
	if ur.Title != nil {
		r.Title = *ur.Title
	}
	if ur.Description != nil {
		r.Description = *ur.Description
	}
	if ur.Status != nil {
		r.Status = *ur.Status
	}
	r.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateReport(ctx, r)
}

func (svc *Service) Search(ctx context.Context, query string) ([]Report, error) {
	query = core.CleanString(query)
	if query == "" {
		return nil, errEmptyQuery
	}
	reports, err := svc.repo.SearchReports(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNoMatch
	}
	return reports, nil
}
