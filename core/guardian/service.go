package guardian

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("guardian not found")
	ErrContactExists = errors.New("a guardian with this email and phone already exists")
	ErrHasStudents   = core.NewValidationError(errors.New("guardian still has enrolled students"))
)

type (
	Repository interface {
		QueryGuardians(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Guardian, error)
		GetGuardian(ctx context.Context, id string, exec ...core.DBExecutor) (Guardian, error)
		// UpsertGuardian returns the guardian holding g's (email, phone) pair, creating it from g
		// when none exists. created reports whether a new record was inserted.
		UpsertGuardian(ctx context.Context, g Guardian, exec ...core.DBExecutor) (res Guardian, created bool, err error)
		// UpdateGuardian returns ErrContactExists when the new (email, phone) pair is taken.
		UpdateGuardian(ctx context.Context, g Guardian, exec ...core.DBExecutor) (Guardian, error)
		LinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error
		UnlinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error
		DeleteGuardian(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Query(ctx context.Context, filter *QueryFilter) ([]Guardian, error)
		GetByID(ctx context.Context, id string) (Guardian, error)
		// Resolve finds the Guardian described by desc, creating it when desc carries no ID
		// and no guardian holds its (email, phone) pair.
		Resolve(ctx context.Context, desc Descriptor, exec ...core.DBExecutor) (g Guardian, created bool, err error)
		Update(ctx context.Context, g Guardian, ug UpdateGuardian) (Guardian, error)
		Delete(ctx context.Context, id string) error
		LinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error
		UnlinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Guardian, error) {
	return svc.repo.QueryGuardians(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Guardian, error) {
	return svc.repo.GetGuardian(ctx, id)
}

func (svc *Service) Resolve(ctx context.Context, desc Descriptor, exec ...core.DBExecutor) (Guardian, bool, error) {
	desc.Clean()

	if desc.ID != "" {
		g, err := svc.repo.GetGuardian(ctx, desc.ID, exec...)
		if err != nil {
			return Guardian{}, false, err
		}
		return g, false, nil
	}

	var flds []core.FieldError
	for _, f := range [...]struct{ name, val string }{
		{"name", desc.Name}, {"relationship", desc.Relationship}, {"phone", desc.Phone},
	} {
		if f.val == "" {
			flds = append(flds, core.FieldError{Field: "guardian." + f.name, Error: "this field is required"})
		}
	}
	if len(flds) > 0 {
		return Guardian{}, false, core.NewValidationError(nil, flds...)
	}

	now := time.Now().UTC()
	g, created, err := svc.repo.UpsertGuardian(ctx, Guardian{
		Name:         desc.Name,
		Email:        desc.Email,
		Relationship: desc.Relationship,
		Phone:        desc.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, exec...)
	if err != nil {
		return Guardian{}, false, pkgerrors.Wrap(err, "upserting guardian")
	}
	return g, created, nil
}

func (svc *Service) Update(ctx context.Context, g Guardian, ug UpdateGuardian) (Guardian, error) {
	if ug.Name != nil {
		g.Name = *ug.Name
	}
	if ug.Relationship != nil {
		g.Relationship = *ug.Relationship
	}
	if ug.Phone != nil {
		g.Phone = *ug.Phone
	}
	if ug.Email != nil {
		g.Email = *ug.Email
	}
	g.UpdatedAt = time.Now().UTC()

	g, err := svc.repo.UpdateGuardian(ctx, g)
	if err == ErrContactExists {
		return Guardian{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
	}
	return g, err
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	g, err := svc.repo.GetGuardian(ctx, id)
	if err != nil {
		return err
	}
	if len(g.Students) > 0 {
		return ErrHasStudents
	}
	return svc.repo.DeleteGuardian(ctx, id)
}

func (svc *Service) LinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error {
	return svc.repo.LinkStudent(ctx, guardianID, studentID, exec...)
}

func (svc *Service) UnlinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error {
	return svc.repo.UnlinkStudent(ctx, guardianID, studentID, exec...)
}
