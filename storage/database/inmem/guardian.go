package inmemdb

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/guardian"
)

var errGuardianReferenced = errors.New("guardian is still referenced by students")

type guardianRepository struct {
	db *DB
}

var _ guardian.Repository = (*guardianRepository)(nil) // interface compliance check

func NewGuardianRepository(db *DB) *guardianRepository {
	return &guardianRepository{db: db}
}

func (repo *guardianRepository) QueryGuardians(ctx context.Context, filter *guardian.QueryFilter, _ ...core.DBExecutor) ([]guardian.Guardian, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	guardians := make([]guardian.Guardian, 0, len(repo.db.state.guardians))
	for _, g := range repo.db.state.guardians {
		if filter != nil && filter.Search != "" &&
			!containsFold(g.Name, filter.Search) && !containsFold(g.Email, filter.Search) && !containsFold(g.Phone, filter.Search) {
			continue
		}
		guardians = append(guardians, cloneGuardian(g))
	}
	sort.Slice(guardians, func(i, j int) bool {
		if guardians[i].Name != guardians[j].Name {
			return guardians[i].Name < guardians[j].Name
		}
		return guardians[i].ID < guardians[j].ID
	})
	return guardians, nil
}

func (repo *guardianRepository) GetGuardian(ctx context.Context, id string, _ ...core.DBExecutor) (guardian.Guardian, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.state.guardians[id]; ok {
		return cloneGuardian(g), nil
	}
	return guardian.Guardian{}, guardian.ErrNotFound
}

// findByContact must be called with the lock held.
func (repo *guardianRepository) findByContact(email, phone, exceptID string) (guardian.Guardian, bool) {
	for _, g := range repo.db.state.guardians {
		if g.ID != exceptID && g.Email == email && g.Phone == phone {
			return g, true
		}
	}
	return guardian.Guardian{}, false
}

func (repo *guardianRepository) UpsertGuardian(ctx context.Context, g guardian.Guardian, exec ...core.DBExecutor) (guardian.Guardian, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if existing, ok := repo.findByContact(g.Email, g.Phone, ""); ok {
		return cloneGuardian(existing), false, nil
	}
	g.ID = uuid.New().String()
	g.Students = []string{}
	journal(exec, "guardians", repo.db.state.guardians, g.ID, cloneGuardian)
	repo.db.state.guardians[g.ID] = g
	return cloneGuardian(g), true, nil
}

func (repo *guardianRepository) UpdateGuardian(ctx context.Context, g guardian.Guardian, exec ...core.DBExecutor) (guardian.Guardian, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.state.guardians[g.ID]
	if !ok {
		return guardian.Guardian{}, guardian.ErrNotFound
	}
	if _, taken := repo.findByContact(g.Email, g.Phone, g.ID); taken {
		return guardian.Guardian{}, guardian.ErrContactExists
	}
	g.Students = orig.Students
	journal(exec, "guardians", repo.db.state.guardians, g.ID, cloneGuardian)
	repo.db.state.guardians[g.ID] = g
	return cloneGuardian(g), nil
}

func (repo *guardianRepository) LinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	g, ok := repo.db.state.guardians[guardianID]
	if !ok {
		return guardian.ErrNotFound
	}
	if !hasString(g.Students, studentID) {
		journal(exec, "guardians", repo.db.state.guardians, guardianID, cloneGuardian)
		g.Students = append(g.Students, studentID)
		repo.db.state.guardians[guardianID] = g
	}
	return nil
}

func (repo *guardianRepository) UnlinkStudent(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if g, ok := repo.db.state.guardians[guardianID]; ok {
		journal(exec, "guardians", repo.db.state.guardians, guardianID, cloneGuardian)
		g.Students = removeString(g.Students, studentID)
		repo.db.state.guardians[guardianID] = g
	}
	return nil
}

func (repo *guardianRepository) DeleteGuardian(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.state.guardians[id]; !ok {
		return guardian.ErrNotFound
	}
	for _, s := range repo.db.state.students {
		if s.Guardian == id {
			return errGuardianReferenced
		}
	}
	journal(exec, "guardians", repo.db.state.guardians, id, cloneGuardian)
	delete(repo.db.state.guardians, id)
	return nil
}
