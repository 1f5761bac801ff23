package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/subject"
)

type subjectRepository struct {
	db *DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *DB) *subjectRepository {
	return &subjectRepository{db: db}
}

func (repo *subjectRepository) QuerySubjects(ctx context.Context, filter *subject.QueryFilter, _ ...core.DBExecutor) ([]subject.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subjects := make([]subject.Subject, 0, len(repo.db.state.subjects))
	for _, s := range repo.db.state.subjects {
		if filter != nil && filter.Grade != "" && s.Grade != filter.Grade {
			continue
		}
		subjects = append(subjects, cloneSubject(s))
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].Name != subjects[j].Name {
			return subjects[i].Name < subjects[j].Name
		}
		return subjects[i].Grade < subjects[j].Grade
	})
	return subjects, nil
}

func (repo *subjectRepository) GetSubject(ctx context.Context, id string, _ ...core.DBExecutor) (subject.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.state.subjects[id]; ok {
		return cloneSubject(s), nil
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) CreateSubject(ctx context.Context, s subject.Subject, exec ...core.DBExecutor) (subject.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s.ID = uuid.New().String()
	s.Teachers = []string{}
	journal(exec, "subjects", repo.db.state.subjects, s.ID, cloneSubject)
	repo.db.state.subjects[s.ID] = s
	return cloneSubject(s), nil
}

func (repo *subjectRepository) UpdateSubject(ctx context.Context, s subject.Subject, exec ...core.DBExecutor) (subject.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.state.subjects[s.ID]
	if !ok {
		return subject.Subject{}, subject.ErrNotFound
	}
	journal(exec, "subjects", repo.db.state.subjects, s.ID, cloneSubject)
	orig.Name, orig.Grade, orig.UpdatedAt = s.Name, s.Grade, s.UpdatedAt
	repo.db.state.subjects[s.ID] = orig
	return cloneSubject(orig), nil
}

func (repo *subjectRepository) LinkTeacher(ctx context.Context, subjectID, teacherID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.state.subjects[subjectID]
	if !ok {
		return subject.ErrNotFound
	}
	if !hasString(s.Teachers, teacherID) {
		journal(exec, "subjects", repo.db.state.subjects, subjectID, cloneSubject)
		s.Teachers = append(s.Teachers, teacherID)
		repo.db.state.subjects[subjectID] = s
	}
	return nil
}

func (repo *subjectRepository) UnlinkTeacher(ctx context.Context, subjectID, teacherID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if s, ok := repo.db.state.subjects[subjectID]; ok {
		journal(exec, "subjects", repo.db.state.subjects, subjectID, cloneSubject)
		s.Teachers = removeString(s.Teachers, teacherID)
		repo.db.state.subjects[subjectID] = s
	}
	return nil
}

// DeleteSubject also drops the subject from students.
func (repo *subjectRepository) DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	st := repo.db.state
	if _, ok := st.subjects[id]; !ok {
		return subject.ErrNotFound
	}
	journal(exec, "subjects", st.subjects, id, cloneSubject)
	delete(st.subjects, id)
	for sid, s := range st.students {
		if hasString(s.Subjects, id) {
			journal(exec, "students", st.students, sid, cloneStudent)
			s.Subjects = removeString(s.Subjects, id)
			st.students[sid] = s
		}
	}
	return nil
}
