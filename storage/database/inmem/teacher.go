package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/teacher"
)

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil) // interface compliance check

func NewTeacherRepository(db *DB) *teacherRepository {
	return &teacherRepository{db: db}
}

func sortAssignments(t *teacher.Teacher) {
	sort.SliceStable(t.Subjects, func(i, j int) bool {
		if t.Subjects[i].Grade != t.Subjects[j].Grade {
			return t.Subjects[i].Grade < t.Subjects[j].Grade
		}
		return t.Subjects[i].SubjectName < t.Subjects[j].SubjectName
	})
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, filter *teacher.QueryFilter, _ ...core.DBExecutor) ([]teacher.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	teachers := make([]teacher.Teacher, 0, len(repo.db.state.teachers))
	for _, t := range repo.db.state.teachers {
		if filter != nil {
			if filter.Grade != "" && !t.Teaches(filter.Grade) {
				continue
			}
			if filter.Search != "" && !containsFold(t.Name, filter.Search) && !containsFold(t.Email, filter.Search) {
				continue
			}
		}
		teachers = append(teachers, cloneTeacher(t))
	}
	sort.Slice(teachers, func(i, j int) bool {
		if teachers[i].Name != teachers[j].Name {
			return teachers[i].Name < teachers[j].Name
		}
		return teachers[i].ID < teachers[j].ID
	})
	return teachers, nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, filter teacher.GetFilter, _ ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	switch {
	case filter.ID != "":
		if t, ok := repo.db.state.teachers[filter.ID]; ok {
			return cloneTeacher(t), nil
		}
	case filter.Email != "":
		for _, t := range repo.db.state.teachers {
			if t.Email == filter.Email {
				return cloneTeacher(t), nil
			}
		}
	}
	return teacher.Teacher{}, teacher.ErrNotFound
}

func (repo *teacherRepository) CountTeachers(ctx context.Context, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.state.teachers), nil
}

// emailTaken must be called with the lock held.
func (repo *teacherRepository) emailTaken(email, exceptID string) bool {
	for _, t := range repo.db.state.teachers {
		if t.ID != exceptID && t.Email == email {
			return true
		}
	}
	return false
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.emailTaken(t.Email, "") {
		return teacher.Teacher{}, teacher.ErrEmailExists
	}
	t.ID = uuid.New().String()
	t = cloneTeacher(t)
	for i := range t.Subjects {
		t.Subjects[i].ID = uuid.New().String()
	}
	sortAssignments(&t)
	journal(exec, "teachers", repo.db.state.teachers, t.ID, cloneTeacher)
	repo.db.state.teachers[t.ID] = t
	return cloneTeacher(t), nil
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher, exec ...core.DBExecutor) (teacher.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.state.teachers[t.ID]
	if !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	if repo.emailTaken(t.Email, t.ID) {
		return teacher.Teacher{}, teacher.ErrEmailExists
	}
	journal(exec, "teachers", repo.db.state.teachers, t.ID, cloneTeacher)
	orig.Name, orig.Email, orig.Phone, orig.UpdatedAt = t.Name, t.Email, t.Phone, t.UpdatedAt
	repo.db.state.teachers[t.ID] = orig
	return cloneTeacher(orig), nil
}

func (repo *teacherRepository) AddAssignment(ctx context.Context, teacherID string, a teacher.Assignment, exec ...core.DBExecutor) (teacher.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t, ok := repo.db.state.teachers[teacherID]
	if !ok {
		return teacher.Assignment{}, teacher.ErrNotFound
	}
	journal(exec, "teachers", repo.db.state.teachers, teacherID, cloneTeacher)
	a.ID = uuid.New().String()
	a.Students = cloneStrings(a.Students)
	t.Subjects = append(t.Subjects, a)
	sortAssignments(&t)
	repo.db.state.teachers[teacherID] = t

	a.Students = cloneStrings(a.Students)
	return a, nil
}

func (repo *teacherRepository) RemoveAssignment(ctx context.Context, teacherID, assignmentID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t, ok := repo.db.state.teachers[teacherID]
	if !ok {
		return nil
	}
	journal(exec, "teachers", repo.db.state.teachers, teacherID, cloneTeacher)
	subjects := make([]teacher.Assignment, 0, len(t.Subjects))
	for _, a := range t.Subjects {
		if a.ID != assignmentID {
			subjects = append(subjects, a)
		}
	}
	t.Subjects = subjects
	repo.db.state.teachers[teacherID] = t
	return nil
}

func (repo *teacherRepository) AddAssignmentStudent(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, t := range repo.db.state.teachers {
		for i, a := range t.Subjects {
			if a.ID == assignmentID {
				if !hasString(a.Students, studentID) {
					journal(exec, "teachers", repo.db.state.teachers, id, cloneTeacher)
					t.Subjects[i].Students = append(a.Students, studentID)
					repo.db.state.teachers[id] = t
				}
				return nil
			}
		}
	}
	return nil
}

// DeleteTeacher also drops the teacher from students, subjects and reports.
func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	st := repo.db.state
	if _, ok := st.teachers[id]; !ok {
		return teacher.ErrNotFound
	}
	journal(exec, "teachers", st.teachers, id, cloneTeacher)
	delete(st.teachers, id)

	for sid, s := range st.students {
		if hasString(s.Teachers, id) {
			journal(exec, "students", st.students, sid, cloneStudent)
			s.Teachers = removeString(s.Teachers, id)
			st.students[sid] = s
		}
	}
	for sid, s := range st.subjects {
		if hasString(s.Teachers, id) {
			journal(exec, "subjects", st.subjects, sid, cloneSubject)
			s.Teachers = removeString(s.Teachers, id)
			st.subjects[sid] = s
		}
	}
	for rid, r := range st.reports {
		if r.AssignedTo == id {
			journal(exec, "reports", st.reports, rid, nil)
			r.AssignedTo = ""
			st.reports[rid] = r
		}
	}
	return nil
}
