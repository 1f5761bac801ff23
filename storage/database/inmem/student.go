package inmemdb

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
)

var errStudentIDExists = errors.New("student identifier already exists")

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func matchStudent(s student.Student, filter *student.QueryFilter) bool {
	if filter.Grade != "" && s.Grade != filter.Grade {
		return false
	}
	if filter.Search != "" && !containsFold(s.Name, filter.Search) && !containsFold(s.StudentID, filter.Search) {
		return false
	}
	if filter.TeacherID != "" && !hasString(s.Teachers, filter.TeacherID) {
		return false
	}
	if filter.GuardianID != "" && s.Guardian != filter.GuardianID {
		return false
	}
	return true
}

func compareStudents(a, b student.Student, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "age":
		return a.Age - b.Age
	case "grade":
		return strings.Compare(a.Grade, b.Grade)
	case "student_id":
		return strings.Compare(a.StudentID, b.StudentID)
	case "enrollment_date":
		return compareTimes(a.EnrollmentDate, b.EnrollmentDate)
	case "fee_amount":
		return a.FeeAmount.Cmp(b.FeeAmount)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
	return 0
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0, len(repo.db.state.students))
	for _, s := range repo.db.state.students {
		if filter != nil && !matchStudent(s, filter) {
			continue
		}
		students = append(students, cloneStudent(s))
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}, {Field: "student_id", Ascending: true}}
	}
	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareStudents(students[i], students[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, filter student.GetFilter, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	switch {
	case filter.ID != "":
		if s, ok := repo.db.state.students[filter.ID]; ok {
			return cloneStudent(s), nil
		}
	case filter.StudentID != "":
		for _, s := range repo.db.state.students {
			if s.StudentID == filter.StudentID {
				return cloneStudent(s), nil
			}
		}
	}
	return student.Student{}, student.ErrNotFound
}

// countStudents must be called with the lock held.
func (repo *studentRepository) countStudents(prefix string) int {
	if prefix == "" {
		return len(repo.db.state.students)
	}
	var cnt int
	for _, s := range repo.db.state.students {
		if strings.HasPrefix(s.StudentID, prefix+"/") {
			cnt++
		}
	}
	return cnt
}

// lastSequence must be called with the lock held.
func (repo *studentRepository) lastSequence(partition string) int {
	var last int
	for _, s := range repo.db.state.students {
		seq := strings.TrimPrefix(s.StudentID, partition+"/")
		if seq == s.StudentID {
			continue
		}
		if n, err := strconv.Atoi(seq); err == nil && n > last {
			last = n
		}
	}
	return last
}

func (repo *studentRepository) LastSequence(ctx context.Context, partition string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.lastSequence(partition), nil
}

func (repo *studentRepository) CountStudents(ctx context.Context, prefix string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.countStudents(prefix), nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.state.students {
		if other.StudentID == s.StudentID {
			return student.Student{}, errStudentIDExists
		}
	}
	s.ID = uuid.New().String()
	s = cloneStudent(s)
	journal(exec, "students", repo.db.state.students, s.ID, cloneStudent)
	repo.db.state.students[s.ID] = s
	return cloneStudent(s), nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.state.students[s.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	s.StudentID, s.Teachers, s.Subjects, s.CreatedAt = orig.StudentID, orig.Teachers, orig.Subjects, orig.CreatedAt
	journal(exec, "students", repo.db.state.students, s.ID, cloneStudent)
	repo.db.state.students[s.ID] = s
	return cloneStudent(s), nil
}

func teacherHasStudent(t teacher.Teacher, studentID string) bool {
	for _, a := range t.Subjects {
		if hasString(a.Students, studentID) {
			return true
		}
	}
	return false
}

// DeleteStudent also drops the student from its guardian and the teacher assignments.
func (repo *studentRepository) DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	st := repo.db.state
	if _, ok := st.students[id]; !ok {
		return student.ErrNotFound
	}
	journal(exec, "students", st.students, id, cloneStudent)
	delete(st.students, id)

	for gid, g := range st.guardians {
		if hasString(g.Students, id) {
			journal(exec, "guardians", st.guardians, gid, cloneGuardian)
			g.Students = removeString(g.Students, id)
			st.guardians[gid] = g
		}
	}
	for tid, t := range st.teachers {
		if teacherHasStudent(t, id) {
			journal(exec, "teachers", st.teachers, tid, cloneTeacher)
		}
		changed := false
		for i, a := range t.Subjects {
			if hasString(a.Students, id) {
				t.Subjects[i].Students = removeString(a.Students, id)
				changed = true
			}
		}
		if changed {
			st.teachers[tid] = t
		}
	}
	return nil
}
