package enrollment_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrollment"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []string // student IDs
}

func (n *fakeNotifier) NotifyEnrollment(_ context.Context, _ guardian.Guardian, s student.Student) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, s.StudentID)
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *fakeRecorder) Record(description, actor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, actor+": "+description)
}

type fixture struct {
	db        *inmemdb.DB
	orch      *enrollment.Orchestrator
	notifier  *fakeNotifier
	recorder  *fakeRecorder
	guardians guardian.Repository
	students  student.Repository
}

func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig(t)
	validate, _ := testutil.NewValidator()
	db := inmemdb.Open()

	teachers := inmemdb.NewTeacherRepository(db)
	subjects := inmemdb.NewSubjectRepository(db)
	guardians := inmemdb.NewGuardianRepository(db)
	students := inmemdb.NewStudentRepository(db)

	testutil.CreateTeacher(t, teachers, "Mr Kabila", "kabila@test.cd", testutil.Teaches("Maths", "5"), testutil.Teaches("French", "6"))
	testutil.CreateTeacher(t, teachers, "Mme Tshala", "tshala@test.cd", testutil.Teaches("History", "5"))
	testutil.CreateSubject(t, subjects, "Maths", "5")
	testutil.CreateSubject(t, subjects, "History", "5")

	f := &fixture{
		db:        db,
		notifier:  &fakeNotifier{},
		recorder:  &fakeRecorder{},
		guardians: guardians,
		students:  students,
	}
	f.orch = enrollment.NewOrchestrator(enrollment.OrchestratorDeps{
		Conf:        conf,
		Logger:      testutil.NewLogger(conf),
		Validate:    validate,
		Tx:          inmemdb.NewTransactor(db),
		Assignments: enrollment.NewAssignmentResolver(teachers, subjects),
		Guardians:   guardian.NewService(guardians),
		Students:    students,
		Teachers:    teachers,
		IDs:         enrollment.NewIDGenerator(inmemdb.NewSequenceRepository(db)),
		Notifier:    f.notifier,
		Recorder:    f.recorder,
	})
	return f
}

func newEnrollment(name, grade, fee string, g guardian.Descriptor) enrollment.NewEnrollment {
	age := 10
	amount := decimal.RequireFromString(fee)
	return enrollment.NewEnrollment{
		Name:           name,
		Age:            &age,
		Grade:          grade,
		EnrollmentDate: "2024-09-02",
		FeeAmount:      &amount,
		Guardian:       &g,
	}
}

var mamaAmani = guardian.Descriptor{Name: "Mama Amani", Relationship: "Mother", Phone: "0990000001", Email: "amani@test.cd"}

func (f *fixture) countStudents(t *testing.T) int {
	t.Helper()
	students, err := f.students.QueryStudents(context.Background(), nil, nil)
	require.NoError(t, err)
	return len(students)
}

func (f *fixture) countGuardians(t *testing.T) int {
	t.Helper()
	guardians, err := f.guardians.QueryGuardians(context.Background(), nil)
	require.NoError(t, err)
	return len(guardians)
}

func TestOrchestrator_Enroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	e, err := f.orch.Enroll(ctx, newEnrollment(" Amani Kalala ", "5", "1234.56", mamaAmani), "admin")
	require.NoError(t, err)

	assert.Equal(t, enrollment.StateComplete, e.State)
	assert.Empty(t, e.FailedAt)
	assert.Nil(t, e.NotifyErr)
	assert.True(t, e.GuardianCreated)

	s := e.Student
	assert.Regexp(t, regexp.MustCompile(`^\d{2}/\d{5}$`), s.StudentID)
	assert.Equal(t, "Amani Kalala", s.Name)
	assert.Equal(t, "1234.56", s.FeeAmount.String())
	assert.Len(t, s.Teachers, 2)
	assert.Len(t, s.Subjects, 2)
	assert.Equal(t, e.Guardian.ID, s.Guardian)
	assert.Equal(t, []string{s.ID}, e.Guardian.Students)

	stored, err := f.students.GetStudent(ctx, student.GetFilter{StudentID: s.StudentID})
	require.NoError(t, err)
	assert.True(t, stored.FeeAmount.Equal(decimal.RequireFromString("1234.56")))

	assert.Equal(t, []string{s.StudentID}, f.notifier.sent)
	require.Len(t, f.recorder.entries, 1)
	assert.Equal(t, fmt.Sprintf("admin: Enrolled student Amani Kalala (%s) in grade 5", s.StudentID), f.recorder.entries[0])

	t.Run("Same guardian is reused", func(t *testing.T) {
		sibling := mamaAmani
		sibling.Name = "Someone Else"
		e2, err := f.orch.Enroll(ctx, newEnrollment("Baraka Kalala", "5", "100", sibling), "admin")
		require.NoError(t, err)

		assert.False(t, e2.GuardianCreated)
		assert.Equal(t, e.Guardian.ID, e2.Guardian.ID)
		assert.Equal(t, "Mama Amani", e2.Guardian.Name)
		assert.ElementsMatch(t, []string{s.ID, e2.Student.ID}, e2.Guardian.Students)
		assert.NotEqual(t, s.StudentID, e2.Student.StudentID)
		assert.Equal(t, 1, f.countGuardians(t))
	})
}

func TestOrchestrator_Enroll_failures(t *testing.T) {
	ctx := context.Background()

	t.Run("Validation", func(t *testing.T) {
		f := setup(t)
		ne := newEnrollment("", "5", "10", mamaAmani)
		ne.Age = nil

		e, err := f.orch.Enroll(ctx, ne, "admin")
		require.Error(t, err)
		assert.Equal(t, enrollment.StateError, e.State)
		assert.Equal(t, enrollment.StateValidating, e.FailedAt)
		assert.Empty(t, f.notifier.sent)
		assert.Empty(t, f.recorder.entries)
	})

	t.Run("Invalid date", func(t *testing.T) {
		f := setup(t)
		ne := newEnrollment("Amani", "5", "10", mamaAmani)
		ne.EnrollmentDate = "2024-02-30"

		e, err := f.orch.Enroll(ctx, ne, "admin")
		require.Error(t, err)
		assert.Equal(t, enrollment.StateValidating, e.FailedAt)
	})

	t.Run("No teachers for the grade", func(t *testing.T) {
		f := setup(t)

		e, err := f.orch.Enroll(ctx, newEnrollment("Amani", "12", "10", mamaAmani), "admin")
		assert.Equal(t, enrollment.ErrNoTeachers, err)
		assert.Equal(t, "no teachers available for this grade", err.Error())
		assert.Equal(t, enrollment.StateResolvingAssignment, e.FailedAt)
		assert.Equal(t, 0, f.countStudents(t))
		assert.Equal(t, 0, f.countGuardians(t))
		assert.Empty(t, f.recorder.entries)
	})

	t.Run("Unknown guardian ID rolls back", func(t *testing.T) {
		f := setup(t)

		e, err := f.orch.Enroll(ctx, newEnrollment("Amani", "5", "10", guardian.Descriptor{ID: "nope"}), "admin")
		assert.Equal(t, guardian.ErrNotFound, err)
		assert.Equal(t, enrollment.StateResolvingGuardian, e.FailedAt)
		assert.Empty(t, e.Student.ID)
		assert.Equal(t, 0, f.countStudents(t))
	})

	t.Run("Notification failure keeps the records", func(t *testing.T) {
		f := setup(t)
		f.notifier.err = errors.New("smtp: connection refused")

		e, err := f.orch.Enroll(ctx, newEnrollment("Amani", "5", "10", mamaAmani), "admin")
		require.NoError(t, err)
		assert.Equal(t, enrollment.StateComplete, e.State)
		require.Error(t, e.NotifyErr)

		var notifErr *core.NotificationError
		assert.True(t, errors.As(e.NotifyErr, &notifErr))
		assert.Equal(t, 1, f.countStudents(t))
		assert.Equal(t, 1, f.countGuardians(t))
		assert.Len(t, f.recorder.entries, 1)
	})
}

func TestOrchestrator_Enroll_concurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := guardian.Descriptor{Name: "Parent", Relationship: "Father", Phone: fmt.Sprintf("09900%05d", i)}
			e, err := f.orch.Enroll(ctx, newEnrollment(fmt.Sprintf("Kid %d", i), "5", "10", g), "admin")
			if assert.NoError(t, err) {
				ids <- e.Student.StudentID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate student ID %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
