package inmemdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/subject"
	"github.com/trezcool/shule/core/teacher"
)

func TestTransactor(t *testing.T) {
	ctx := context.Background()
	db := Open()
	guardians := NewGuardianRepository(db)
	tx := NewTransactor(db)

	boom := errors.New("boom")
	err := tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		_, _, err := guardians.UpsertGuardian(ctx, guardian.Guardian{Name: "A", Phone: "1"}, exec)
		require.NoError(t, err)
		return boom
	})
	assert.Equal(t, boom, err)
	all, _ := guardians.QueryGuardians(ctx, nil)
	assert.Empty(t, all, "failed transaction is rolled back")

	assert.Panics(t, func() {
		_ = tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
			_, _, _ = guardians.UpsertGuardian(ctx, guardian.Guardian{Name: "B", Phone: "2"}, exec)
			panic("oops")
		})
	})
	all, _ = guardians.QueryGuardians(ctx, nil)
	assert.Empty(t, all, "panicking transaction is rolled back")

	require.NoError(t, tx.InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		_, _, err := guardians.UpsertGuardian(ctx, guardian.Guardian{Name: "C", Phone: "3"}, exec)
		return err
	}))
	all, _ = guardians.QueryGuardians(ctx, nil)
	assert.Len(t, all, 1)
}

func TestTransactor_keepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	db := Open()
	guardians := NewGuardianRepository(db)
	teachers := NewTeacherRepository(db)
	subjects := NewSubjectRepository(db)
	students := NewStudentRepository(db)
	reports := NewReportRepository(db)
	now := time.Now().UTC()

	mama, _, err := guardians.UpsertGuardian(ctx, guardian.Guardian{Name: "Mama", Phone: "1"})
	require.NoError(t, err)
	tchr, err := teachers.CreateTeacher(ctx, teacher.Teacher{Name: "Mr Kabila", Email: "kabila@test.cd", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	sub, err := subjects.CreateSubject(ctx, subject.Subject{Name: "Maths", Grade: "5"})
	require.NoError(t, err)
	require.NoError(t, subjects.LinkTeacher(ctx, sub.ID, tchr.ID))
	std, err := students.CreateStudent(ctx, student.Student{StudentID: "24/00001", Teachers: []string{tchr.ID}})
	require.NoError(t, err)
	rpt, err := reports.CreateReport(ctx, report.Report{Title: "Window", AssignedTo: tchr.ID, CreatedAt: now})
	require.NoError(t, err)

	var papa guardian.Guardian
	boom := errors.New("boom")
	err = NewTransactor(db).InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		var err error
		papa, _, err = guardians.UpsertGuardian(ctx, guardian.Guardian{Name: "Papa", Phone: "2"})
		require.NoError(t, err)

		renamed := mama
		renamed.Name = "Mama Amani"
		_, err = guardians.UpdateGuardian(ctx, renamed, exec)
		require.NoError(t, err)
		require.NoError(t, teachers.DeleteTeacher(ctx, tchr.ID, exec))
		return boom
	})
	assert.Equal(t, boom, err)

	_, err = guardians.GetGuardian(ctx, papa.ID)
	assert.NoError(t, err, "write made outside the transaction is kept")

	got, err := guardians.GetGuardian(ctx, mama.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mama", got.Name)

	_, err = teachers.GetTeacher(ctx, teacher.GetFilter{ID: tchr.ID})
	require.NoError(t, err)
	sub, err = subjects.GetSubject(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{tchr.ID}, sub.Teachers)
	std, err = students.GetStudent(ctx, student.GetFilter{ID: std.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{tchr.ID}, std.Teachers)
	rpt, err = reports.GetReport(ctx, rpt.ID)
	require.NoError(t, err)
	assert.Equal(t, tchr.ID, rpt.AssignedTo)
}

func TestGuardianRepository_UpsertGuardian(t *testing.T) {
	ctx := context.Background()
	repo := NewGuardianRepository(Open())

	g1, created, err := repo.UpsertGuardian(ctx, guardian.Guardian{Name: "Mama", Email: "a@test.cd", Phone: "1"})
	require.NoError(t, err)
	assert.True(t, created)

	g2, created, err := repo.UpsertGuardian(ctx, guardian.Guardian{Name: "Other", Email: "a@test.cd", Phone: "1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, g1, g2)

	_, created, err = repo.UpsertGuardian(ctx, guardian.Guardian{Name: "Papa", Email: "b@test.cd", Phone: "1"})
	require.NoError(t, err)
	assert.True(t, created)

	// returned values are copies
	require.NoError(t, repo.LinkStudent(ctx, g1.ID, "s1"))
	assert.Empty(t, g1.Students)
	got, err := repo.GetGuardian(ctx, g1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, got.Students)
}

func TestSequenceRepository(t *testing.T) {
	ctx := context.Background()
	db := Open()
	students := NewStudentRepository(db)
	for _, sid := range []string{"24/00001", "24/00002", "23/00001"} {
		_, err := students.CreateStudent(ctx, student.Student{StudentID: sid})
		require.NoError(t, err)
	}

	seq := NewSequenceRepository(db)
	for _, want := range []int{3, 4, 5} {
		n, err := seq.NextValue(ctx, "24")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	n, err := seq.NextValue(ctx, "25")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	t.Run("Gaps", func(t *testing.T) {
		for _, sid := range []string{"22/00001", "22/00005"} {
			_, err := students.CreateStudent(ctx, student.Student{StudentID: sid})
			require.NoError(t, err)
		}
		last, err := students.LastSequence(ctx, "22")
		require.NoError(t, err)
		assert.Equal(t, 5, last)

		n, err := seq.NextValue(ctx, "22")
		require.NoError(t, err)
		assert.Equal(t, 6, n)
	})

	t.Run("Rolled back", func(t *testing.T) {
		boom := errors.New("boom")
		err := NewTransactor(db).InTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
			n, err := seq.NextValue(ctx, "26", exec)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			return boom
		})
		assert.Equal(t, boom, err)

		n, err := seq.NextValue(ctx, "26")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestTeacherRepository_DeleteTeacher(t *testing.T) {
	ctx := context.Background()
	db := Open()
	teachers := NewTeacherRepository(db)
	subjects := NewSubjectRepository(db)
	students := NewStudentRepository(db)
	reports := NewReportRepository(db)
	now := time.Now().UTC()

	tchr, err := teachers.CreateTeacher(ctx, teacher.Teacher{Name: "Mr Kabila", Email: "kabila@test.cd", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	sub, err := subjects.CreateSubject(ctx, subject.Subject{Name: "Maths", Grade: "5"})
	require.NoError(t, err)
	require.NoError(t, subjects.LinkTeacher(ctx, sub.ID, tchr.ID))
	std, err := students.CreateStudent(ctx, student.Student{StudentID: "24/00001", Teachers: []string{tchr.ID}})
	require.NoError(t, err)
	rpt, err := reports.CreateReport(ctx, report.Report{Title: "Window", AssignedTo: tchr.ID, CreatedAt: now})
	require.NoError(t, err)

	require.NoError(t, teachers.DeleteTeacher(ctx, tchr.ID))
	assert.Equal(t, teacher.ErrNotFound, teachers.DeleteTeacher(ctx, tchr.ID))

	sub, err = subjects.GetSubject(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, sub.Teachers)
	std, err = students.GetStudent(ctx, student.GetFilter{ID: std.ID})
	require.NoError(t, err)
	assert.Empty(t, std.Teachers)
	rpt, err = reports.GetReport(ctx, rpt.ID)
	require.NoError(t, err)
	assert.Empty(t, rpt.AssignedTo)
}
