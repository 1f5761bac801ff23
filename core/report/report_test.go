package report_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	teachers := inmemdb.NewTeacherRepository(db)
	svc := report.NewService(inmemdb.NewReportRepository(db), teachers)
	kabila := testutil.CreateTeacher(t, teachers, "Mr Kabila", "kabila@test.cd")

	_, err := svc.Create(ctx, report.NewReport{Title: "Broken window", AssignedTo: "nope"})
	assert.Equal(t, teacher.ErrNotFound, errors.Cause(err))

	window, err := svc.Create(ctx, report.NewReport{Title: "Broken window", Description: "Room 5B", AssignedTo: kabila.ID})
	require.NoError(t, err)
	assert.Equal(t, report.StatusPending, window.Status)
	assert.Equal(t, kabila.ID, window.AssignedTo)

	roof, err := svc.Create(ctx, report.NewReport{Title: "Leaking roof", AssignedTo: kabila.ID})
	require.NoError(t, err)

	tests := []struct {
		name       string
		query      string
		want       []report.Report
		wantErr    error
		wantErrStr string
	}{
		{name: "Blank query", query: "  ", wantErrStr: "query parameter is required"},
		{name: "By ID", query: roof.ID, want: []report.Report{roof}},
		{name: "By title", query: "WINDOW", want: []report.Report{window}},
		{name: "No match", query: "chalk", wantErr: report.ErrNoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Search(ctx, tt.query)
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
				return
			}
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("Update", func(t *testing.T) {
		status := report.StatusInProgress
		got, err := svc.Update(ctx, window, report.UpdateReport{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, report.StatusInProgress, got.Status)
		assert.Equal(t, window.Title, got.Title)

		stored, err := svc.GetByID(ctx, window.ID)
		require.NoError(t, err)
		assert.Equal(t, got, stored)
	})

	t.Run("Unknown report", func(t *testing.T) {
		_, err := svc.GetByID(ctx, "nope")
		assert.Equal(t, report.ErrNotFound, err)
	})
}

func TestUpdateReport_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	status := " completed "
	ur := report.UpdateReport{Status: &status}
	require.NoError(t, ur.Validate(validate))
	assert.Equal(t, "completed", *ur.Status)

	bad := "done"
	ur = report.UpdateReport{Status: &bad}
	assert.Error(t, ur.Validate(validate))
}
