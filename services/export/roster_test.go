package exportsvc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/shule/core/student"
)

func TestRoster(t *testing.T) {
	date := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	students := []student.Student{
		{StudentID: "24/00001", Name: "Amani", Age: 9, Grade: "4", EnrollmentDate: date, FeeAmount: decimal.RequireFromString("1234.56"), Guardian: "g1"},
		{StudentID: "24/00002", Name: "Baraka", Age: 10, Grade: "4", EnrollmentDate: date, FeeAmount: decimal.RequireFromString("100"), Guardian: "g2"},
	}
	names := map[string]string{"g1": "Zawadi"}

	buf, err := Roster(students, func(id string) string { return names[id] })
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, RosterSheet, f.GetSheetName(0))
	rows, err := f.GetRows(RosterSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, append(append([]string(nil), RosterHeader...), "Guardian"), rows[0])
	assert.Equal(t, []string{"24/00001", "Amani", "9", "4", "2024-09-02", "1234.56", "Zawadi"}, rows[1])
	assert.Equal(t, []string{"24/00002", "Baraka", "10", "4", "2024-09-02", "100.00"}, rows[2])
}

func TestRoster_empty(t *testing.T) {
	buf, err := Roster(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(RosterSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{RosterHeader}, rows)
}

func TestRosterFilename(t *testing.T) {
	assert.Equal(t, "students.xlsx", RosterFilename(""))
	assert.Equal(t, "students-4.xlsx", RosterFilename("4"))
}
