// Package exportsvc renders school records as spreadsheets.
package exportsvc

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

const (
	RosterSheet       = "Students"
	RosterContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RosterHeader is the first row of a roster.
var RosterHeader = []string{"Student ID", "Name", "Age", "Grade", "Enrollment Date", "Fee Amount"}

// GuardianNamer resolves the guardian column of a roster; it may be nil.
type GuardianNamer func(guardianID string) string

// Roster writes students to a single-sheet xlsx workbook, one row per student.
func Roster(students []student.Student, guardianName GuardianNamer) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), RosterSheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}

	header := RosterHeader
	if guardianName != nil {
		header = append(append([]string(nil), RosterHeader...), "Guardian")
	}
	if err := setRow(f, 1, toCells(header)); err != nil {
		return nil, err
	}

	for i, s := range students {
		row := []interface{}{
			s.StudentID,
			s.Name,
			s.Age,
			s.Grade,
			s.EnrollmentDate.Format(core.DateLayout),
			s.FeeAmount.StringFixed(2),
		}
		if guardianName != nil {
			row = append(row, guardianName(s.Guardian))
		}
		if err := setRow(f, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(RosterSheet, "A", "B", 20); err != nil {
		return nil, errors.Wrap(err, "sizing columns")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf, nil
}

func setRow(f *excelize.File, n int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return errors.Wrap(err, "resolving cell")
	}
	if err = f.SetSheetRow(RosterSheet, cell, &values); err != nil {
		return errors.Wrap(err, fmt.Sprintf("writing row %d", n))
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, 0, len(values))
	for _, v := range values {
		cells = append(cells, v)
	}
	return cells
}

// RosterFilename returns the attachment name of the roster of grade, or of every grade.
func RosterFilename(grade string) string {
	if grade == "" {
		return "students.xlsx"
	}
	return fmt.Sprintf("students-%s.xlsx", grade)
}
