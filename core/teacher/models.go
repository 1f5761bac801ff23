package teacher

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Teacher struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone"`
	Subjects  []Assignment `json:"subjects"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Assignment is a subject a Teacher teaches in one grade, with the students following it.
type Assignment struct {
	ID          string   `json:"id"`
	SubjectName string   `json:"subjectName"`
	Grade       string   `json:"grade"`
	Students    []string `json:"students"`
}

func (a Assignment) matches(subjectName, grade string) bool {
	return a.SubjectName == subjectName && a.Grade == grade
}

// Teaches reports whether t has an assignment in grade.
func (t *Teacher) Teaches(grade string) bool {
	for _, a := range t.Subjects {
		if a.Grade == grade {
			return true
		}
	}
	return false
}

// AssignmentsIn returns the assignments of t in grade.
func (t *Teacher) AssignmentsIn(grade string) []Assignment {
	var res []Assignment
	for _, a := range t.Subjects {
		if a.Grade == grade {
			res = append(res, a)
		}
	}
	return res
}

func (t *Teacher) FindAssignment(subjectName, grade string) (Assignment, bool) {
	for _, a := range t.Subjects {
		if a.matches(subjectName, grade) {
			return a, true
		}
	}
	return Assignment{}, false
}

type NewAssignment struct {
	SubjectName string `json:"subjectName" validate:"required,notblank"`
	Grade       string `json:"grade" validate:"required,notblank"`
}

func (na *NewAssignment) clean() {
	na.SubjectName = core.CleanString(na.SubjectName)
	na.Grade = core.CleanString(na.Grade)
}

// NewTeacher contains information needed to create a new Teacher.
// A Password also creates a teacher user account for the Email.
type NewTeacher struct {
	Name     string          `json:"name" validate:"required,notblank"`
	Email    string          `json:"email" validate:"required,email"`
	Phone    string          `json:"phone"`
	Password string          `json:"password"`
	Subjects []NewAssignment `json:"subjects" validate:"dive"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Phone = core.CleanString(nt.Phone)
	for i := range nt.Subjects {
		nt.Subjects[i].clean()
	}
	return validate.Struct(nt)
}

// UpdateTeacher defines what information may be provided to modify an existing Teacher.
// Subjects, when set, replaces the assignments; assignments kept keep their students.
type UpdateTeacher struct {
	Name     *string          `json:"name" validate:"omitempty,notblank"`
	Email    *string          `json:"email" validate:"omitempty,email"`
	Phone    *string          `json:"phone"`
	Subjects *[]NewAssignment `json:"subjects" validate:"omitempty,dive"`
}

func (ut *UpdateTeacher) Validate(validate *validator.Validate) error {
	if ut.Name != nil {
		*ut.Name = core.CleanString(*ut.Name)
	}
	if ut.Email != nil {
		*ut.Email = core.CleanString(*ut.Email, true /* lower */)
	}
	if ut.Phone != nil {
		*ut.Phone = core.CleanString(*ut.Phone)
	}
	if ut.Subjects != nil {
		for i := range *ut.Subjects {
			(*ut.Subjects)[i].clean()
		}
	}
	return validate.Struct(ut)
}

type QueryFilter struct {
	Grade  string `query:"grade"`
	Search string `query:"search"`
}

type GetFilter struct {
	ID    string
	Email string
}
