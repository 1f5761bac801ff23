package subject

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grade     string    `json:"grade"`
	Teachers  []string  `json:"teachers"` // teacher IDs
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Subject) HasTeacher(teacherID string) bool {
	for _, id := range s.Teachers {
		if id == teacherID {
			return true
		}
	}
	return false
}

type NewSubject struct {
	Name     string   `json:"name" validate:"required,notblank"`
	Grade    string   `json:"grade" validate:"required,notblank"`
	Teachers []string `json:"teachers"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Grade = core.CleanString(ns.Grade)
	return validate.Struct(ns)
}

type UpdateSubject struct {
	Name  *string `json:"name" validate:"omitempty,notblank"`
	Grade *string `json:"grade" validate:"omitempty,notblank"`
}

func (us *UpdateSubject) Validate(validate *validator.Validate) error {
	if us.Name != nil {
		*us.Name = core.CleanString(*us.Name)
	}
	if us.Grade != nil {
		*us.Grade = core.CleanString(*us.Grade)
	}
	return validate.Struct(us)
}

type QueryFilter struct {
	Grade string `query:"grade"`
}
