package guardian

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Guardian struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Relationship string    `json:"relationship"`
	Phone        string    `json:"phone"`
	Students     []string  `json:"students"` // student record IDs
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (g *Guardian) HasStudent(studentID string) bool {
	for _, id := range g.Students {
		if id == studentID {
			return true
		}
	}
	return false
}

// Descriptor identifies a Guardian: either an existing record by ID, or the contact
// fields used to find or create one.
type Descriptor struct {
	ID           string `json:"id"`
	Name         string `json:"name" validate:"required_without=ID"`
	Relationship string `json:"relationship" validate:"required_without=ID"`
	Phone        string `json:"phone" validate:"required_without=ID"`
	Email        string `json:"email" validate:"omitempty,email"`
}

func (d *Descriptor) Clean() {
	d.ID = core.CleanString(d.ID)
	d.Name = core.CleanString(d.Name)
	d.Relationship = core.CleanString(d.Relationship)
	d.Phone = core.CleanString(d.Phone)
	d.Email = core.CleanString(d.Email, true /* lower */)
}

func (d *Descriptor) Validate(validate *validator.Validate) error {
	d.Clean()
	return validate.Struct(d)
}

// UpdateGuardian defines what information may be provided to modify an existing Guardian.
type UpdateGuardian struct {
	Name         *string `json:"name" validate:"omitempty,notblank"`
	Relationship *string `json:"relationship" validate:"omitempty,notblank"`
	Phone        *string `json:"phone" validate:"omitempty,notblank"`
	Email        *string `json:"email" validate:"omitempty,email"`
}

func (ug *UpdateGuardian) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ug.Name, ug.Relationship, ug.Phone} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if ug.Email != nil {
		*ug.Email = core.CleanString(*ug.Email, true /* lower */)
	}
	return validate.Struct(ug)
}

type QueryFilter struct {
	Search string `query:"search"`
}
