package student

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/guardian"
)

type Student struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"studentId"` // YY/NNNNN
	Name           string          `json:"name"`
	Age            int             `json:"age"`
	Grade          string          `json:"grade"`
	EnrollmentDate time.Time       `json:"enrollmentDate"` // UTC date
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	Guardian       string          `json:"guardian"` // guardian ID
	Teachers       []string        `json:"teachers"` // teacher IDs
	Subjects       []string        `json:"subjects"` // subject IDs
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// At least one field must be set.
type UpdateStudent struct {
	Name           *string              `json:"name" validate:"omitempty,notblank"`
	Age            *int                 `json:"age" validate:"omitempty,min=0"`
	Grade          *string              `json:"grade" validate:"omitempty,notblank"`
	EnrollmentDate *string              `json:"enrollmentDate" validate:"omitempty,date"`
	FeeAmount      *decimal.Decimal     `json:"fee_amount" validate:"omitempty,min=0"`
	Guardian       *guardian.Descriptor `json:"guardian"`
}

func (us *UpdateStudent) IsEmpty() bool {
	return us.Name == nil && us.Age == nil && us.Grade == nil && us.EnrollmentDate == nil &&
		us.FeeAmount == nil && us.Guardian == nil
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	if us.IsEmpty() {
		return core.NewValidationError(errNoFields)
	}
	for _, s := range []*string{us.Name, us.Grade, us.EnrollmentDate} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if us.Guardian != nil {
		us.Guardian.Clean()
	}
	return validate.Struct(us)
}

// UpdateFee sets a Student's fee amount.
type UpdateFee struct {
	FeeAmount *decimal.Decimal `json:"fee_amount" validate:"required,min=0"`
}

func (uf *UpdateFee) Validate(validate *validator.Validate) error {
	return validate.Struct(uf)
}

type QueryFilter struct {
	Grade      string `query:"grade"`
	Search     string `query:"search"`
	TeacherID  string `query:"teacher"`
	GuardianID string `query:"guardian"`
}

func (qf *QueryFilter) Clean() {
	qf.Grade = core.CleanString(qf.Grade)
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single Student. The first non-empty field wins.
type GetFilter struct {
	ID        string
	StudentID string
}

// OrderingFields are the columns students may be ordered by.
var OrderingFields = []string{"name", "age", "grade", "student_id", "enrollment_date", "fee_amount", "created_at"}
