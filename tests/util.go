// Package testutil holds the fixtures shared by the test suites.
package testutil

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/subject"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
)

// NewConfig returns the TEST configuration with uploads going to a temporary directory.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	if os.Getenv("ENV") == "" {
		t.Setenv("ENV", "TEST")
	}
	conf := core.NewConfig()
	conf.Media.Dir = t.TempDir()
	return conf
}

// NewLogger returns a quiet logger that never reports to Rollbar.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with every custom rule of the app registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens the TEST PostgreSQL database, migrates and empties it.
// The test is skipped when no database is reachable.
func PrepareDB(t *testing.T, conf *core.Config) *sqlx.DB {
	t.Helper()

	if err := database.CreateIfNotExist(conf); err != nil {
		t.Skipf("PostgreSQL unavailable: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Skipf("PostgreSQL unavailable: %v", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		t.Skipf("PostgreSQL unavailable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Truncate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateTeacher adds a teacher with the given assignments.
func CreateTeacher(t *testing.T, repo teacher.Repository, name, email string, assignments ...teacher.NewAssignment) teacher.Teacher {
	t.Helper()
	now := time.Now().UTC()
	tchr := teacher.Teacher{
		Name:      name,
		Email:     email,
		Subjects:  make([]teacher.Assignment, 0, len(assignments)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, a := range assignments {
		tchr.Subjects = append(tchr.Subjects, teacher.Assignment{SubjectName: a.SubjectName, Grade: a.Grade, Students: []string{}})
	}
	tchr, err := repo.CreateTeacher(context.Background(), tchr)
	if err != nil {
		t.Fatalf("createTeacher() failed: %v", err)
	}
	return tchr
}

func CreateSubject(t *testing.T, repo subject.Repository, name, grade string) subject.Subject {
	t.Helper()
	now := time.Now().UTC()
	s, err := repo.CreateSubject(context.Background(), subject.Subject{
		Name:      name,
		Grade:     grade,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return s
}

// Teaches is shorthand for a teacher assignment.
func Teaches(subjectName, grade string) teacher.NewAssignment {
	return teacher.NewAssignment{SubjectName: subjectName, Grade: grade}
}
