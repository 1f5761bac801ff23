// Package inmemdb is a process-local store implementing every repository. It backs the
// API tests and DEV runs without PostgreSQL.
package inmemdb

import (
	"context"
	"strings"
	"sync"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/guardian"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/subject"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/update"
	"github.com/trezcool/shule/core/user"
)

type (
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex // one transaction at a time

		state *state
		logs  []activity.Log // append-only, never rolled back
	}

	state struct {
		users     map[string]user.User
		guardians map[string]guardian.Guardian
		teachers  map[string]teacher.Teacher
		subjects  map[string]subject.Subject
		students  map[string]student.Student
		sequences map[string]int
		updates   map[string]update.Update
		reports   map[string]report.Report
	}
)

func Open() *DB {
	return &DB{state: newState()}
}

func newState() *state {
	return &state{
		users:     make(map[string]user.User),
		guardians: make(map[string]guardian.Guardian),
		teachers:  make(map[string]teacher.Teacher),
		subjects:  make(map[string]subject.Subject),
		students:  make(map[string]student.Student),
		sequences: make(map[string]int),
		updates:   make(map[string]update.Update),
		reports:   make(map[string]report.Report),
	}
}

// Truncate empties every table.
func (db *DB) Truncate() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state = newState()
	db.logs = nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append(make([]string, 0, len(s)), s...)
}

func cloneTeacher(t teacher.Teacher) teacher.Teacher {
	subjects := make([]teacher.Assignment, 0, len(t.Subjects))
	for _, a := range t.Subjects {
		a.Students = cloneStrings(a.Students)
		subjects = append(subjects, a)
	}
	t.Subjects = subjects
	return t
}

func cloneGuardian(g guardian.Guardian) guardian.Guardian {
	g.Students = cloneStrings(g.Students)
	return g
}

func cloneSubject(s subject.Subject) subject.Subject {
	s.Teachers = cloneStrings(s.Teachers)
	return s
}

func cloneStudent(s student.Student) student.Student {
	s.Teachers = cloneStrings(s.Teachers)
	s.Subjects = cloneStrings(s.Subjects)
	return s
}

func cloneUser(u user.User) user.User {
	u.Roles = cloneStrings(u.Roles)
	if u.PasswordHash != nil {
		u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	}
	return u
}

// memTx is the executor InTx hands to its TxFunc. The repositories of this package run no SQL
// through it: every write they make with it first journals the previous value of the key it
// touches, and a rollback restores only those keys.
type memTx struct {
	core.DBExecutor
	undo []func()
	seen map[string]bool
}

func txOf(exec []core.DBExecutor) *memTx {
	if len(exec) > 0 {
		if tx, ok := exec[0].(*memTx); ok {
			return tx
		}
	}
	return nil
}

// journal remembers how to restore m[key] if the transaction of exec rolls back.
// It must be called with db.mu held, before the first write of the key.
func journal[V any](exec []core.DBExecutor, table string, m map[string]V, key string, clone func(V) V) {
	tx := txOf(exec)
	if tx == nil {
		return
	}
	id := table + "/" + key
	if tx.seen[id] {
		return
	}
	tx.seen[id] = true

	old, existed := m[key]
	if existed && clone != nil {
		old = clone(old)
	}
	tx.undo = append(tx.undo, func() {
		if existed {
			m[key] = old
		} else {
			delete(m, key)
		}
	})
}

// Transactor runs a TxFunc with a journaling executor and undoes its writes when it fails.
// Writes made outside the transaction are kept, unless they hit a key the transaction wrote.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

// InTx hands fn an executor that must be passed to every repository call of the transaction.
func (t *Transactor) InTx(ctx context.Context, fn core.TxFunc) (err error) {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	tx := &memTx{seen: make(map[string]bool)}
	rollback := func() {
		t.db.mu.Lock()
		defer t.db.mu.Unlock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		rollback()
	}
	return err
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func removeString(s []string, v string) []string {
	res := s[:0]
	for _, x := range s {
		if x != v {
			res = append(res, x)
		}
	}
	return res
}

func hasString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
