package inmemdb

import (
	"context"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrollment"
)

type sequenceRepository struct {
	db       *DB
	students *studentRepository
}

var _ enrollment.Sequencer = (*sequenceRepository)(nil) // interface compliance check

func NewSequenceRepository(db *DB) *sequenceRepository {
	return &sequenceRepository{db: db, students: NewStudentRepository(db)}
}

// NextValue seeds a partition with its highest identifier the first time it is used.
func (repo *sequenceRepository) NextValue(ctx context.Context, partition string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n, ok := repo.db.state.sequences[partition]
	if !ok {
		n = repo.students.lastSequence(partition)
	}
	n++
	journal(exec, "sequences", repo.db.state.sequences, partition, nil)
	repo.db.state.sequences[partition] = n
	return n, nil
}
