package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrollment"
)

// sequenceRepository keeps one counter row per year prefix. The first call of a year seeds
// the counter from the highest identifier already in it; the upsert makes concurrent callers
// queue on the row, so each gets its own value.
type sequenceRepository struct {
	repo
}

var _ enrollment.Sequencer = (*sequenceRepository)(nil) // interface compliance check

func NewSequenceRepository(db *sqlx.DB) *sequenceRepository {
	return &sequenceRepository{repo{db: db}}
}

func (r sequenceRepository) NextValue(ctx context.Context, partition string, exec ...core.DBExecutor) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.getExec(exec), &n,
		`INSERT INTO student_id_sequence (year_prefix, last_value)
		VALUES ($1, (`+lastSequenceQuery+`) + 1)
		ON CONFLICT (year_prefix) DO UPDATE SET last_value = student_id_sequence.last_value + 1
		RETURNING last_value`,
		partition,
	)
	if err != nil {
		return 0, errors.Wrap(err, "incrementing student sequence")
	}
	return n, nil
}
