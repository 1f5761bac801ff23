package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

const maxSequence = 99999

var errSequenceExhausted = errors.New("student identifier sequence exhausted for this year")

// Sequencer hands out the sequence numbers of a year partition.
// The first value of a partition follows the highest identifier already in it;
// later values increment atomically, also across processes.
type Sequencer interface {
	NextValue(ctx context.Context, partition string, exec ...core.DBExecutor) (int, error)
}

// IDGenerator builds student identifiers of the form "YY/NNNNN".
type IDGenerator struct {
	seq Sequencer
	now func() time.Time
}

func NewIDGenerator(seq Sequencer) *IDGenerator {
	return &IDGenerator{seq: seq, now: time.Now}
}

// Partition returns the two-digit year prefix for t.
func Partition(t time.Time) string {
	return fmt.Sprintf("%02d", t.Year()%100)
}

// Format returns the identifier of the nth student of partition.
func Format(partition string, n int) string {
	return fmt.Sprintf("%s/%05d", partition, n)
}

// Generate returns the next identifier of the current year. exec lets the sequence
// join the caller's transaction.
func (g *IDGenerator) Generate(ctx context.Context, exec ...core.DBExecutor) (string, error) {
	partition := Partition(g.now())
	n, err := g.seq.NextValue(ctx, partition, exec...)
	if err != nil {
		return "", errors.Wrap(err, "next student sequence value")
	}
	if n < 1 || n > maxSequence {
		return "", errSequenceExhausted
	}
	return Format(partition, n), nil
}
