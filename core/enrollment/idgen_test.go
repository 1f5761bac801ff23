package enrollment

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

type counterSeq struct {
	next map[string]int
	err  error
}

func (s *counterSeq) NextValue(_ context.Context, partition string, _ ...core.DBExecutor) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next[partition]++
	return s.next[partition], nil
}

func TestFormat(t *testing.T) {
	tests := []struct {
		partition string
		n         int
		want      string
	}{
		{"24", 1, "24/00001"},
		{"24", 42, "24/00042"},
		{"05", 99999, "05/99999"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.partition, tt.n))
		})
	}
}

func TestPartition(t *testing.T) {
	assert.Equal(t, "24", Partition(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "05", Partition(time.Date(2005, time.December, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "00", Partition(time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestIDGenerator_Generate(t *testing.T) {
	ctx := context.Background()
	seq := &counterSeq{next: map[string]int{"24": 6}}
	gen := NewIDGenerator(seq)
	gen.now = func() time.Time { return time.Date(2024, time.September, 2, 8, 0, 0, 0, time.UTC) }

	format := regexp.MustCompile(`^\d{2}/\d{5}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := gen.Generate(ctx)
		require.NoError(t, err)
		require.Regexp(t, format, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.True(t, seen["24/00007"], "first id continues after existing students")

	t.Run("New year starts a new partition", func(t *testing.T) {
		gen.now = func() time.Time { return time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC) }
		id, err := gen.Generate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "25/00001", id)
	})

	t.Run("Exhausted", func(t *testing.T) {
		seq.next["25"] = maxSequence
		_, err := gen.Generate(ctx)
		assert.Equal(t, errSequenceExhausted, err)
	})

	t.Run("Sequencer error", func(t *testing.T) {
		seq.err = errors.New("connection refused")
		_, err := gen.Generate(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, seq.err))
	})
}
