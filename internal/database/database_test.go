package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func ptrFloat(v float64) *float64 { return &v }

func ptrString(v string) *string { return &v }

func TestSaveAndReadRound(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	round := &RoundRecord{
		ID:          "r1",
		Seq:         3,
		Fingerprint: `{"f":[]}`,
		Lower:       0,
		Upper:       2,
		GlobalError: ptrString("Error in f(x) = log(x): bad"),
		Results: []ResultRecord{
			{FunctionID: "a", Expression: "x**2", Area: ptrFloat(2.667)},
			{FunctionID: "b", Expression: "log(x)", Error: ptrString("bad")},
		},
	}
	require.NoError(t, s.SaveRound(ctx, round))
	assert.NotEmpty(t, round.CreatedAt)

	_, err := time.Parse(TimeFormat, round.CreatedAt)
	require.NoError(t, err)

	rounds, err := s.RecentRounds(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, *round, rounds[0])
	assert.Nil(t, rounds[0].TotalArea)
	assert.Nil(t, rounds[0].Results[0].Error)
	assert.Nil(t, rounds[0].Results[1].Area)
}

func TestRecentRoundsOrderAndLimit(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.SaveRound(ctx, &RoundRecord{
			ID:        fmt.Sprintf("r%d", i),
			Seq:       uint64(i),
			TotalArea: ptrFloat(float64(i)),
		}))
	}

	rounds, err := s.RecentRounds(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	assert.Equal(t, []uint64{5, 4, 3}, []uint64{rounds[0].Seq, rounds[1].Seq, rounds[2].Seq})
	assert.Empty(t, rounds[0].Results)
}

func TestDuplicateRoundIsRejected(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRound(ctx, &RoundRecord{ID: "same", Seq: 1}))
	require.Error(t, s.SaveRound(ctx, &RoundRecord{ID: "same", Seq: 2}))

	rounds, err := s.RecentRounds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, uint64(1), rounds[0].Seq)
}

func TestReopenKeepsHistory(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.SaveRound(ctx, &RoundRecord{ID: "persisted", Seq: 7}))
	require.NoError(t, s.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	rounds, err := reopened.RecentRounds(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, "persisted", rounds[0].ID)
}
