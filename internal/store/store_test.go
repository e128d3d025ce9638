package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	models "kalkulludo/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func appendResult(t *testing.T, s *Store, userID string, level, cellCount, score, seconds int) *models.Result {
	t.Helper()
	r := &models.Result{
		UserID:      userID,
		Level:       level,
		CellCount:   cellCount,
		Score:       score,
		TimeSeconds: seconds,
		Mistakes:    cellCount - score,
	}
	require.NoError(t, s.AppendResult(context.Background(), r))
	return r
}

func TestAppendResultAssignsID(t *testing.T) {
	s := testStore(t)
	r := appendResult(t, s, "u1", 1, 50, 50, 120)
	assert.NotZero(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	r2 := appendResult(t, s, "u1", 1, 50, 48, 95)
	assert.Greater(t, r2.ID, r.ID)
}

func TestBestElapsed(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, found, err := s.BestElapsed(ctx, "u1", 1, 50, 50)
	require.NoError(t, err)
	assert.False(t, found, "no prior results yet")

	appendResult(t, s, "u1", 1, 50, 50, 120)
	appendResult(t, s, "u1", 1, 50, 50, 95)
	appendResult(t, s, "u1", 1, 50, 50, 140)
	// Imperfect runs, other levels, other players and other grid sizes
	// never influence the best time.
	appendResult(t, s, "u1", 1, 50, 49, 10)
	appendResult(t, s, "u1", 2, 50, 50, 11)
	appendResult(t, s, "u2", 1, 50, 50, 12)
	appendResult(t, s, "u1", 1, 30, 30, 13)

	best, found, err := s.BestElapsed(ctx, "u1", 1, 50, 50)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 95, best)
}

func TestResultsForUserNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := &models.Result{
		UserID: "u1", Level: 1, CellCount: 50, Score: 40, TimeSeconds: 200,
		Mistakes: 10, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, s.AppendResult(ctx, old))
	appendResult(t, s, "u1", 2, 50, 50, 100)
	appendResult(t, s, "u2", 1, 50, 50, 90)

	results, err := s.ResultsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Level)
	assert.Equal(t, 1, results[1].Level)
}

func TestPerfectLevels(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	appendResult(t, s, "u1", 1, 50, 50, 120)
	appendResult(t, s, "u1", 2, 50, 49, 130)
	appendResult(t, s, "u1", 3, 30, 30, 60)

	perfect, err := s.PerfectLevels(ctx, "u1", 50)
	require.NoError(t, err)
	assert.True(t, perfect[1])
	assert.False(t, perfect[2], "imperfect score does not unlock")
	assert.False(t, perfect[3], "perfect run at another cell count does not count")
}

func TestProfileRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	p := &models.Profile{
		UserID: "u1", Name: "Hana", Email: " Teacher@School.example ",
		Grade: 3, ClassName: "B",
	}
	require.NoError(t, s.UpsertProfile(ctx, p))
	assert.Equal(t, "teacher@school.example", p.Email, "email is normalized")

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Hana", got.Name)
	assert.Equal(t, 3, got.Grade)

	p.Name = "Hana K"
	p.Grade = 4
	require.NoError(t, s.UpsertProfile(ctx, p))
	got, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Hana K", got.Name)
	assert.Equal(t, 4, got.Grade)
}

func TestAllResultsJoinsProfiles(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertProfile(ctx, &models.Profile{
		UserID: "u1", Name: "Hana", Grade: 3, ClassName: "B",
	}))
	appendResult(t, s, "u1", 1, 50, 50, 120)
	appendResult(t, s, "ghost", 1, 50, 30, 300)

	rows, err := s.AllResults(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byUser := map[string]models.ResultRow{}
	for _, r := range rows {
		byUser[r.UserID] = r
	}
	assert.Equal(t, "Hana", byUser["u1"].Name)
	assert.Equal(t, "B", byUser["u1"].ClassName)
	assert.Equal(t, "", byUser["ghost"].Name, "unregistered players fall back to empty profile fields")
}
