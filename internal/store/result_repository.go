package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	models "kalkulludo/internal/models"
)

// AppendResult inserts one immutable result row. Results are append-only;
// nothing updates or deletes them.
func (s *Store) AppendResult(ctx context.Context, result *models.Result) error {
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	query := s.db.Rebind(`
		INSERT INTO game_results (user_id, level, cell_count, score, time_seconds, mistakes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if s.driver == "postgres" {
		return s.db.QueryRowContext(ctx, query+" RETURNING id",
			result.UserID, result.Level, result.CellCount,
			result.Score, result.TimeSeconds, result.Mistakes, result.CreatedAt,
		).Scan(&result.ID)
	}

	res, err := s.db.ExecContext(ctx, query,
		result.UserID, result.Level, result.CellCount,
		result.Score, result.TimeSeconds, result.Mistakes, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append result: %w", err)
	}
	result.ID, err = res.LastInsertId()
	return err
}

// BestElapsed returns the minimum time among this player's prior results at
// the target score for the level and cell count. found=false means no such
// result exists yet.
func (s *Store) BestElapsed(ctx context.Context, userID string, level, cellCount, targetScore int) (int, bool, error) {
	query := s.db.Rebind(`
		SELECT MIN(time_seconds) FROM game_results
		WHERE user_id = ? AND level = ? AND cell_count = ? AND score = ?
	`)
	var best sql.NullInt64
	err := s.db.GetContext(ctx, &best, query, userID, level, cellCount, targetScore)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get best time: %w", err)
	}
	if !best.Valid {
		return 0, false, nil
	}
	return int(best.Int64), true, nil
}

// ResultsForUser returns the player's full history, newest first.
func (s *Store) ResultsForUser(ctx context.Context, userID string) ([]models.Result, error) {
	query := s.db.Rebind(`
		SELECT * FROM game_results
		WHERE user_id = ?
		ORDER BY created_at DESC
	`)
	var results []models.Result
	if err := s.db.SelectContext(ctx, &results, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	return results, nil
}

// AllResults joins every result with its player's profile for the admin
// console and the score export.
func (s *Store) AllResults(ctx context.Context) ([]models.ResultRow, error) {
	query := `
		SELECT r.id, r.user_id, r.level, r.cell_count, r.score,
		       r.time_seconds, r.mistakes, r.created_at,
		       COALESCE(p.name, '') AS name,
		       COALESCE(p.grade, 0) AS grade,
		       COALESCE(p.class_name, '') AS class_name
		FROM game_results r
		LEFT JOIN profiles p ON p.user_id = r.user_id
		ORDER BY r.created_at DESC
	`
	var rows []models.ResultRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get all results: %w", err)
	}
	return rows, nil
}

// PerfectLevels reports the levels this player has ever completed with a
// perfect score at the given cell count. Level unlocking is derived from
// it: each level opens once the previous one has been perfected.
func (s *Store) PerfectLevels(ctx context.Context, userID string, cellCount int) (map[int]bool, error) {
	query := s.db.Rebind(`
		SELECT DISTINCT level FROM game_results
		WHERE user_id = ? AND cell_count = ? AND score = cell_count
	`)
	var levels []int
	if err := s.db.SelectContext(ctx, &levels, query, userID, cellCount); err != nil {
		return nil, fmt.Errorf("failed to get perfect levels: %w", err)
	}
	perfect := make(map[int]bool, len(levels))
	for _, level := range levels {
		perfect[level] = true
	}
	return perfect, nil
}
