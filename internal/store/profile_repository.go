package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	models "kalkulludo/internal/models"
)

// UpsertProfile registers or updates a player profile.
func (s *Store) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))

	query := s.db.Rebind(`
		INSERT INTO profiles (user_id, name, email, grade, class_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			grade = excluded.grade,
			class_name = excluded.class_name
	`)
	_, err := s.db.ExecContext(ctx, query,
		profile.UserID, profile.Name, profile.Email,
		profile.Grade, profile.ClassName, profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile for a player. sql.ErrNoRows passes through
// when the player never registered.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	query := s.db.Rebind(`SELECT * FROM profiles WHERE user_id = ?`)
	var profile models.Profile
	if err := s.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}
