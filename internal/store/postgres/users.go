package postgres

import "context"

func (s *Store) Exists(ctx context.Context, userID int) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&ok)
	return ok, translate(err, "postgres.Exists")
}

func (s *Store) DisplayName(ctx context.Context, userID int) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(NULLIF(full_name, ''), username) FROM users WHERE id = $1`, userID,
	).Scan(&name)
	return name, translate(err, "postgres.DisplayName")
}
