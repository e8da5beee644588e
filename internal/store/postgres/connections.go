package postgres

import (
	"context"
	"time"

	"realtime-backend/internal/models"
	"realtime-backend/internal/store"

	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, sender_id, receiver_id, status, created_at, accepted_at`

func scanRequest(row pgx.Row, r *models.ConnectionRequest) error {
	var status string
	if err := row.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &status, &r.CreatedAt, &r.AcceptedAt); err != nil {
		return err
	}
	r.Status = models.ConnectionStatus(status)
	return nil
}

func (s *Store) FindActiveBetween(ctx context.Context, userA, userB int) (*models.ConnectionRequest, error) {
	var r models.ConnectionRequest
	row := s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM connection_requests
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND status IN ('pending', 'accepted')
		LIMIT 1`, userA, userB)
	if err := scanRequest(row, &r); err != nil {
		return nil, translate(err, "postgres.FindActiveBetween")
	}
	return &r, nil
}

func (s *Store) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO connection_requests (sender_id, receiver_id, status, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		req.SenderID, req.ReceiverID, string(req.Status), req.CreatedAt,
	).Scan(&req.ID)
	return translate(err, "postgres.CreateRequest")
}

func (s *Store) GetRequest(ctx context.Context, id int) (*models.ConnectionRequest, error) {
	var r models.ConnectionRequest
	row := s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM connection_requests WHERE id = $1`, id)
	if err := scanRequest(row, &r); err != nil {
		return nil, translate(err, "postgres.GetRequest")
	}
	return &r, nil
}

func (s *Store) TransitionRequest(ctx context.Context, id int, from, to models.ConnectionStatus, acceptedAt *time.Time) (*models.ConnectionRequest, error) {
	var r models.ConnectionRequest
	row := s.pool.QueryRow(ctx, `UPDATE connection_requests
		SET status = $3, accepted_at = COALESCE($4, accepted_at)
		WHERE id = $1 AND status = $2
		RETURNING `+requestColumns, id, string(from), string(to), acceptedAt)
	if err := scanRequest(row, &r); err != nil {
		return nil, translate(err, "postgres.TransitionRequest")
	}
	return &r, nil
}

func (s *Store) DeleteRequest(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM connection_requests WHERE id = $1`, id)
	if err != nil {
		return translate(err, "postgres.DeleteRequest")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListRequests(ctx context.Context, f store.RequestFilter) ([]models.ConnectionRequest, error) {
	var who string
	switch f.Direction {
	case store.DirectionIncoming:
		who = "receiver_id = $1"
	case store.DirectionOutgoing:
		who = "sender_id = $1"
	default:
		who = "(sender_id = $1 OR receiver_id = $1)"
	}
	query := `SELECT ` + requestColumns + ` FROM connection_requests
		WHERE ` + who + ` AND ($2::text = '' OR status = $2::text)
		ORDER BY id`
	rows, err := s.pool.Query(ctx, query, f.UserID, f.Status)
	if err != nil {
		return nil, translate(err, "postgres.ListRequests")
	}
	defer rows.Close()

	var out []models.ConnectionRequest
	for rows.Next() {
		var r models.ConnectionRequest
		if err := scanRequest(rows, &r); err != nil {
			return nil, translate(err, "postgres.ListRequests.Scan")
		}
		out = append(out, r)
	}
	return out, translate(rows.Err(), "postgres.ListRequests.Rows")
}
