package postgres

import (
	"context"
	"time"

	"realtime-backend/internal/models"
	"realtime-backend/internal/store"

	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, conversation_id, sender_id, content, attachment, is_read, created_at`

func scanMessage(row pgx.Row, m *models.Message) error {
	return row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Attachment, &m.IsRead, &m.CreatedAt)
}

func (s *Store) FindConversationByPair(ctx context.Context, user1ID, user2ID int) (*models.Conversation, error) {
	u1, u2 := models.CanonicalPair(user1ID, user2ID)
	var c models.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, user1_id, user2_id, created_at FROM conversations WHERE user1_id = $1 AND user2_id = $2`,
		u1, u2,
	).Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt)
	if err != nil {
		return nil, translate(err, "postgres.FindConversationByPair")
	}
	return &c, nil
}

func (s *Store) CreateConversation(ctx context.Context, user1ID, user2ID int) (*models.Conversation, error) {
	u1, u2 := models.CanonicalPair(user1ID, user2ID)
	c := models.Conversation{User1ID: u1, User2ID: u2}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2) RETURNING id, created_at`,
		u1, u2,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, translate(err, "postgres.CreateConversation")
	}
	return &c, nil
}

func (s *Store) GetConversation(ctx context.Context, id int) (*models.Conversation, error) {
	var c models.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, user1_id, user2_id, created_at FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt)
	if err != nil {
		return nil, translate(err, "postgres.GetConversation")
	}
	return &c, nil
}

func (s *Store) ListConversations(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	query := `
		SELECT c.id, c.user1_id, c.user2_id, c.created_at,
		       lm.id, lm.sender_id, lm.content, lm.attachment, lm.is_read, lm.created_at,
		       (SELECT count(*) FROM messages u
		         WHERE u.conversation_id = c.id AND u.sender_id <> $1 AND NOT u.is_read)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, sender_id, content, attachment, is_read, created_at
			FROM messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.id DESC
			LIMIT 1
		) lm ON true
		WHERE c.user1_id = $1 OR c.user2_id = $1
		ORDER BY COALESCE(lm.created_at, c.created_at) DESC, c.id DESC
	`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, translate(err, "postgres.ListConversations")
	}
	defer rows.Close()

	var out []models.ConversationSummary
	for rows.Next() {
		var (
			sum        models.ConversationSummary
			msgID      *int
			senderID   *int
			content    *string
			attachment *string
			isRead     *bool
			createdAt  *time.Time
			unread     int64
		)
		if err := rows.Scan(&sum.ID, &sum.User1ID, &sum.User2ID, &sum.CreatedAt,
			&msgID, &senderID, &content, &attachment, &isRead, &createdAt, &unread); err != nil {
			return nil, translate(err, "postgres.ListConversations.Scan")
		}
		if msgID != nil {
			sum.LastMessage = &models.Message{
				ID:             *msgID,
				ConversationID: sum.ID,
				SenderID:       deref(senderID),
				Content:        deref(content),
				Attachment:     attachment,
				IsRead:         deref(isRead),
				CreatedAt:      deref(createdAt),
			}
		}
		sum.UnreadCount = int(unread)
		out = append(out, sum)
	}
	return out, translate(rows.Err(), "postgres.ListConversations.Rows")
}

// DeleteConversation deletes the messages first, then the conversation, in one transaction.
func (s *Store) DeleteConversation(ctx context.Context, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return translate(err, "postgres.DeleteConversation.Begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, id); err != nil {
		return translate(err, "postgres.DeleteConversation.Messages")
	}
	tag, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return translate(err, "postgres.DeleteConversation.Conversation")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return translate(tx.Commit(ctx), "postgres.DeleteConversation.Commit")
}

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO messages (conversation_id, sender_id, content, attachment, is_read, created_at)
		SELECT $1, $2, $3, $4, false, $5
		WHERE EXISTS (SELECT 1 FROM conversations WHERE id = $1)
		RETURNING id, created_at`
	err := s.pool.QueryRow(ctx, query, msg.ConversationID, msg.SenderID, msg.Content, msg.Attachment, msg.CreatedAt).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return translate(err, "postgres.InsertMessage")
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id int) (*models.Message, error) {
	var m models.Message
	row := s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err := scanMessage(row, &m); err != nil {
		return nil, translate(err, "postgres.GetMessage")
	}
	return &m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID, limit, beforeID int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = $1 AND ($2::int = 0 OR id < $2::int)
		ORDER BY id DESC
		LIMIT $3`
	rows, err := s.pool.Query(ctx, query, conversationID, beforeID, limit)
	if err != nil {
		return nil, translate(err, "postgres.ListMessages")
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, translate(err, "postgres.ListMessages.Scan")
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "postgres.ListMessages.Rows")
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *Store) MarkRead(ctx context.Context, conversationID, readerID int) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET is_read = true WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read`,
		conversationID, readerID)
	if err != nil {
		return 0, translate(err, "postgres.MarkRead")
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) DeleteMessage(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return translate(err, "postgres.DeleteMessage")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
