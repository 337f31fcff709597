package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rallypoint/rallypoint/internal/model"
)

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Create(ctx context.Context, topic, messageType string, orgID, eventID, userID *int64) (*model.Message, error) {
	now := time.Now().UTC()
	if messageType == "" {
		messageType = "general"
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (topic, org_id, event_id, message_type, user_id, archived, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		topic, orgID, eventID, messageType, userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.Message{
		ID:          id,
		Topic:       topic,
		OrgID:       orgID,
		EventID:     eventID,
		MessageType: messageType,
		UserID:      userID,
		CreatedAt:   now,
	}, nil
}

func scanMessage(scan func(dest ...any) error) (*model.Message, error) {
	m := &model.Message{}
	var orgID, eventID, userID sql.NullInt64
	err := scan(&m.ID, &m.Topic, &orgID, &eventID, &m.MessageType, &userID, &m.Archived, &m.CreatedAt, &m.ReplyCount)
	if err != nil {
		return nil, err
	}
	if orgID.Valid {
		m.OrgID = &orgID.Int64
	}
	if eventID.Valid {
		m.EventID = &eventID.Int64
	}
	if userID.Valid {
		m.UserID = &userID.Int64
	}
	return m, nil
}

const messageQuery = `SELECT m.id, m.topic, m.org_id, m.event_id, m.message_type, m.user_id,
	m.archived, m.created_at,
	(SELECT COUNT(*) FROM message_replies r WHERE r.message_id = m.id) AS reply_count
	FROM messages m`

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx, messageQuery+` WHERE m.id = ?`, id)
	m, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	return m, nil
}

func (s *MessageStore) List(ctx context.Context, includeArchived bool) ([]model.Message, error) {
	query := messageQuery
	if !includeArchived {
		query += ` WHERE m.archived = 0`
	}
	query += ` ORDER BY m.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func (s *MessageStore) SetArchived(ctx context.Context, id int64, archived bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET archived = ? WHERE id = ?`, archived, id)
	if err != nil {
		return fmt.Errorf("archive message: %w", err)
	}
	return nil
}

func (s *MessageStore) Delete(ctx context.Context, id int64) error {
	// Children before parent: reads and replies carry message_id.
	for _, stmt := range []string{
		`DELETE FROM message_reads WHERE message_id = ?`,
		`DELETE FROM message_replies WHERE message_id = ?`,
		`DELETE FROM messages WHERE id = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
	}
	return nil
}

func (s *MessageStore) AddReply(ctx context.Context, messageID int64, fromType, text string, userID *int64) (*model.MessageReply, error) {
	now := time.Now().UTC()
	if fromType == "" {
		fromType = "user"
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO message_replies (message_id, from_type, text, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		messageID, fromType, text, userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("add reply: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.MessageReply{
		ID:        id,
		MessageID: messageID,
		FromType:  fromType,
		Text:      text,
		UserID:    userID,
		CreatedAt: now,
	}, nil
}

func (s *MessageStore) Replies(ctx context.Context, messageID int64) ([]model.MessageReply, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, from_type, text, user_id, created_at
		 FROM message_replies WHERE message_id = ? ORDER BY created_at ASC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	var replies []model.MessageReply
	for rows.Next() {
		var r model.MessageReply
		var userID sql.NullInt64
		if err := rows.Scan(&r.ID, &r.MessageID, &r.FromType, &r.Text, &userID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		if userID.Valid {
			r.UserID = &userID.Int64
		}
		replies = append(replies, r)
	}
	return replies, rows.Err()
}

// MarkRead records that a user has read a message; re-reads are ignored.
func (s *MessageStore) MarkRead(ctx context.Context, messageID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_reads (message_id, user_id) VALUES (?, ?)`,
		messageID, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
