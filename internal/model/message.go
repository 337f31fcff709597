package model

import "time"

type Message struct {
	ID          int64     `json:"id"`
	Topic       string    `json:"topic"`
	OrgID       *int64    `json:"org_id"`
	EventID     *int64    `json:"event_id"`
	MessageType string    `json:"message_type"`
	UserID      *int64    `json:"user_id"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	ReplyCount  int64     `json:"reply_count,omitempty"`
}

type MessageReply struct {
	ID        int64     `json:"id"`
	MessageID int64     `json:"message_id"`
	FromType  string    `json:"from_type"`
	Text      string    `json:"text"`
	UserID    *int64    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
