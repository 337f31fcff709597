package model

import "time"

const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusArchived  = "archived"
)

type Event struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	OrgID        int64     `json:"org_id"`
	OrgName      string    `json:"org_name,omitempty"`
	CreatedBy    *int64    `json:"created_by"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Address      string    `json:"address"`
	Description  string    `json:"description"`
	Parking      string    `json:"parking"`
	FlyerURL     string    `json:"flyer_url"`
	WebsiteURL   string    `json:"website_url"`
	RegLink      string    `json:"reg_link"`
	RegRequired  bool      `json:"reg_required"`
	HideAddress  bool      `json:"hide_address"`
	EventType    string    `json:"event_type"`
	Status       string    `json:"status"`
	BringItems   []string  `json:"bring_items"`
	NoBringItems []string  `json:"no_bring_items"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidEventStatus reports whether status is a known event lifecycle state.
func ValidEventStatus(status string) bool {
	switch status {
	case EventStatusDraft, EventStatusPublished, EventStatusArchived:
		return true
	}
	return false
}
