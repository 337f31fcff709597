package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rallypoint/rallypoint/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `e.id, e.title, e.org_id, o.name, e.created_by, e.date, e.start_time, e.end_time,
	e.address, e.description, e.parking, e.flyer_url, e.website_url, e.reg_link, e.reg_required,
	e.hide_address, e.event_type, e.status, e.bring_items, e.no_bring_items, e.notes,
	e.created_at, e.updated_at`

func scanEvent(scan func(dest ...any) error) (*model.Event, error) {
	e := &model.Event{}
	var createdBy sql.NullInt64
	var bringItems, noBringItems string
	err := scan(&e.ID, &e.Title, &e.OrgID, &e.OrgName, &createdBy, &e.Date, &e.StartTime, &e.EndTime,
		&e.Address, &e.Description, &e.Parking, &e.FlyerURL, &e.WebsiteURL, &e.RegLink, &e.RegRequired,
		&e.HideAddress, &e.EventType, &e.Status, &bringItems, &noBringItems, &e.Notes,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		e.CreatedBy = &createdBy.Int64
	}
	e.BringItems = decodeItems(bringItems)
	e.NoBringItems = decodeItems(noBringItems)
	return e, nil
}

func decodeItems(raw string) []string {
	items := []string{}
	if raw != "" {
		json.Unmarshal([]byte(raw), &items)
	}
	return items
}

func encodeItems(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func (s *EventStore) Create(ctx context.Context, e *model.Event) (*model.Event, error) {
	now := time.Now().UTC()
	if e.Status == "" {
		e.Status = model.EventStatusDraft
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO events (title, org_id, created_by, date, start_time, end_time, address, description,
		   parking, flyer_url, website_url, reg_link, reg_required, hide_address, event_type, status,
		   bring_items, no_bring_items, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.OrgID, e.CreatedBy, e.Date, e.StartTime, e.EndTime, e.Address, e.Description,
		e.Parking, e.FlyerURL, e.WebsiteURL, e.RegLink, e.RegRequired, e.HideAddress, e.EventType,
		e.Status, encodeItems(e.BringItems), encodeItems(e.NoBringItems), e.Notes, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	id, _ := result.LastInsertId()
	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = now
	return e, nil
}

func (s *EventStore) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events e JOIN organizations o ON e.org_id = o.id WHERE e.id = ?`, id)
	e, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return e, nil
}

func (s *EventStore) List(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events e JOIN organizations o ON e.org_id = o.id ORDER BY e.date ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Update(ctx context.Context, e *model.Event) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET title = ?, date = ?, start_time = ?, end_time = ?, address = ?, description = ?,
		   parking = ?, flyer_url = ?, website_url = ?, reg_link = ?, reg_required = ?, hide_address = ?,
		   event_type = ?, status = ?, bring_items = ?, no_bring_items = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		e.Title, e.Date, e.StartTime, e.EndTime, e.Address, e.Description, e.Parking, e.FlyerURL,
		e.WebsiteURL, e.RegLink, e.RegRequired, e.HideAddress, e.EventType, e.Status,
		encodeItems(e.BringItems), encodeItems(e.NoBringItems), e.Notes, time.Now().UTC(), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (s *EventStore) Delete(ctx context.Context, id int64) error {
	// Dependent rows first; events is a parent in the restore graph too.
	for _, stmt := range []string{
		`DELETE FROM event_flyers WHERE event_id = ?`,
		`DELETE FROM review_seen WHERE event_id = ?`,
		`DELETE FROM event_published_seen WHERE event_id = ?`,
		`DELETE FROM events WHERE id = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
	}
	return nil
}

// MarkPublishedSeen records that a user has seen an event's published state.
func (s *EventStore) MarkPublishedSeen(ctx context.Context, eventID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO event_published_seen (event_id, user_id) VALUES (?, ?)`,
		eventID, userID)
	if err != nil {
		return fmt.Errorf("mark published seen: %w", err)
	}
	return nil
}
