package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rallypoint/rallypoint/internal/model"
)

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

func (s *ScheduleStore) Create(ctx context.Context, label, cron, backupType string, retentionDays int, keyHint string) (*model.BackupSchedule, error) {
	now := time.Now().UTC()
	var hintPtr *string
	if keyHint != "" {
		hintPtr = &keyHint
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO backup_schedules (label, cron, backup_type, retention_days, active, encryption_key_hint, created_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		label, cron, backupType, retentionDays, hintPtr, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.BackupSchedule{
		ID:                id,
		Label:             label,
		Cron:              cron,
		BackupType:        backupType,
		RetentionDays:     retentionDays,
		Active:            true,
		EncryptionKeyHint: keyHint,
		CreatedAt:         now,
	}, nil
}

func (s *ScheduleStore) GetByID(ctx context.Context, id int64) (*model.BackupSchedule, error) {
	sched := &model.BackupSchedule{}
	var hint sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, label, cron, backup_type, retention_days, active, encryption_key_hint, created_at
		 FROM backup_schedules WHERE id = ?`, id,
	).Scan(&sched.ID, &sched.Label, &sched.Cron, &sched.BackupType, &sched.RetentionDays, &sched.Active, &hint, &sched.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %d: %w", id, err)
	}
	sched.EncryptionKeyHint = hint.String
	return sched, nil
}

func (s *ScheduleStore) List(ctx context.Context) ([]model.BackupSchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, cron, backup_type, retention_days, active, encryption_key_hint, created_at
		 FROM backup_schedules ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.BackupSchedule
	for rows.Next() {
		var sched model.BackupSchedule
		var hint sql.NullString
		if err := rows.Scan(&sched.ID, &sched.Label, &sched.Cron, &sched.BackupType, &sched.RetentionDays, &sched.Active, &hint, &sched.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		sched.EncryptionKeyHint = hint.String
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

func (s *ScheduleStore) Update(ctx context.Context, id int64, label, cron, backupType string, retentionDays int, active bool, keyHint string) error {
	var hintPtr *string
	if keyHint != "" {
		hintPtr = &keyHint
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE backup_schedules SET label = ?, cron = ?, backup_type = ?, retention_days = ?, active = ?, encryption_key_hint = ?
		 WHERE id = ?`,
		label, cron, backupType, retentionDays, active, hintPtr, id,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM backup_schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
