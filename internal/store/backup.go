package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rallypoint/rallypoint/internal/model"
)

// BackupStore persists backup metadata rows. The encryption key is never
// part of a row; only the IV is stored, and it must equal the first 12
// bytes of the corresponding blob.
type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func (s *BackupStore) Create(ctx context.Context, filename, label, typ string, sizeBytes int64, ivHex string, createdBy *int64, expiresAt *time.Time) (*model.Backup, error) {
	now := time.Now().UTC()
	var labelPtr *string
	if label != "" {
		labelPtr = &label
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO backups (filename, label, type, size_bytes, iv, created_by, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		filename, labelPtr, typ, sizeBytes, ivHex, createdBy, now, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.Backup{
		ID:        id,
		Filename:  filename,
		Label:     label,
		Type:      typ,
		SizeBytes: sizeBytes,
		IV:        ivHex,
		CreatedBy: createdBy,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *BackupStore) GetByID(ctx context.Context, id int64) (*model.Backup, error) {
	b := &model.Backup{}
	var label sql.NullString
	var createdBy sql.NullInt64
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, label, type, size_bytes, iv, created_by, created_at, expires_at
		 FROM backups WHERE id = ?`, id,
	).Scan(&b.ID, &b.Filename, &label, &b.Type, &b.SizeBytes, &b.IV, &createdBy, &b.CreatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %d: %w", id, err)
	}
	b.Label = label.String
	if createdBy.Valid {
		b.CreatedBy = &createdBy.Int64
	}
	if expiresAt.Valid {
		b.ExpiresAt = &expiresAt.Time
	}
	return b, nil
}

func (s *BackupStore) List(ctx context.Context) ([]model.Backup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, label, type, size_bytes, iv, created_by, created_at, expires_at
		 FROM backups ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		var b model.Backup
		var label sql.NullString
		var createdBy sql.NullInt64
		var expiresAt sql.NullTime
		if err := rows.Scan(&b.ID, &b.Filename, &label, &b.Type, &b.SizeBytes, &b.IV, &createdBy, &b.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		b.Label = label.String
		if createdBy.Valid {
			b.CreatedBy = &createdBy.Int64
		}
		if expiresAt.Valid {
			b.ExpiresAt = &expiresAt.Time
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

// DeleteOlderThan removes metadata rows created before the cutoff and
// returns the object keys they pointed at.
func (s *BackupStore) DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename FROM backups WHERE created_at < ?`, before,
	)
	if err != nil {
		return nil, fmt.Errorf("select old backups: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM backups WHERE created_at < ?`, before,
	); err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	return keys, nil
}
