package model

import "time"

const (
	BackupTypeFull    = "full"
	BackupTypePartial = "partial"
)

// Backup is the persisted metadata row for one encrypted backup blob.
// The encryption key is never part of this record; only the IV is kept so
// server-initiated restores can skip a re-upload. The IV here must equal the
// first 12 bytes of the stored blob.
type Backup struct {
	ID        int64      `json:"id"`
	Filename  string     `json:"filename"`
	Label     string     `json:"label,omitempty"`
	Type      string     `json:"type"`
	SizeBytes int64      `json:"size_bytes"`
	IV        string     `json:"iv"`
	CreatedBy *int64     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// BackupSchedule describes a recurring backup. It is consumed only by the
// descriptor generator; the platform itself never runs cron expressions.
type BackupSchedule struct {
	ID                int64     `json:"id"`
	Label             string    `json:"label"`
	Cron              string    `json:"cron"`
	BackupType        string    `json:"backup_type"`
	RetentionDays     int       `json:"retention_days"`
	Active            bool      `json:"active"`
	EncryptionKeyHint string    `json:"encryption_key_hint,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ValidBackupType reports whether t is a recognized backup type.
func ValidBackupType(t string) bool {
	return t == BackupTypeFull || t == BackupTypePartial
}
