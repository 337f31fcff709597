package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/rallypoint/rallypoint/internal/model"
)

// CreateResult is returned to the caller of CreateBackup. KeyHex is the only
// copy of the encryption key that will ever exist; the server discards it
// after this struct is built.
type CreateResult struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	KeyHex    string `json:"encryption_key"`
	SizeBytes int64  `json:"size_bytes"`
}

// CreateBackup snapshots the selected logical tables, encrypts the archive,
// stores the blob as IV || ciphertext, and records metadata (IV included,
// key excluded). Selecting messages pulls message_replies alongside it.
// An empty selection snapshots every restorable table.
func (m *Manager) CreateBackup(ctx context.Context, selected []string, label, typ string, createdBy *int64) (*CreateResult, error) {
	client, bucket, err := m.clientAndBucket()
	if err != nil {
		return nil, err
	}

	if typ == "" {
		typ = model.BackupTypeFull
	}
	if !model.ValidBackupType(typ) {
		return nil, fmt.Errorf("%w: unknown backup type %q", ErrBadRequest, typ)
	}
	if len(selected) == 0 {
		selected = DefaultTables()
	}
	for _, t := range selected {
		if !IsRestorable(t) {
			return nil, fmt.Errorf("%w: unknown table %q", ErrBadRequest, t)
		}
	}

	archive := &Archive{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Type:      typ,
		Tables:    make(map[string][]Row),
	}
	for _, table := range expandSelection(selected) {
		rows, err := snapshotTable(ctx, m.db, table)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", table, err)
		}
		archive.Tables[table] = rows
	}

	plaintext, err := Serialize(archive)
	if err != nil {
		return nil, fmt.Errorf("serialize archive: %w", err)
	}

	key, iv, ciphertext, err := Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt archive: %w", err)
	}

	// The blob is self-contained: IV first, ciphertext after. A restore
	// needs only the key.
	blob := make([]byte, 0, len(iv)+len(ciphertext))
	blob = append(blob, iv...)
	blob = append(blob, ciphertext...)

	filename := objectName(time.Now().UTC())
	sizeBytes := int64(len(blob))

	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(filename),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String("application/octet-stream"),
	}); err != nil {
		return nil, fmt.Errorf("%w: put object: %v", ErrStorageUnavailable, err)
	}

	var expiresAt *time.Time
	if m.cfg.RetentionDays > 0 {
		t := time.Now().UTC().AddDate(0, 0, m.cfg.RetentionDays)
		expiresAt = &t
	}

	// Metadata is written only after the object store accepted the blob,
	// so a backups row always points at a real object.
	record, err := m.backups.Create(ctx, filename, label, typ, sizeBytes, BytesToHex(iv), createdBy, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	m.emit("backup_created", map[string]any{"id": record.ID, "filename": filename})
	m.logger.Info("backup created", "id", record.ID, "filename", filename, "size_bytes", sizeBytes, "type", typ)

	return &CreateResult{
		ID:        record.ID,
		Filename:  filename,
		KeyHex:    BytesToHex(key),
		SizeBytes: sizeBytes,
	}, nil
}

// objectName derives a collision-resistant object key from a timestamp and
// a random identifier.
func objectName(now time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(now.Format(time.RFC3339))
	return fmt.Sprintf("backups/%s-%s.enc", ts, uuid.NewString())
}

// snapshotTable reads every row of a table into column/value mappings.
// Only declared restorable tables ever reach this, so the name is safe to
// interpolate.
func snapshotTable(ctx context.Context, db *sql.DB, table string) ([]Row, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			switch v := vals[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
