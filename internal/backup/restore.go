package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Restore modes.
const (
	ModeOverwrite = "overwrite"
	ModeMerge     = "merge"
)

// ConflictPolicy selects how an insert behaves when the primary key already
// exists in the live store.
type ConflictPolicy string

const (
	// ConflictIgnore leaves the existing row untouched. Both restore modes
	// use this: merge by definition, overwrite because the delete phase has
	// already cleared the affected tables.
	ConflictIgnore ConflictPolicy = "ignore"
	// ConflictReplace overwrites the existing row.
	ConflictReplace ConflictPolicy = "replace"
)

// minBlobSize is a 12-byte IV plus at least one ciphertext byte.
const minBlobSize = nonceSize + 1

// TableCounts is one table's entry in a restore preview.
type TableCounts struct {
	Backup  int   `json:"backup"`
	Current int64 `json:"current"`
}

// PreviewResult is the non-mutating diff of archived vs live row counts.
type PreviewResult struct {
	Preview   map[string]TableCounts `json:"preview"`
	Timestamp string                 `json:"timestamp"`
	Type      string                 `json:"type"`
}

// Resolve produces the raw encrypted blob for a restore. Exactly one of
// backupID and uploaded must be supplied. For a stored backup the IV is
// re-derived from the blob's own first 12 bytes, never from the metadata
// row, so metadata corruption cannot silently alter decryption.
func (m *Manager) Resolve(ctx context.Context, backupID *int64, uploaded []byte) ([]byte, error) {
	if (backupID == nil) == (uploaded == nil) {
		return nil, fmt.Errorf("%w: provide either a backup id or a file upload", ErrBadRequest)
	}

	var raw []byte
	if backupID != nil {
		record, err := m.backups.GetByID(ctx, *backupID)
		if err != nil {
			return nil, fmt.Errorf("get backup: %w", err)
		}
		if record == nil {
			return nil, ErrNotFound
		}

		client, bucket, err := m.clientAndBucket()
		if err != nil {
			return nil, err
		}
		result, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(record.Filename),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: object %s", ErrNotFound, record.Filename)
		}
		defer result.Body.Close()
		raw, err = io.ReadAll(result.Body)
		if err != nil {
			return nil, fmt.Errorf("read object: %w", err)
		}
	} else {
		raw = uploaded
	}

	if len(raw) < minBlobSize {
		return nil, ErrInvalidArchive
	}
	return raw, nil
}

// decode decrypts and deserializes a blob. Every failure here happens
// before any mutation: Execute never touches the store until decode has
// succeeded in full.
func decode(raw []byte, keyHex string) (*Archive, error) {
	if keyHex == "" {
		return nil, fmt.Errorf("%w: missing encryption key", ErrBadRequest)
	}
	key, err := HexToBytes(keyHex)
	if err != nil {
		return nil, err
	}
	if len(raw) < minBlobSize {
		return nil, ErrInvalidArchive
	}

	iv := raw[:nonceSize]
	ciphertext := raw[nonceSize:]

	plaintext, err := Decrypt(key, iv, ciphertext)
	if err != nil {
		return nil, err
	}
	return Deserialize(plaintext)
}

// Preview decrypts a blob and reports, for each table in the filter, the
// archived row count alongside the live row count. It never mutates state;
// a failed count query for a single table reports zero rather than aborting
// the preview.
func (m *Manager) Preview(ctx context.Context, raw []byte, keyHex string, filter []string) (*PreviewResult, error) {
	archive, err := decode(raw, keyHex)
	if err != nil {
		return nil, err
	}

	tables := filter
	if len(tables) == 0 {
		tables = DefaultTables()
	}

	result := &PreviewResult{
		Preview:   make(map[string]TableCounts, len(tables)),
		Timestamp: archive.Timestamp,
		Type:      archive.Type,
	}
	for _, table := range tables {
		// Unknown tables still show up in the preview, with a zero live
		// count. Only Execute rejects them; the IsRestorable gate also
		// keeps arbitrary names out of the COUNT query below.
		var current int64
		if IsRestorable(table) {
			if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&current); err != nil {
				current = 0
			}
		}
		result.Preview[table] = TableCounts{
			Backup:  len(archive.Rows(table)),
			Current: current,
		}
	}
	return result, nil
}

// Execute replays a decrypted archive into the live store. In overwrite
// mode the selected tables (and their dependent children) are cleared
// first, child-before-parent; inserts then run parent-before-child with
// insert-or-ignore semantics. The whole pass runs in one transaction, and
// the blob is fully decoded before the first statement executes.
func (m *Manager) Execute(ctx context.Context, raw []byte, keyHex, mode string, filter []string, confirmed bool) ([]string, error) {
	if !confirmed {
		return nil, fmt.Errorf("%w: restore not confirmed", ErrBadRequest)
	}
	if mode != ModeOverwrite && mode != ModeMerge {
		return nil, fmt.Errorf("%w: unknown restore mode %q", ErrBadRequest, mode)
	}

	selected := filter
	if len(selected) == 0 {
		selected = DefaultTables()
	}
	for _, t := range selected {
		if !IsRestorable(t) {
			return nil, fmt.Errorf("%w: unknown table %q", ErrBadRequest, t)
		}
	}

	archive, err := decode(raw, keyHex)
	if err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	if mode == ModeOverwrite {
		tables, detach := deleteSequence(selected)
		for _, stmt := range detach {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("detach references: %w", err)
			}
		}
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return nil, fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	for _, table := range expandSelection(selected) {
		if err := insertRows(ctx, tx, table, archive.Rows(table), ConflictIgnore); err != nil {
			return nil, fmt.Errorf("restore %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit restore: %w", err)
	}

	m.emit("restore_executed", map[string]any{"mode": mode, "tables": selected})
	m.logger.Info("restore executed", "mode", mode, "tables", strings.Join(selected, ","))
	return selected, nil
}

// insertRows replays archived rows into one table, binding the declared
// column list. Missing columns bind NULL; extra archived columns are
// ignored. A primary-key conflict under ConflictIgnore is not an error.
func insertRows(ctx context.Context, tx *sql.Tx, table string, rows []Row, policy ConflictPolicy) error {
	if len(rows) == 0 {
		return nil
	}

	spec := restoreTables[table]
	verb := "INSERT OR IGNORE"
	if policy == ConflictReplace {
		verb = "INSERT OR REPLACE"
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(spec.columns)), ", ")
	query := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		verb, table, strings.Join(spec.columns, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(spec.columns))
		for i, col := range spec.columns {
			args[i] = row[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}
