package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rallypoint/rallypoint/internal/model"
	"github.com/rallypoint/rallypoint/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible object store configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3 S3Config
	// RetentionDays controls both the stamped expiry on new backup records
	// and the sweeper cutoff. Zero disables expiry stamping.
	RetentionDays int
}

// Event is a lifecycle notification pushed to the admin UI.
type Event struct {
	Kind   string         `json:"kind"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Notifier receives manager lifecycle events. May be nil.
type Notifier func(Event)

// Manager owns the encrypted backup/restore subsystem: snapshotting tables
// into encrypted blobs, replaying them, and sweeping expired blobs.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	client s3Client

	db      *sql.DB
	backups *store.BackupStore
	notify  Notifier
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. With incomplete S3 credentials the
// manager still constructs, but every operation that touches the object
// store reports ErrStorageUnavailable.
func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, notify Notifier, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: bs,
		notify:  notify,
		logger:  logger,
	}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) clientAndBucket() (s3Client, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, "", ErrStorageUnavailable
	}
	return m.client, m.cfg.S3.Bucket, nil
}

func (m *Manager) emit(kind string, detail map[string]any) {
	if m.notify != nil {
		m.notify(Event{Kind: kind, Detail: detail})
	}
}

// Download streams a stored backup blob. The caller owns the ReadCloser.
func (m *Manager) Download(ctx context.Context, backupID int64) (io.ReadCloser, *model.Backup, error) {
	client, bucket, err := m.clientAndBucket()
	if err != nil {
		return nil, nil, err
	}

	record, err := m.backups.GetByID(ctx, backupID)
	if err != nil {
		return nil, nil, fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return nil, nil, ErrNotFound
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.Filename),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: object %s", ErrNotFound, record.Filename)
	}
	return result.Body, record, nil
}

// Delete removes a backup's blob and its metadata row. A missing object is
// not an error; the metadata row is authoritative.
func (m *Manager) Delete(ctx context.Context, backupID int64) error {
	record, err := m.backups.GetByID(ctx, backupID)
	if err != nil {
		return fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return ErrNotFound
	}

	if client, bucket, err := m.clientAndBucket(); err == nil {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(record.Filename),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", record.Filename, "error", err)
		}
	}

	if err := m.backups.Delete(ctx, backupID); err != nil {
		return fmt.Errorf("delete backup record: %w", err)
	}
	m.emit("backup_deleted", map[string]any{"id": backupID})
	return nil
}
