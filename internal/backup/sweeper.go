package backup

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const backupPrefix = "backups/"

// Sweep deletes backup objects uploaded before now − retentionDays, plus
// their metadata rows. The object listing is paginated; a failed delete of
// a single object is logged and skipped, never aborting the sweep.
func (m *Manager) Sweep(ctx context.Context, retentionDays int) (int, error) {
	client, bucket, err := m.clientAndBucket()
	if err != nil {
		return 0, err
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	deleted := 0
	var cursor *string
	for {
		listed, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(backupPrefix),
			ContinuationToken: cursor,
		})
		if err != nil {
			return deleted, err
		}

		for _, obj := range listed.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(*obj.Key),
			}); err != nil {
				m.logger.Warn("sweep delete failed", "key", *obj.Key, "error", err)
				continue
			}
			m.logger.Info("swept expired backup", "key", *obj.Key)
			deleted++
		}

		if listed.IsTruncated == nil || !*listed.IsTruncated {
			break
		}
		cursor = listed.NextContinuationToken
	}

	if _, err := m.backups.DeleteOlderThan(ctx, cutoff); err != nil {
		m.logger.Warn("sweep metadata prune failed", "error", err)
	}

	m.emit("sweep_completed", map[string]any{"deleted": deleted})
	return deleted, nil
}

// Start begins the retention sweep loop. The sweeper only needs the object
// listing and the configured retention window; it runs until Stop or until
// ctx is cancelled.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	if m.client == nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Sweep(ctx, m.cfg.RetentionDays); err != nil {
					m.logger.Error("retention sweep", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the sweep loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
