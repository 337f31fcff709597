package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rallypoint/rallypoint/internal/database"
	"github.com/rallypoint/rallypoint/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOrganizationCRUD(t *testing.T) {
	ctx := context.Background()
	os := NewOrganizationStore(setupTestDB(t))

	org, err := os.Create(ctx, &model.Organization{
		Name:           "Trail Keepers",
		Abbreviation:   "TK",
		City:           "Bend",
		CanSelfPublish: true,
	})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	if org.ID == 0 {
		t.Error("expected assigned id")
	}

	got, err := os.GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("get org: %v", err)
	}
	if got == nil || got.Name != "Trail Keepers" || !got.CanSelfPublish {
		t.Errorf("got = %+v", got)
	}

	got.City = "Redmond"
	if err := os.Update(ctx, got); err != nil {
		t.Fatalf("update org: %v", err)
	}
	updated, _ := os.GetByID(ctx, org.ID)
	if updated.City != "Redmond" {
		t.Errorf("city = %q, want Redmond", updated.City)
	}

	list, err := os.List(ctx)
	if err != nil {
		t.Fatalf("list orgs: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list = %d orgs, want 1", len(list))
	}

	if err := os.Delete(ctx, org.ID); err != nil {
		t.Fatalf("delete org: %v", err)
	}
	if gone, _ := os.GetByID(ctx, org.ID); gone != nil {
		t.Error("org still present after delete")
	}
}

func TestOrganizationMembers(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	os := NewOrganizationStore(db)
	us := NewUserStore(db)

	org, _ := os.Create(ctx, &model.Organization{Name: "Park Pals"})
	other, _ := os.Create(ctx, &model.Organization{Name: "Other"})

	// Primary membership via users.org_id, secondary via user_orgs.
	primary, _ := us.Create(ctx, "p@example.com", "Primary", model.RoleOrganizer, &org.ID, "")
	secondary, _ := us.Create(ctx, "s@example.com", "Secondary", model.RoleGuest, &other.ID, "")
	if err := os.AddMember(ctx, org.ID, secondary.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	// Adding twice is a no-op.
	if err := os.AddMember(ctx, org.ID, secondary.ID); err != nil {
		t.Fatalf("re-add member: %v", err)
	}

	members, err := os.Members(ctx, org.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}

	if err := os.RemoveMember(ctx, org.ID, secondary.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	members, _ = os.Members(ctx, org.ID)
	if len(members) != 1 || members[0].ID != primary.ID {
		t.Errorf("members after remove = %+v", members)
	}

	orgs, err := us.Orgs(ctx, secondary.ID)
	if err != nil {
		t.Fatalf("user orgs: %v", err)
	}
	if len(orgs) != 0 {
		t.Errorf("secondary orgs = %d, want 0 after removal", len(orgs))
	}
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	os := NewOrganizationStore(db)
	us := NewUserStore(db)

	org, _ := os.Create(ctx, &model.Organization{Name: "Harbor Watch"})
	user, err := us.Create(ctx, "captain@example.com", "Captain", model.RoleAdmin, &org.ID, "bcrypt-hash-here")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	byEmail, err := us.GetByEmail(ctx, "captain@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Fatalf("byEmail = %+v", byEmail)
	}
	if byEmail.OrgName != "Harbor Watch" {
		t.Errorf("org name = %q, want joined value", byEmail.OrgName)
	}

	hash, err := us.PasswordHash(ctx, "captain@example.com")
	if err != nil {
		t.Fatalf("password hash: %v", err)
	}
	if hash != "bcrypt-hash-here" {
		t.Errorf("hash = %q", hash)
	}
	if hash, _ := us.PasswordHash(ctx, "nobody@example.com"); hash != "" {
		t.Errorf("unknown user hash = %q, want empty", hash)
	}

	if err := us.Update(ctx, user.ID, "The Captain", model.RoleOrganizer, nil); err != nil {
		t.Fatalf("update user: %v", err)
	}
	updated, _ := us.GetByID(ctx, user.ID)
	if updated.DisplayName != "The Captain" || updated.Role != model.RoleOrganizer || updated.OrgID != nil {
		t.Errorf("updated = %+v", updated)
	}

	if err := us.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if gone, _ := us.GetByID(ctx, user.ID); gone != nil {
		t.Error("user still present after delete")
	}
}

func TestEventStoreItemsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	os := NewOrganizationStore(db)
	es := NewEventStore(db)

	org, _ := os.Create(ctx, &model.Organization{Name: "Beach Brigade"})

	event, err := es.Create(ctx, &model.Event{
		Title:      "Dune Restoration",
		OrgID:      org.ID,
		Date:       "2025-08-09",
		StartTime:  "09:00",
		Status:     model.EventStatusPublished,
		BringItems: []string{"gloves", "water"},
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	got, err := es.GetByID(ctx, event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.OrgName != "Beach Brigade" {
		t.Errorf("org name = %q", got.OrgName)
	}
	if len(got.BringItems) != 2 || got.BringItems[0] != "gloves" {
		t.Errorf("bring items = %v", got.BringItems)
	}
	if len(got.NoBringItems) != 0 {
		t.Errorf("no-bring items = %v, want empty", got.NoBringItems)
	}

	got.Status = model.EventStatusArchived
	got.BringItems = []string{"hat"}
	if err := es.Update(ctx, got); err != nil {
		t.Fatalf("update event: %v", err)
	}
	updated, _ := es.GetByID(ctx, event.ID)
	if updated.Status != model.EventStatusArchived || len(updated.BringItems) != 1 {
		t.Errorf("updated = %+v", updated)
	}
}

func TestEventDeleteClearsChildRows(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	os := NewOrganizationStore(db)
	us := NewUserStore(db)
	es := NewEventStore(db)

	org, _ := os.Create(ctx, &model.Organization{Name: "Lake League"})
	user, _ := us.Create(ctx, "u@example.com", "U", model.RoleGuest, nil, "")
	event, _ := es.Create(ctx, &model.Event{Title: "Dock Day", OrgID: org.ID})

	if err := es.MarkPublishedSeen(ctx, event.ID, user.ID); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	// Seeing it twice is fine.
	if err := es.MarkPublishedSeen(ctx, event.ID, user.ID); err != nil {
		t.Fatalf("re-mark seen: %v", err)
	}

	if err := es.Delete(ctx, event.ID); err != nil {
		t.Fatalf("delete event with seen rows: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM event_published_seen`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("seen rows after delete = %d, want 0", n)
	}
}

func TestMessageThreading(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	ms := NewMessageStore(db)
	us := NewUserStore(db)

	user, _ := us.Create(ctx, "m@example.com", "M", model.RoleGuest, nil, "")

	msg, err := ms.Create(ctx, "Parking question", "general", nil, nil, &user.ID)
	if err != nil {
		t.Fatalf("create message: %v", err)
	}

	if _, err := ms.AddReply(ctx, msg.ID, "organizer", "Lot B is open", nil); err != nil {
		t.Fatalf("add reply: %v", err)
	}
	if _, err := ms.AddReply(ctx, msg.ID, "user", "Thanks!", &user.ID); err != nil {
		t.Fatalf("add reply 2: %v", err)
	}

	got, _ := ms.GetByID(ctx, msg.ID)
	if got.ReplyCount != 2 {
		t.Errorf("reply count = %d, want 2", got.ReplyCount)
	}

	replies, err := ms.Replies(ctx, msg.ID)
	if err != nil {
		t.Fatalf("replies: %v", err)
	}
	if len(replies) != 2 || replies[0].Text != "Lot B is open" {
		t.Errorf("replies = %+v", replies)
	}

	if err := ms.MarkRead(ctx, msg.ID, user.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := ms.MarkRead(ctx, msg.ID, user.ID); err != nil {
		t.Fatalf("re-mark read: %v", err)
	}

	if err := ms.SetArchived(ctx, msg.ID, true); err != nil {
		t.Fatalf("archive: %v", err)
	}
	visible, _ := ms.List(ctx, false)
	if len(visible) != 0 {
		t.Errorf("visible = %d, want 0 when archived", len(visible))
	}
	all, _ := ms.List(ctx, true)
	if len(all) != 1 {
		t.Errorf("all = %d, want 1", len(all))
	}

	// Delete clears reads and replies first.
	if err := ms.Delete(ctx, msg.ID); err != nil {
		t.Fatalf("delete message: %v", err)
	}
}

func TestBackupStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	bs := NewBackupStore(setupTestDB(t))

	expires := time.Now().UTC().AddDate(0, 0, 30)
	rec, err := bs.Create(ctx, "backups/x.enc", "nightly", model.BackupTypeFull, 2048, "aabbcc", nil, &expires)
	if err != nil {
		t.Fatalf("create record: %v", err)
	}

	got, err := bs.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got.Filename != "backups/x.enc" || got.IV != "aabbcc" || got.SizeBytes != 2048 {
		t.Errorf("got = %+v", got)
	}
	if got.ExpiresAt == nil {
		t.Error("expires_at not persisted")
	}

	if missing, _ := bs.GetByID(ctx, 999); missing != nil {
		t.Error("expected nil for unknown id")
	}

	list, _ := bs.List(ctx)
	if len(list) != 1 {
		t.Errorf("list = %d, want 1", len(list))
	}

	if err := bs.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if left, _ := bs.List(ctx); len(left) != 0 {
		t.Errorf("list after delete = %d, want 0", len(left))
	}
}

func TestBackupStoreDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	bs := NewBackupStore(db)

	old, _ := bs.Create(ctx, "backups/old.enc", "", model.BackupTypeFull, 1, "00", nil, nil)
	fresh, _ := bs.Create(ctx, "backups/fresh.enc", "", model.BackupTypeFull, 1, "00", nil, nil)

	// Age one row past the cutoff.
	if _, err := db.Exec(`UPDATE backups SET created_at = ? WHERE id = ?`,
		time.Now().UTC().AddDate(0, 0, -60), old.ID); err != nil {
		t.Fatalf("age row: %v", err)
	}

	removed, err := bs.DeleteOlderThan(ctx, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if len(removed) != 1 || removed[0] != "backups/old.enc" {
		t.Errorf("removed = %v", removed)
	}
	if rec, _ := bs.GetByID(ctx, fresh.ID); rec == nil {
		t.Error("fresh record pruned")
	}
}

func TestScheduleStore(t *testing.T) {
	ctx := context.Background()
	ss := NewScheduleStore(setupTestDB(t))

	sched, err := ss.Create(ctx, "weekly full", "0 3 * * 0", model.BackupTypeFull, 60, "ops vault")
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if !sched.Active {
		t.Error("new schedule should be active")
	}

	if err := ss.Update(ctx, sched.ID, "weekly full", "0 4 * * 0", model.BackupTypePartial, 14, false, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := ss.GetByID(ctx, sched.ID)
	if got.Cron != "0 4 * * 0" || got.BackupType != model.BackupTypePartial || got.Active || got.EncryptionKeyHint != "" {
		t.Errorf("got = %+v", got)
	}

	if err := ss.Delete(ctx, sched.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gone, _ := ss.GetByID(ctx, sched.ID); gone != nil {
		t.Error("schedule still present after delete")
	}
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	us := NewUserStore(db)
	ss := NewSessionStore(db)

	user, _ := us.Create(ctx, "s@example.com", "S", model.RoleAdmin, nil, "")

	sess, err := ss.Create(ctx, user.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}

	got, err := ss.GetByToken(ctx, sess.Token)
	if err != nil || got == nil {
		t.Fatalf("get session: %v (%v)", err, got)
	}

	expired, err := ss.Create(ctx, user.ID, -time.Minute)
	if err != nil {
		t.Fatalf("create expired session: %v", err)
	}
	if got, _ := ss.GetByToken(ctx, expired.Token); got != nil {
		t.Error("expired session should resolve to nil")
	}

	n, err := ss.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	if err := ss.Delete(ctx, sess.Token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if got, _ := ss.GetByToken(ctx, sess.Token); got != nil {
		t.Error("session still resolvable after delete")
	}
}

// Every datetime column must come back from the driver as a parsed
// time.Time, both for rows written through the stores and for rows that
// take the schema's datetime('now') default.
func TestTimestampColumnsScan(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	us := NewUserStore(db)
	u, err := us.Create(ctx, "ts@example.com", "Ts", "admin", nil, "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	got, err := us.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Error("user created_at not parsed")
	}

	ss := NewSessionStore(db)
	sess, err := ss.Create(ctx, u.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	fetched, err := ss.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if fetched == nil || fetched.CreatedAt.IsZero() || fetched.ExpiresAt.IsZero() {
		t.Fatalf("session timestamps not parsed: %+v", fetched)
	}

	bs := NewBackupStore(db)
	expires := time.Now().UTC().Add(24 * time.Hour)
	b, err := bs.Create(ctx, "backups/ts.enc", "", "full", 64, "00", nil, &expires)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	stored, err := bs.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("get backup: %v", err)
	}
	if stored.CreatedAt.IsZero() || stored.ExpiresAt == nil || stored.ExpiresAt.IsZero() {
		t.Fatalf("backup timestamps not parsed: %+v", stored)
	}

	cs := NewScheduleStore(db)
	sched, err := cs.Create(ctx, "nightly", "0 2 * * *", "full", 30, "")
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if fetched, _ := cs.GetByID(ctx, sched.ID); fetched.CreatedAt.IsZero() {
		t.Error("schedule created_at not parsed")
	}

	// Rows inserted outside the stores take the column default and must
	// scan the same way. The restore engine writes rows like this.
	if _, err := db.Exec(
		`INSERT INTO backups (filename, type, size_bytes, iv) VALUES ('backups/raw.enc', 'full', 1, '00')`,
	); err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	list, err := bs.List(ctx)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	for _, row := range list {
		if row.CreatedAt.IsZero() {
			t.Errorf("backup %d created_at not parsed", row.ID)
		}
	}
}
