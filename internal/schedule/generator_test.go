package schedule

import (
	"strings"
	"testing"

	"github.com/rallypoint/rallypoint/internal/model"
)

func TestGenerateFullSchedule(t *testing.T) {
	desc, err := Generate(model.BackupSchedule{
		ID:            7,
		Label:         "nightly",
		Cron:          "0 2 * * *",
		BackupType:    model.BackupTypeFull,
		RetentionDays: 30,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for _, want := range []string{
		`"events", "organizations", "users", "messages"`,
		`"label": "nightly"`,
		`"type": "full"`,
		"/api/admin/backups",
		"RALLYPOINT_API_TOKEN",
		"encryption_key",
	} {
		if !strings.Contains(desc.Script, want) {
			t.Errorf("script missing %q", want)
		}
	}
	if !strings.HasPrefix(desc.Script, "#!/bin/sh") {
		t.Error("script missing shebang")
	}

	if !strings.Contains(desc.Crontab, "0 2 * * *") {
		t.Errorf("crontab missing cron expression: %q", desc.Crontab)
	}
	if !strings.Contains(desc.Crontab, "rallypoint-backup-7.sh") {
		t.Errorf("crontab missing schedule id: %q", desc.Crontab)
	}
}

func TestGeneratePartialSchedule(t *testing.T) {
	desc, err := Generate(model.BackupSchedule{
		ID:         3,
		Label:      "events only",
		Cron:       "30 1 * * 0",
		BackupType: model.BackupTypePartial,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !strings.Contains(desc.Script, `"tables": ["events"]`) {
		t.Errorf("partial script should back up events only:\n%s", desc.Script)
	}
	if strings.Contains(desc.Script, `"users"`) {
		t.Error("partial script should not include users")
	}
}
