package backup

// tableSpec declares one restorable logical table: the columns the restore
// engine binds, the dependent child tables that must be cleared before its
// rows can be deleted, and any statements that detach external references
// first. Insert and delete ordering is derived from this graph, never
// hand-ordered at the call sites.
type tableSpec struct {
	// columns bound on insert, in statement order.
	columns []string
	// children hold foreign keys into this table and are cleared first,
	// in the order given.
	children []string
	// detach statements null out references from tables that are not part
	// of the restorable set (store-level cascade is never assumed).
	detach []string
	// implied tables are snapshotted and restored alongside this one but
	// are not independently selectable.
	implied []string
}

// insertOrder is parent-before-child: every table's foreign keys point at
// tables earlier in the slice. Deletes traverse it in reverse.
var insertOrder = []string{
	"organizations",
	"users",
	"events",
	"messages",
	"message_replies",
}

var restoreTables = map[string]tableSpec{
	"organizations": {
		columns: []string{
			"id", "name", "abbreviation", "website", "socials", "logo_url",
			"qr_url", "city", "mission_statement", "can_self_publish",
			"can_cross_publish", "created_at",
		},
	},
	"users": {
		columns: []string{
			"id", "email", "display_name", "role", "org_id",
			"password_hash", "created_at",
		},
		// Clearing sessions here also invalidates logins issued against the
		// pre-restore user set.
		children: []string{"user_orgs", "sessions"},
		detach:   []string{"UPDATE backups SET created_by = NULL"},
	},
	"events": {
		columns: []string{
			"id", "title", "org_id", "created_by", "date", "start_time",
			"end_time", "address", "description", "parking", "flyer_url",
			"website_url", "reg_link", "reg_required", "hide_address",
			"event_type", "status", "bring_items", "no_bring_items",
			"notes", "created_at", "updated_at",
		},
		children: []string{"event_flyers", "review_seen", "event_published_seen"},
	},
	"messages": {
		columns: []string{
			"id", "topic", "org_id", "event_id", "message_type", "user_id",
			"archived", "created_at",
		},
		children: []string{"message_reads", "message_replies"},
		implied:  []string{"message_replies"},
	},
	"message_replies": {
		columns: []string{
			"id", "message_id", "from_type", "text", "user_id", "created_at",
		},
	},
}

// DefaultTables returns the selectable logical tables, in insert order.
// Implied child tables (message_replies) are excluded.
func DefaultTables() []string {
	var out []string
	for _, t := range insertOrder {
		if isSelectable(t) {
			out = append(out, t)
		}
	}
	return out
}

// IsRestorable reports whether name is a selectable logical table.
func IsRestorable(name string) bool {
	return isSelectable(name)
}

func isSelectable(name string) bool {
	if _, ok := restoreTables[name]; !ok {
		return false
	}
	// Implied-only tables appear in someone else's implied list.
	for _, parent := range restoreTables {
		for _, imp := range parent.implied {
			if imp == name {
				return false
			}
		}
	}
	return true
}

// expandSelection returns selected plus every implied child table, ordered
// parent-before-child per insertOrder.
func expandSelection(selected []string) []string {
	want := make(map[string]bool, len(selected))
	for _, t := range selected {
		want[t] = true
		for _, imp := range restoreTables[t].implied {
			want[imp] = true
		}
	}
	var out []string
	for _, t := range insertOrder {
		if want[t] {
			out = append(out, t)
		}
	}
	return out
}

// deleteSequence returns, for the selected tables, the flat list of tables
// to clear in child-before-parent order, plus the detach statements to run
// before each parent's delete.
func deleteSequence(selected []string) (tables []string, detach []string) {
	want := make(map[string]bool, len(selected))
	for _, t := range selected {
		want[t] = true
	}
	for i := len(insertOrder) - 1; i >= 0; i-- {
		t := insertOrder[i]
		if !want[t] {
			continue
		}
		spec := restoreTables[t]
		detach = append(detach, spec.detach...)
		tables = append(tables, spec.children...)
		tables = append(tables, t)
	}
	return tables, detach
}
