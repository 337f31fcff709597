package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rallypoint/rallypoint/internal/model"
)

type OrganizationStore struct {
	db *sql.DB
}

func NewOrganizationStore(db *sql.DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

const orgColumns = `id, name, abbreviation, website, socials, logo_url, qr_url, city,
	mission_statement, can_self_publish, can_cross_publish, created_at`

func scanOrg(scan func(dest ...any) error) (*model.Organization, error) {
	o := &model.Organization{}
	err := scan(&o.ID, &o.Name, &o.Abbreviation, &o.Website, &o.Socials, &o.LogoURL,
		&o.QRURL, &o.City, &o.MissionStatement, &o.CanSelfPublish, &o.CanCrossPublish, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrganizationStore) Create(ctx context.Context, o *model.Organization) (*model.Organization, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (name, abbreviation, website, socials, logo_url, qr_url, city,
		   mission_statement, can_self_publish, can_cross_publish, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Name, o.Abbreviation, o.Website, o.Socials, o.LogoURL, o.QRURL, o.City,
		o.MissionStatement, o.CanSelfPublish, o.CanCrossPublish, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	id, _ := result.LastInsertId()
	o.ID = id
	o.CreatedAt = now
	return o, nil
}

func (s *OrganizationStore) GetByID(ctx context.Context, id int64) (*model.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = ?`, id)
	o, err := scanOrg(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization %d: %w", id, err)
	}
	return o, nil
}

func (s *OrganizationStore) List(ctx context.Context) ([]model.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orgColumns+` FROM organizations ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		o, err := scanOrg(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, *o)
	}
	return orgs, rows.Err()
}

func (s *OrganizationStore) Update(ctx context.Context, o *model.Organization) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET name = ?, abbreviation = ?, website = ?, socials = ?, logo_url = ?,
		   qr_url = ?, city = ?, mission_statement = ?, can_self_publish = ?, can_cross_publish = ?
		 WHERE id = ?`,
		o.Name, o.Abbreviation, o.Website, o.Socials, o.LogoURL, o.QRURL, o.City,
		o.MissionStatement, o.CanSelfPublish, o.CanCrossPublish, o.ID,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	return nil
}

func (s *OrganizationStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	return nil
}

// Members lists the users attached to an organization, either directly via
// users.org_id or through a user_orgs membership row.
func (s *OrganizationStore) Members(ctx context.Context, orgID int64) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT u.id, u.email, u.display_name, u.role, u.org_id, u.created_at
		 FROM users u
		 LEFT JOIN user_orgs uo ON uo.user_id = u.id
		 WHERE u.org_id = ? OR uo.org_id = ?
		 ORDER BY u.display_name ASC`, orgID, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var orgRef sql.NullInt64
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &orgRef, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if orgRef.Valid {
			u.OrgID = &orgRef.Int64
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AddMember records a user_orgs membership row; duplicates are ignored.
func (s *OrganizationStore) AddMember(ctx context.Context, orgID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_orgs (user_id, org_id) VALUES (?, ?)`, userID, orgID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *OrganizationStore) RemoveMember(ctx context.Context, orgID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_orgs WHERE user_id = ? AND org_id = ?`, userID, orgID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}
