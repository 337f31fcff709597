package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rallypoint/rallypoint/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, email, displayName, role string, orgID *int64, passwordHash string) (*model.User, error) {
	now := time.Now().UTC()
	var hashPtr *string
	if passwordHash != "" {
		hashPtr = &passwordHash
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, display_name, role, org_id, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		email, displayName, role, orgID, hashPtr, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.User{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		OrgID:       orgID,
		CreatedAt:   now,
	}, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getBy(ctx, `u.id = ?`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getBy(ctx, `u.email = ?`, email)
}

func (s *UserStore) getBy(ctx context.Context, where string, arg any) (*model.User, error) {
	u := &model.User{}
	var orgID sql.NullInt64
	var orgName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.display_name, u.role, u.org_id, o.name, u.created_at
		 FROM users u LEFT JOIN organizations o ON u.org_id = o.id
		 WHERE `+where, arg,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &orgID, &orgName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if orgID.Valid {
		u.OrgID = &orgID.Int64
	}
	u.OrgName = orgName.String
	return u, nil
}

// PasswordHash returns the stored bcrypt hash for an email, or "" when the
// user has no password set.
func (s *UserStore) PasswordHash(ctx context.Context, email string) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE email = ?`, email,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get password hash: %w", err)
	}
	return hash.String, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.display_name, u.role, u.org_id, o.name, u.created_at
		 FROM users u LEFT JOIN organizations o ON u.org_id = o.id
		 ORDER BY u.display_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var orgID sql.NullInt64
		var orgName sql.NullString
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &orgID, &orgName, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if orgID.Valid {
			u.OrgID = &orgID.Int64
		}
		u.OrgName = orgName.String
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) Update(ctx context.Context, id int64, displayName, role string, orgID *int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, role = ?, org_id = ? WHERE id = ?`,
		displayName, role, orgID, id,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Orgs lists every organization a user belongs to through user_orgs.
func (s *UserStore) Orgs(ctx context.Context, userID int64) ([]model.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.name, o.abbreviation, o.website, o.socials, o.logo_url, o.qr_url, o.city,
		   o.mission_statement, o.can_self_publish, o.can_cross_publish, o.created_at
		 FROM organizations o
		 JOIN user_orgs uo ON uo.org_id = o.id
		 WHERE uo.user_id = ?
		 ORDER BY o.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user orgs: %w", err)
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		o, err := scanOrg(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan org: %w", err)
		}
		orgs = append(orgs, *o)
	}
	return orgs, rows.Err()
}
