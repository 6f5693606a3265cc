package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/hfurst/taskpay/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.ProfileImageURL, &u.Wallet, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, name, email, password_hash, role, profile_image_url, wallet, created_at, updated_at`

func (s *UserStore) Create(name, email, passwordHash, role, profileImageURL string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (name, email, password_hash, role, profile_image_url) VALUES (?, ?, ?, ?, ?)`,
		name, email, passwordHash, role, profileImageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) List() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT ` + userCols + ` FROM users ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// AllExist reports whether every id refers to an existing user. Used to
// validate task assignee lists before writing them.
func (s *UserStore) AllExist(ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT id) FROM users WHERE id IN (`+placeholders+`)`,
		args...,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count == len(unique(ids)), nil
}

// UpdateProfile updates the caller-editable fields. Empty strings leave the
// current value in place; passwordHash is only written when non-empty.
func (s *UserStore) UpdateProfile(id int64, name, email, passwordHash, profileImageURL string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET
			name = CASE WHEN ? <> '' THEN ? ELSE name END,
			email = CASE WHEN ? <> '' THEN ? ELSE email END,
			password_hash = CASE WHEN ? <> '' THEN ? ELSE password_hash END,
			profile_image_url = CASE WHEN ? <> '' THEN ? ELSE profile_image_url END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		name, name, email, email, passwordHash, passwordHash, profileImageURL, profileImageURL, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.GetByID(id)
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	var out []int64
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
