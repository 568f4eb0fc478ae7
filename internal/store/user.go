package store

import (
	"context"

	"workshop-agenda/internal/model"
)

const userCols = `id, email, password_hash, name, phone, address, photo_url, role, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.Role == "" {
		u.Role = model.RoleStaff
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, name, role) VALUES ($1,$2,$3,$4,$5)
		 RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.Role,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.scanUser(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email)
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	return s.scanUser(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (s *Store) scanUser(ctx context.Context, q string, arg any) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name,
		&u.Phone, &u.Address, &u.PhotoURL, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// UpdateProfile writes the editable profile fields. Existing events keep
// the creator name they were stamped with.
func (s *Store) UpdateProfile(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET name=$1, phone=$2, address=$3, photo_url=$4, updated_at=NOW()
		 WHERE id=$5 RETURNING updated_at`,
		u.Name, u.Phone, u.Address, u.PhotoURL, u.ID,
	).Scan(&u.UpdatedAt)
	return notFound(err)
}
