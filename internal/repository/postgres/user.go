package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dtroode/vpnbot/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// Ensure creates the user keyed by TelegramID or refreshes its display
// fields, returning the stored row.
func (r *UserRepository) Ensure(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (tg_id, username, full_name)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (tg_id) DO UPDATE
			  SET username = EXCLUDED.username, full_name = EXCLUDED.full_name
			  RETURNING id, tg_id, username, full_name, created_at`

	row := r.db.QueryRowContext(ctx, query,
		user.TelegramID, nullString(user.Username), nullString(user.FullName),
	)

	saved, err := scanUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to ensure user: %w", err)
	}

	return saved, nil
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error) {
	query := `SELECT id, tg_id, username, full_name, created_at
			  FROM users WHERE tg_id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by telegram id: %w", err)
	}

	return user, nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		user     model.User
		username sql.NullString
		fullName sql.NullString
	)

	if err := row.Scan(&user.ID, &user.TelegramID, &username, &fullName, &user.CreatedAt); err != nil {
		return model.User{}, err
	}
	user.Username = username.String
	user.FullName = fullName.String

	return user, nil
}
