package model

import (
	"context"
	"time"
)

// UserStore defines persistence operations for bot users.
type UserStore interface {
	Ensure(ctx context.Context, user User) (User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (User, error)
}

// User is a bot user. ID is the internal key profiles are stored under,
// TelegramID is the stable external identifier identities are derived from.
type User struct {
	ID         int64
	TelegramID int64
	Username   string
	FullName   string
	CreatedAt  time.Time
}
