package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dtroode/vpnbot/internal/logger"
	"github.com/dtroode/vpnbot/internal/model"
)

// Users registers bot users.
type Users struct {
	store  model.UserStore
	logger *logger.Logger
}

func NewUsers(store model.UserStore, logger *logger.Logger) *Users {
	return &Users{store: store, logger: logger}
}

// Register creates the user or refreshes its display fields.
func (s *Users) Register(ctx context.Context, telegramID int64, username, fullName string) (model.User, error) {
	user, err := s.store.Ensure(ctx, model.User{
		TelegramID: telegramID,
		Username:   strings.TrimSpace(username),
		FullName:   strings.TrimSpace(fullName),
	})
	if err != nil {
		return model.User{}, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.Debug("Users: user registered",
		"user_id", user.ID,
		"telegram_id", user.TelegramID)

	return user, nil
}
