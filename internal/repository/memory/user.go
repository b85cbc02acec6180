// Package memory keeps users and profiles in process memory. It backs the
// bot when no database is configured and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/vpnbot/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	mu     sync.RWMutex
	nextID int64
	byTG   map[int64]model.User
	now    func() time.Time
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byTG: make(map[int64]model.User),
		now:  time.Now,
	}
}

func (r *UserRepository) Ensure(ctx context.Context, user model.User) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byTG[user.TelegramID]
	if !ok {
		r.nextID++
		stored = model.User{
			ID:         r.nextID,
			TelegramID: user.TelegramID,
			CreatedAt:  r.now().UTC(),
		}
	}
	stored.Username = user.Username
	stored.FullName = user.FullName
	r.byTG[user.TelegramID] = stored

	return stored, nil
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byTG[telegramID]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return user, nil
}
