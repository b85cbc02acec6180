package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dtroode/vpnbot/internal/model"
)

// ErrDuplicateUUID is returned when a client identifier is already held by
// another user's profile.
var ErrDuplicateUUID = errors.New("client uuid already assigned")

var _ model.ProfileStore = (*ProfileRepository)(nil)

type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[int64]model.Profile
	now      func() time.Time
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		profiles: make(map[int64]model.Profile),
		now:      time.Now,
	}
}

func (r *ProfileRepository) Get(ctx context.Context, userID int64) (model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return model.Profile{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return model.Profile{}, model.ErrNotFound
	}
	return clone(p), nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile model.Profile) (model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return model.Profile{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, other := range r.profiles {
		if userID != profile.UserID && other.UUID == profile.UUID {
			return model.Profile{}, fmt.Errorf("failed to upsert profile: %w", ErrDuplicateUUID)
		}
	}

	now := r.now().UTC()
	saved := clone(profile)
	saved.UpdatedAt = now

	if prior, ok := r.profiles[profile.UserID]; ok {
		saved.CreatedAt = prior.CreatedAt
		if saved.RemoteID == "" {
			saved.RemoteID = prior.RemoteID
		}
	} else {
		saved.CreatedAt = now
	}

	r.profiles[profile.UserID] = saved
	return clone(saved), nil
}

func clone(p model.Profile) model.Profile {
	if p.LastSyncedAt != nil {
		t := *p.LastSyncedAt
		p.LastSyncedAt = &t
	}
	return p
}
