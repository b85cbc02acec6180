package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/dtroode/vpnbot/internal/logger"
	"github.com/dtroode/vpnbot/internal/metrics"
	"github.com/dtroode/vpnbot/internal/model"
	"github.com/dtroode/vpnbot/internal/vless"
)

// ProfileDeriver builds the profile of a user that has none yet.
type ProfileDeriver interface {
	NewProfile(user model.User) model.Profile
}

// Archiver keeps the latest provisioning response for diagnostics.
type Archiver interface {
	Save(ctx context.Context, user model.User, force bool, outcome model.Outcome) error
}

// SyncResult is returned by ProfileSync.Ensure.
type SyncResult struct {
	Profile model.Profile
	// Created is true when the user had no profile before this call.
	Created bool
	// Synced is true when the stored profile carries no sync error.
	Synced bool
	Error  string
}

// ProfileSync reconciles cached profiles with the provisioning authority.
type ProfileSync struct {
	profiles    model.ProfileStore
	provisioner model.Provisioner
	deriver     ProfileDeriver
	locker      model.Locker
	archive     Archiver
	metrics     *metrics.Sync
	logger      *logger.Logger
	now         func() time.Time
}

// NewProfileSync creates a ProfileSync. archive and metrics may be nil.
func NewProfileSync(
	profiles model.ProfileStore,
	provisioner model.Provisioner,
	deriver ProfileDeriver,
	locker model.Locker,
	archive Archiver,
	syncMetrics *metrics.Sync,
	logger *logger.Logger,
) *ProfileSync {
	return &ProfileSync{
		profiles:    profiles,
		provisioner: provisioner,
		deriver:     deriver,
		locker:      locker,
		archive:     archive,
		metrics:     syncMetrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Ensure returns the profile of user, contacting the authority when force is
// set or the cached profile is missing, unconfirmed or failed. Provisioning
// failures are reported in the result; only storage and lock failures and
// cancellation of ctx are returned as errors.
func (s *ProfileSync) Ensure(ctx context.Context, user model.User, force bool) (SyncResult, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(user.ID))
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to lock profile: %w", err)
	}
	defer unlock()

	existing, err := s.profiles.Get(ctx, user.ID)
	found := true
	if errors.Is(err, model.ErrNotFound) {
		found = false
	} else if err != nil {
		return SyncResult{}, fmt.Errorf("failed to get profile: %w", err)
	}

	if found && !force && existing.Healthy() {
		s.metrics.ObserveResult(metrics.ResultSkipped)
		s.logger.Debug("ProfileSync: profile is up to date",
			"user_id", user.ID,
			"remote_id", existing.RemoteID)
		return SyncResult{Profile: existing, Synced: true}, nil
	}

	candidate := existing
	if !found {
		candidate = s.deriver.NewProfile(user)
		candidate.UserID = user.ID
	}

	started := s.now()
	outcome := s.provisioner.Provision(ctx, user, candidate, force)
	s.metrics.ObserveProvision(outcome, s.now().Sub(started))

	if err := ctx.Err(); err != nil {
		s.logger.Warn("ProfileSync: request abandoned, nothing persisted",
			"user_id", user.ID,
			"error", err.Error())
		return SyncResult{}, err
	}

	merged := vless.Merge(candidate, outcome.Overrides)
	merged.UserID = user.ID
	if outcome.RemoteID != "" {
		merged.RemoteID = outcome.RemoteID
	}
	if outcome.Failed() {
		merged.LastSyncError = truncate(outcome.Error, model.MaxSyncErrorLength)
	} else {
		syncedAt := s.now().UTC()
		merged.LastSyncedAt = &syncedAt
		merged.LastSyncError = ""
	}

	saved, err := s.profiles.Upsert(ctx, merged)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to save profile: %w", err)
	}

	if s.archive != nil {
		if err := s.archive.Save(ctx, user, force, outcome); err != nil {
			s.logger.Warn("ProfileSync: failed to archive provisioning response",
				"user_id", user.ID,
				"error", err.Error())
		}
	}

	result := SyncResult{
		Profile: saved,
		Created: !found,
		Synced:  saved.LastSyncError == "",
		Error:   saved.LastSyncError,
	}

	if result.Synced {
		s.metrics.ObserveResult(metrics.ResultSynced)
		s.logger.Info("ProfileSync: profile synchronized",
			"user_id", user.ID,
			"remote_id", saved.RemoteID,
			"created", result.Created,
			"force", force)
	} else {
		s.metrics.ObserveResult(metrics.ResultFailed)
		s.logger.Warn("ProfileSync: synchronization failed",
			"user_id", user.ID,
			"kind", string(outcome.Kind),
			"error", result.Error)
	}

	return result, nil
}

func lockKey(userID int64) string {
	return "profile:" + strconv.FormatInt(userID, 10)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
