// Package diagnostics keeps the latest provisioning response of each user
// for troubleshooting.
package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dtroode/vpnbot/internal/model"
)

// Record is one archived provisioning attempt.
type Record struct {
	UserID     int64           `json:"user_id"`
	TelegramID int64           `json:"telegram_id"`
	Force      bool            `json:"force"`
	RemoteID   string          `json:"remote_id,omitempty"`
	Error      string          `json:"error,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

type Archive struct {
	storage model.Storage
	now     func() time.Time
}

func NewArchive(storage model.Storage) *Archive {
	return &Archive{
		storage: storage,
		now:     time.Now,
	}
}

func key(userID int64) string {
	return fmt.Sprintf("provisioning/%d/latest.json", userID)
}

// Save overwrites the archived attempt of user.
func (a *Archive) Save(ctx context.Context, user model.User, force bool, outcome model.Outcome) error {
	rec := Record{
		UserID:     user.ID,
		TelegramID: user.TelegramID,
		Force:      force,
		RemoteID:   outcome.RemoteID,
		Error:      outcome.Error,
		Kind:       string(outcome.Kind),
		RecordedAt: a.now().UTC(),
	}
	if len(outcome.Raw) > 0 && json.Valid(outcome.Raw) {
		rec.Response = json.RawMessage(outcome.Raw)
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	if err := a.storage.Upload(ctx, key(user.ID), bytes.NewReader(body)); err != nil {
		return fmt.Errorf("failed to store diagnostics: %w", err)
	}

	return nil
}

// Latest returns the archived attempt of userID or model.ErrNotFound.
func (a *Archive) Latest(ctx context.Context, userID int64) (Record, error) {
	k := key(userID)

	ok, err := a.storage.Exists(ctx, k)
	if err != nil {
		return Record{}, fmt.Errorf("failed to check diagnostics: %w", err)
	}
	if !ok {
		return Record{}, model.ErrNotFound
	}

	rc, err := a.storage.Download(ctx, k)
	if err != nil {
		return Record{}, fmt.Errorf("failed to load diagnostics: %w", err)
	}
	defer rc.Close()

	var rec Record
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode diagnostics: %w", err)
	}

	return rec, nil
}
