package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/vpnbot/internal/mocks"
	"github.com/dtroode/vpnbot/internal/model"
)

func TestArchive_Save(t *testing.T) {
	recordedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		outcome      model.Outcome
		wantResponse string
	}{
		{
			name:         "json response kept",
			outcome:      model.Outcome{RemoteID: "r-1", Raw: []byte(`{"id":"r-1"}`)},
			wantResponse: `{"id":"r-1"}`,
		},
		{
			name:    "failure without body",
			outcome: model.Outcome{Error: "HTTP 500: internal error", Kind: model.FailureProtocol},
		},
		{
			name:    "non json body dropped",
			outcome: model.Outcome{Raw: []byte("<html>")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := mocks.NewStorage(t)
			a := NewArchive(storage)
			a.now = func() time.Time { return recordedAt }

			var uploaded []byte
			storage.On("Upload", mock.Anything, "provisioning/7/latest.json", mock.Anything).
				Return(nil).
				Run(func(args mock.Arguments) {
					b, err := io.ReadAll(args.Get(2).(io.Reader))
					require.NoError(t, err)
					uploaded = b
				})

			err := a.Save(context.Background(), model.User{ID: 7, TelegramID: 42}, true, tt.outcome)
			require.NoError(t, err)

			var rec Record
			require.NoError(t, json.Unmarshal(uploaded, &rec))
			assert.Equal(t, int64(7), rec.UserID)
			assert.Equal(t, int64(42), rec.TelegramID)
			assert.True(t, rec.Force)
			assert.Equal(t, tt.outcome.RemoteID, rec.RemoteID)
			assert.Equal(t, tt.outcome.Error, rec.Error)
			assert.Equal(t, string(tt.outcome.Kind), rec.Kind)
			assert.Equal(t, tt.wantResponse, string(rec.Response))
			assert.True(t, recordedAt.Equal(rec.RecordedAt))
		})
	}
}

func TestArchive_SaveError(t *testing.T) {
	storage := mocks.NewStorage(t)
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket gone"))

	err := NewArchive(storage).Save(context.Background(), model.User{ID: 1}, false, model.Outcome{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store diagnostics")
}

func TestArchive_Latest(t *testing.T) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		storage := mocks.NewStorage(t)
		storage.On("Exists", mock.Anything, "provisioning/3/latest.json").Return(false, nil)

		_, err := NewArchive(storage).Latest(ctx, 3)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("found", func(t *testing.T) {
		storage := mocks.NewStorage(t)
		storage.On("Exists", mock.Anything, "provisioning/3/latest.json").Return(true, nil)
		storage.On("Download", mock.Anything, "provisioning/3/latest.json").
			Return(io.NopCloser(bytes.NewReader([]byte(`{"user_id":3,"remote_id":"r","response":{"ok":true}}`))), nil)

		rec, err := NewArchive(storage).Latest(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), rec.UserID)
		assert.Equal(t, "r", rec.RemoteID)
		assert.JSONEq(t, `{"ok":true}`, string(rec.Response))
	})

	t.Run("exists error", func(t *testing.T) {
		storage := mocks.NewStorage(t)
		storage.On("Exists", mock.Anything, mock.Anything).Return(false, errors.New("timeout"))

		_, err := NewArchive(storage).Latest(ctx, 3)
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("corrupt", func(t *testing.T) {
		storage := mocks.NewStorage(t)
		storage.On("Exists", mock.Anything, mock.Anything).Return(true, nil)
		storage.On("Download", mock.Anything, mock.Anything).
			Return(io.NopCloser(bytes.NewReader([]byte(`{`))), nil)

		_, err := NewArchive(storage).Latest(ctx, 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode diagnostics")
	})
}
