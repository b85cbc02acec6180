package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/vpnbot/internal/mocks"
	"github.com/dtroode/vpnbot/internal/model"
	"github.com/dtroode/vpnbot/internal/testutil"
)

func TestUsers_Register(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		wantErr  bool
	}{
		{name: "success"},
		{name: "store failure", storeErr: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewUserStore(t)
			svc := NewUsers(store, testutil.MakeNoopLogger())

			in := model.User{TelegramID: 42, Username: "alice", FullName: "Alice A"}
			stored := in
			stored.ID = 9
			store.On("Ensure", mock.Anything, in).Return(stored, tt.storeErr)

			got, err := svc.Register(context.Background(), 42, " alice ", "Alice A\n")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to register user")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, stored, got)
		})
	}
}
