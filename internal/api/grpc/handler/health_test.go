package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dtroode/vpnbot/internal/mocks"
	"github.com/dtroode/vpnbot/internal/model"
	"github.com/dtroode/vpnbot/internal/testutil"
)

func TestHealth_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		service    string
		dbErr      error
		wantStatus grpc_health_v1.HealthCheckResponse_ServingStatus
		wantCode   codes.Code
	}{
		{
			name:       "all dependencies up",
			wantStatus: grpc_health_v1.HealthCheckResponse_SERVING,
		},
		{
			name:       "database down",
			dbErr:      errors.New("connection refused"),
			wantStatus: grpc_health_v1.HealthCheckResponse_NOT_SERVING,
		},
		{
			name:       "named dependency",
			service:    "database",
			wantStatus: grpc_health_v1.HealthCheckResponse_SERVING,
		},
		{
			name:     "unknown dependency",
			service:  "queue",
			wantCode: codes.NotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := mocks.NewPinger(t)
			if tt.wantCode == codes.OK {
				db.On("Ping", mock.Anything).Return(tt.dbErr)
			}

			h := NewHealth(map[string]model.Pinger{"database": db}, testutil.MakeNoopLogger())
			resp, err := h.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: tt.service})

			if tt.wantCode != codes.OK {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, status.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.GetStatus())
		})
	}
}

func TestHealth_Check_NoDependencies(t *testing.T) {
	t.Parallel()

	h := NewHealth(nil, testutil.MakeNoopLogger())
	resp, err := h.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}
