package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnection_InvalidDSN(t *testing.T) {
	conn, err := NewConnection(context.Background(), "postgres://vpnbot@localhost:badport/vpnbot")
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.Contains(t, err.Error(), "failed to parse postgres dsn")
}

func TestConnection_ZeroValue(t *testing.T) {
	var conn Connection

	assert.NoError(t, conn.Close())

	err := conn.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection pool is nil")
}
