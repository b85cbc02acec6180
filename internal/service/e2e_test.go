package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/vpnbot/internal/lock"
	"github.com/dtroode/vpnbot/internal/model"
	"github.com/dtroode/vpnbot/internal/provisioner"
	"github.com/dtroode/vpnbot/internal/repository/memory"
	"github.com/dtroode/vpnbot/internal/testutil"
)

// authority is a scripted provisioning endpoint.
type authority struct {
	mu      sync.Mutex
	calls   int32
	handler http.HandlerFunc
}

func (a *authority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&a.calls, 1)
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	h(w, r)
}

func (a *authority) set(h http.HandlerFunc) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

type env struct {
	sync     *ProfileSync
	users    *Users
	profiles *memory.ProfileRepository
	auth     *authority
}

func newEnv(t *testing.T, timeout time.Duration) *env {
	t.Helper()

	auth := &authority{handler: respond(http.StatusOK, "")}
	srv := httptest.NewServer(auth)
	t.Cleanup(srv.Close)

	log := testutil.MakeNoopLogger()
	profiles := memory.NewProfileRepository()
	client := provisioner.New(provisioner.Options{
		URL:     srv.URL,
		Token:   "secret",
		Timeout: timeout,
		Logger:  log,
	})

	return &env{
		sync:     NewProfileSync(profiles, client, testDeriver(), lock.NewKeyed(), nil, nil, log),
		users:    NewUsers(memory.NewUserRepository(), log),
		profiles: profiles,
		auth:     auth,
	}
}

func TestEndToEnd_NewUserProvisioned(t *testing.T) {
	e := newEnv(t, time.Second)
	ctx := context.Background()

	user, err := e.users.Register(ctx, 42, "alice", "")
	require.NoError(t, err)

	e.auth.set(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Profile struct {
				UUID string `json:"uuid"`
			} `json:"profile"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "6897a1c1-c5e4-5846-abe9-cd1c8d379cb5", req.Profile.UUID)
		_, _ = io.WriteString(w, `{"ok": true, "data": {"client": {"id": 1001}, "profile": {"port": 8443, "transport": "grpc", "serviceName": "vless-grpc"}}}`)
	})

	res, err := e.sync.Ensure(ctx, user, false)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.True(t, res.Synced)
	assert.Empty(t, res.Error)
	assert.Equal(t, "1001", res.Profile.RemoteID)
	assert.Equal(t, 8443, res.Profile.Port)
	assert.Equal(t, model.TransportGRPC, res.Profile.Transport)
	assert.Equal(t, "vless-grpc", res.Profile.Path)
	require.NotNil(t, res.Profile.LastSyncedAt)

	again, err := e.sync.Ensure(ctx, user, false)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.True(t, again.Synced)
	assert.Equal(t, int32(1), atomic.LoadInt32(&e.auth.calls))
}

func TestEndToEnd_TimeoutKeepsProfile(t *testing.T) {
	e := newEnv(t, 50*time.Millisecond)
	ctx := context.Background()

	user, err := e.users.Register(ctx, 42, "alice", "")
	require.NoError(t, err)

	e.auth.set(respond(http.StatusOK, `{"remote_id": "R1"}`))
	first, err := e.sync.Ensure(ctx, user, false)
	require.NoError(t, err)
	require.True(t, first.Synced)

	e.auth.set(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	res, err := e.sync.Ensure(ctx, user, true)
	require.NoError(t, err)

	assert.False(t, res.Synced)
	assert.Contains(t, res.Error, "timed out")
	assert.Equal(t, "R1", res.Profile.RemoteID)
	assert.Equal(t, first.Profile.LastSyncedAt, res.Profile.LastSyncedAt)

	expected := first.Profile
	expected.LastSyncError = res.Profile.LastSyncError
	expected.UpdatedAt = res.Profile.UpdatedAt
	assert.Equal(t, expected, res.Profile)
}

func TestEndToEnd_HTTPErrorRecorded(t *testing.T) {
	e := newEnv(t, time.Second)
	ctx := context.Background()

	user, err := e.users.Register(ctx, 42, "alice", "")
	require.NoError(t, err)

	e.auth.set(respond(http.StatusInternalServerError, "internal error"))

	res, err := e.sync.Ensure(ctx, user, false)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.False(t, res.Synced)
	assert.Equal(t, "HTTP 500: internal error", res.Error)
	assert.Empty(t, res.Profile.RemoteID)
	assert.Nil(t, res.Profile.LastSyncedAt)
	assert.Equal(t, 443, res.Profile.Port)

	stored, err := e.profiles.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "HTTP 500: internal error", stored.LastSyncError)

	// A prior error forces a resync on the next call, which clears it.
	e.auth.set(respond(http.StatusOK, `{"id": "R9"}`))
	recovered, err := e.sync.Ensure(ctx, user, false)
	require.NoError(t, err)
	assert.True(t, recovered.Synced)
	assert.False(t, recovered.Created)
	assert.Equal(t, "R9", recovered.Profile.RemoteID)
	assert.Empty(t, recovered.Profile.LastSyncError)
}

func TestEndToEnd_RemoteIDNeverRegresses(t *testing.T) {
	e := newEnv(t, time.Second)
	ctx := context.Background()

	user, err := e.users.Register(ctx, 42, "", "")
	require.NoError(t, err)

	e.auth.set(respond(http.StatusOK, `{"remote_id": "R1"}`))
	_, err = e.sync.Ensure(ctx, user, false)
	require.NoError(t, err)

	e.auth.set(respond(http.StatusOK, `{"profile": {"label": "renamed"}}`))
	res, err := e.sync.Ensure(ctx, user, true)
	require.NoError(t, err)

	assert.True(t, res.Synced)
	assert.Equal(t, "R1", res.Profile.RemoteID)
	assert.Equal(t, "renamed", res.Profile.Label)
}

func TestEndToEnd_ConcurrentRefreshesSerialized(t *testing.T) {
	e := newEnv(t, time.Second)
	ctx := context.Background()

	user, err := e.users.Register(ctx, 42, "", "")
	require.NoError(t, err)

	var inFlight, maxInFlight int32
	e.auth.set(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, n)
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		_, _ = io.WriteString(w, `{"remote_id": "R"}`)
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.sync.Ensure(ctx, user, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), atomic.LoadInt32(&e.auth.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}
