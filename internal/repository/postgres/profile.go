package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dtroode/vpnbot/internal/model"
)

var _ model.ProfileStore = (*ProfileRepository)(nil)

const profileColumns = `user_id, uuid, label, server, port, transport, security, flow, sni, path,
			  remote_id, last_synced_at, last_sync_error, created_at, updated_at`

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{
		db: db,
	}
}

func (r *ProfileRepository) Get(ctx context.Context, userID int64) (model.Profile, error) {
	query := `SELECT ` + profileColumns + `
			  FROM vpn_profiles WHERE user_id = $1`

	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Profile{}, model.ErrNotFound
		}
		return model.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// Upsert writes every field of profile. A stored remote_id survives an
// upsert that carries none.
func (r *ProfileRepository) Upsert(ctx context.Context, profile model.Profile) (model.Profile, error) {
	query := `INSERT INTO vpn_profiles (user_id, uuid, label, server, port, transport, security,
			  flow, sni, path, remote_id, last_synced_at, last_sync_error)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			  ON CONFLICT (user_id) DO UPDATE SET
			  uuid = EXCLUDED.uuid,
			  label = EXCLUDED.label,
			  server = EXCLUDED.server,
			  port = EXCLUDED.port,
			  transport = EXCLUDED.transport,
			  security = EXCLUDED.security,
			  flow = EXCLUDED.flow,
			  sni = EXCLUDED.sni,
			  path = EXCLUDED.path,
			  remote_id = COALESCE(EXCLUDED.remote_id, vpn_profiles.remote_id),
			  last_synced_at = EXCLUDED.last_synced_at,
			  last_sync_error = EXCLUDED.last_sync_error,
			  updated_at = now()
			  RETURNING ` + profileColumns

	var syncedAt sql.NullTime
	if profile.LastSyncedAt != nil {
		syncedAt = sql.NullTime{Time: *profile.LastSyncedAt, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, query,
		profile.UserID, profile.UUID, profile.Label, profile.Server, profile.Port,
		string(profile.Transport), string(profile.Security),
		nullString(profile.Flow), nullString(profile.SNI), nullString(profile.Path),
		nullString(profile.RemoteID), syncedAt, nullString(profile.LastSyncError),
	)

	saved, err := scanProfile(row)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return saved, nil
}

func scanProfile(row *sql.Row) (model.Profile, error) {
	var (
		p                       model.Profile
		transport, security     string
		flow, sni, path         sql.NullString
		remoteID, lastSyncError sql.NullString
		lastSyncedAt            sql.NullTime
	)

	err := row.Scan(
		&p.UserID, &p.UUID, &p.Label, &p.Server, &p.Port, &transport, &security,
		&flow, &sni, &path, &remoteID, &lastSyncedAt, &lastSyncError,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return model.Profile{}, err
	}

	p.Transport = model.Transport(transport)
	p.Security = model.Security(security)
	p.Flow = flow.String
	p.SNI = sni.String
	p.Path = path.String
	p.RemoteID = remoteID.String
	p.LastSyncError = lastSyncError.String
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		p.LastSyncedAt = &t
	}

	return p, nil
}
