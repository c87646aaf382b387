package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

func (s *Store) GetTenant(ctx context.Context, id string) (models.Tenant, error) {
	var t models.Tenant
	var created int64
	err := s.queryRow(ctx, `SELECT id, name, read_only, created_at FROM tenants WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.ReadOnly, &created)
	if err != nil {
		return models.Tenant{}, notFoundOr("tenant", err)
	}
	t.CreatedAt = time.UnixMilli(created).UTC()
	return t, nil
}

func (s *Store) UpsertTenant(ctx context.Context, t models.Tenant) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `INSERT INTO tenants (id, name, read_only, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name=excluded.name, read_only=excluded.read_only`,
		t.ID, t.Name, t.ReadOnly, t.CreatedAt.UnixMilli())
	if err != nil {
		return fault("upsert tenant", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := s.queryRow(ctx, `INSERT INTO users (tenant_id, name, phone_number, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		u.TenantID, u.Name, u.Phone, u.PasswordHash, u.IsAdmin, u.CreatedAt.UnixMilli()).Scan(&u.ID)
	if err != nil {
		return models.User{}, fault("create user", err)
	}
	return u, nil
}

const userColumns = `id, tenant_id, name, phone_number, password_hash, is_admin, is_blocked, created_at`

func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	var created int64
	if err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Phone, &u.PasswordHash, &u.IsAdmin, &u.IsBlocked, &created); err != nil {
		return models.User{}, err
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if err != nil {
		return models.User{}, notFoundOr("user", err)
	}
	return u, nil
}

func (s *Store) FindUserByPhone(ctx context.Context, tenantID, phone string, admin bool) (models.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users
		WHERE tenant_id=? AND phone_number=? AND is_admin=?`, tenantID, phone, admin))
	if err != nil {
		return models.User{}, notFoundOr("user", err)
	}
	return u, nil
}

func (s *Store) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	return s.execOne(ctx, "user", `UPDATE users SET is_blocked=? WHERE id=? AND is_admin=?`, blocked, userID, false)
}

func (s *Store) SetOnline(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.exec(ctx, `UPDATE users SET is_online=?, last_online_at=? WHERE id=?`, true, at.UnixMilli(), userID)
	if err != nil {
		return fault("set online", err)
	}
	return nil
}

func (s *Store) SetOffline(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, `UPDATE users SET is_online=? WHERE id=?`, false, userID)
	if err != nil {
		return fault("set offline", err)
	}
	return nil
}

// ExpireOnline clears presence only if no heartbeat landed at or after cutoff.
func (s *Store) ExpireOnline(ctx context.Context, userID int64, cutoff time.Time) (bool, error) {
	res, err := s.exec(ctx, `UPDATE users SET is_online=?
		WHERE id=? AND is_online=? AND (last_online_at IS NULL OR last_online_at < ?)`,
		false, userID, true, cutoff.UnixMilli())
	if err != nil {
		return false, fault("expire presence", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fault("expire presence", err)
	}
	return n > 0, nil
}
