package repository

import (
	"context"
	"errors"
	"time"

	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/tsogoevz/gymdesk/backend/internal/common/db"
	"github.com/tsogoevz/gymdesk/backend/internal/session/domain"
)

var (
	ErrRecordNotFound = pgx.ErrNoRows

	// ErrAlreadyRotated means the conditional rotation update matched no
	// rows: a concurrent request already retired this record.
	ErrAlreadyRotated = errors.New("refresh token already rotated")
)

type RefreshTokenStore interface {
	Create(ctx context.Context, record domain.RefreshTokenRecord) error
	FindByTokenHash(ctx context.Context, hash string) (domain.RefreshTokenRecord, error)
	MarkRotated(ctx context.Context, recordID string, newJTI string) error
	RevokeFamily(ctx context.Context, userID string, tokenFamily string, reason domain.RevokeReason) (int64, error)
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type PgRefreshTokenStore struct {
	pool *pgxpool.Pool
}

func NewPgRefreshTokenStore(pool *pgxpool.Pool) *PgRefreshTokenStore {
	return &PgRefreshTokenStore{pool: pool}
}

func (s *PgRefreshTokenStore) Create(ctx context.Context, record domain.RefreshTokenRecord) error {
	start := time.Now()
	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO refresh_tokens
		 (id, user_id, token_family, jti, token_hash, issued_at, expires_at, ip, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID,
		record.UserID,
		record.TokenFamily,
		record.JTI,
		record.TokenHash,
		record.IssuedAt,
		record.ExpiresAt,
		record.IP,
		record.UserAgent,
	)
	return db.HandleExecError(err, "create refresh token record", start)
}

func (s *PgRefreshTokenStore) FindByTokenHash(ctx context.Context, hash string) (domain.RefreshTokenRecord, error) {
	start := time.Now()
	row := s.pool.QueryRow(
		ctx,
		`SELECT id, user_id, token_family, jti, token_hash, issued_at, expires_at,
		        revoked_at, COALESCE(revoked_reason, ''), COALESCE(replaced_by, ''),
		        COALESCE(ip, ''), COALESCE(user_agent, '')
		 FROM refresh_tokens
		 WHERE token_hash = $1`,
		hash,
	)

	var record domain.RefreshTokenRecord
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.TokenFamily,
		&record.JTI,
		&record.TokenHash,
		&record.IssuedAt,
		&record.ExpiresAt,
		&record.RevokedAt,
		&record.RevokedReason,
		&record.ReplacedBy,
		&record.IP,
		&record.UserAgent,
	)
	if err := db.HandleQueryError(err, ErrRecordNotFound, "find refresh token record", start); err != nil {
		return domain.RefreshTokenRecord{}, err
	}
	return record, nil
}

// MarkRotated retires exactly one live record. The revoked_at guard makes
// the update conditional: of N concurrent refreshes presenting the same
// token, at most one caller sees success, the rest get ErrAlreadyRotated.
func (s *PgRefreshTokenStore) MarkRotated(ctx context.Context, recordID string, newJTI string) error {
	start := time.Now()
	res, err := s.pool.Exec(
		ctx,
		`UPDATE refresh_tokens
		 SET revoked_at = NOW(), revoked_reason = $2, replaced_by = $3
		 WHERE id = $1 AND revoked_at IS NULL`,
		recordID,
		string(domain.ReasonRotated),
		newJTI,
	)
	if err != nil {
		return db.HandleExecError(err, "mark refresh token record rotated", start)
	}
	db.MeasureQueryDuration("mark refresh token record rotated", start)
	if res.RowsAffected() == 0 {
		return ErrAlreadyRotated
	}
	return nil
}

// RevokeFamily marks every still-live record of a family revoked.
// Re-running on a fully revoked family matches no rows and is a no-op.
func (s *PgRefreshTokenStore) RevokeFamily(ctx context.Context, userID string, tokenFamily string, reason domain.RevokeReason) (int64, error) {
	start := time.Now()
	res, err := s.pool.Exec(
		ctx,
		`UPDATE refresh_tokens
		 SET revoked_at = NOW(), revoked_reason = $3
		 WHERE user_id = $1 AND token_family = $2 AND revoked_at IS NULL`,
		userID,
		tokenFamily,
		string(reason),
	)
	if err != nil {
		return 0, db.HandleExecError(err, "revoke refresh token family", start)
	}
	db.MeasureQueryDuration("revoke refresh token family", start)
	return res.RowsAffected(), nil
}

// DeleteStale purges records whose expiry is past the retention window.
// Revoked records stay around until then for reuse-detection history.
func (s *PgRefreshTokenStore) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	start := time.Now()
	res, err := s.pool.Exec(
		ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, db.HandleExecError(err, "delete stale refresh token records", start)
	}
	db.MeasureQueryDuration("delete stale refresh token records", start)
	return res.RowsAffected(), nil
}
