package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/tsogoevz/gymdesk/backend/internal/account/domain"
	"github.com/tsogoevz/gymdesk/backend/internal/common/db"
)

var (
	ErrAccountNotFound = pgx.ErrNoRows

	ErrEmailTaken    = errors.New("email already exists")
	ErrUsernameTaken = errors.New("username already exists")
)

type Repository interface {
	Create(ctx context.Context, account domain.Account) error
	FindByID(ctx context.Context, id domain.ID) (domain.Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (domain.Account, error)
	UpdateLastLogin(ctx context.Context, id domain.ID, at time.Time) error
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const accountColumns = `id, role, status, name, email, username, password_hash, created_at, last_login_at`

func (r *PgRepository) Create(ctx context.Context, account domain.Account) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO accounts (id, role, status, name, email, username, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(account.ID),
		string(account.Role),
		string(account.Status),
		account.Name,
		account.Email,
		account.Username,
		account.PasswordHash,
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return ErrEmailTaken
			}
			return ErrUsernameTaken
		}
		return db.HandleExecError(err, "create account", start)
	}
	db.MeasureQueryDuration("create account", start)
	return nil
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.Account, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		string(id),
	)
	return scanAccount(row, "find account by id", start)
}

// FindByIdentifier resolves an account by email or username, whichever
// the member typed into the login form.
func (r *PgRepository) FindByIdentifier(ctx context.Context, identifier string) (domain.Account, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1 OR username = $1`,
		identifier,
	)
	return scanAccount(row, "find account by identifier", start)
}

func (r *PgRepository) UpdateLastLogin(ctx context.Context, id domain.ID, at time.Time) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`UPDATE accounts SET last_login_at = $2 WHERE id = $1`,
		string(id),
		at,
	)
	return db.HandleExecError(err, "update account last login", start)
}

func scanAccount(row pgx.Row, operation string, start time.Time) (domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.Role,
		&account.Status,
		&account.Name,
		&account.Email,
		&account.Username,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.LastLoginAt,
	)
	if err := db.HandleQueryError(err, ErrAccountNotFound, operation, start); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}
