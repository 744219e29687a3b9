// Package postgres implements the store ports on a PostgreSQL database
// through a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
	"kakeibo/internal/store"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

var (
	_ store.Remote   = (*Store)(nil)
	_ store.Profiles = (*Store)(nil)
	_ store.Users    = (*Store)(nil)
)

// Connect opens a small pool against url and checks it answers.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 2 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func New(db *pgxpool.Pool) *Store { return &Store{db: db} }

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Close() { s.db.Close() }

const columns = `id, user_id, date, type, amount::text, currency, category, description, created_at, updated_at`

func (s *Store) List(ctx context.Context, ownerID string) ([]store.Row, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+columns+` FROM transactions WHERE user_id=$1 ORDER BY date DESC, created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, row store.Row) (store.Row, error) {
	row.ID = uuid.NewString()
	stored, err := scanRow(s.db.QueryRow(ctx,
		`INSERT INTO transactions(id,user_id,date,type,amount,currency,category,description)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING `+columns,
		row.ID, row.OwnerID, row.Date.Time, string(row.Type), row.Amount.String(),
		row.Currency, row.Category, row.Description,
	))
	if err != nil {
		return store.Row{}, fmt.Errorf("insert transaction: %w", err)
	}
	return stored, nil
}

func (s *Store) Update(ctx context.Context, ownerID, id string, row store.Row) (store.Row, error) {
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}
	stored, err := scanRow(s.db.QueryRow(ctx,
		`UPDATE transactions
		    SET date=$3, type=$4, amount=$5, currency=$6, category=$7, description=$8, updated_at=$9
		  WHERE id=$1 AND user_id=$2
		  RETURNING `+columns,
		id, ownerID, row.Date.Time, string(row.Type), row.Amount.String(),
		row.Currency, row.Category, row.Description, row.UpdatedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Row{}, core.ErrNotFound
	}
	if err != nil {
		return store.Row{}, fmt.Errorf("update transaction: %w", err)
	}
	return stored, nil
}

func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM transactions WHERE id=$1 AND user_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) EnsureProfile(ctx context.Context, userID, displayName string) (bool, error) {
	ct, err := s.db.Exec(ctx,
		`INSERT INTO profiles(id, display_name) VALUES($1,$2) ON CONFLICT (id) DO NOTHING`,
		userID, displayName)
	if err != nil {
		return false, fmt.Errorf("ensure profile: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *Store) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	err := s.db.QueryRow(ctx,
		`INSERT INTO users(id,email,password_hash) VALUES($1,$2,$3) RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash,
	).Scan(&u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.User{}, store.ErrEmailTaken
	}
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	var u store.User
	err := s.db.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email=$1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, core.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanRow(r pgx.Row) (store.Row, error) {
	var (
		row    store.Row
		date   time.Time
		typ    string
		amount string
	)
	if err := r.Scan(&row.ID, &row.OwnerID, &date, &typ, &amount, &row.Currency, &row.Category,
		&row.Description, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return store.Row{}, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return store.Row{}, fmt.Errorf("transaction %s: parse amount: %w", row.ID, err)
	}
	row.Date = core.DateOf(date)
	row.Type = core.Direction(typ)
	row.Amount = dec
	if row.Description != nil && *row.Description == "" {
		row.Description = nil
	}
	return row, nil
}
