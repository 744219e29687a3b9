package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/store"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so text comparison in ORDER BY follows time order.
// Reads accept any RFC 3339 fraction.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository implements the store ports on a local SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

var (
	_ store.Remote   = (*SQLiteRepository)(nil)
	_ store.Profiles = (*SQLiteRepository)(nil)
	_ store.Users    = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: log.Default(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectColumns = `id, user_id, date, type, amount, currency, category, description, created_at, updated_at`

// List returns the owner's rows, newest date first.
func (r *SQLiteRepository) List(ctx context.Context, ownerID string) ([]store.Row, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, row store.Row) (store.Row, error) {
	now := r.now().UTC()
	row.ID = uuid.NewString()
	row.CreatedAt = now
	row.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.OwnerID, row.Date.String(), string(row.Type), row.Amount.String(),
		row.Currency, row.Category, nullString(row.Description),
		now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return store.Row{}, fmt.Errorf("insert transaction: %w", err)
	}

	r.logger.DebugContext(ctx, "Transaction stored",
		log.FieldTransactionID, row.ID,
		log.FieldOwnerID, row.OwnerID,
		log.FieldDate, row.Date.String())
	return row, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, ownerID, id string, row store.Row) (store.Row, error) {
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = r.now()
	}
	updated := row.UpdatedAt.UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		    SET date = ?, type = ?, amount = ?, currency = ?, category = ?, description = ?, updated_at = ?
		  WHERE id = ? AND user_id = ?`,
		row.Date.String(), string(row.Type), row.Amount.String(), row.Currency, row.Category,
		nullString(row.Description), updated.Format(timeLayout), id, ownerID)
	if err != nil {
		return store.Row{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := expectOne(res); err != nil {
		return store.Row{}, err
	}

	stored, err := scanRow(r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Row{}, core.ErrNotFound
	}
	return stored, err
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) EnsureProfile(ctx context.Context, userID, displayName string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, display_name, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		userID, displayName, r.now().UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("ensure profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure profile: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = r.now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.Format(timeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.User{}, store.ErrEmailTaken
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (store.User, error) {
	var (
		u       store.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, core.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (store.Row, error) {
	var (
		row                  store.Row
		date, typ, amount    string
		desc                 sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&row.ID, &row.OwnerID, &date, &typ, &amount, &row.Currency, &row.Category,
		&desc, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Row{}, err
		}
		return store.Row{}, fmt.Errorf("scan transaction: %w", err)
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return store.Row{}, fmt.Errorf("transaction %s: %w", row.ID, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return store.Row{}, fmt.Errorf("transaction %s: parse amount %q: %w", row.ID, amount, err)
	}
	row.Date = d
	row.Type = core.Direction(typ)
	row.Amount = amt
	if desc.Valid {
		row.Description = &desc.String
	}
	row.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	row.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return row, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
