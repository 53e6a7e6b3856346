// Package sqlstore is a database/sql user repository for PostgreSQL (via
// pgx) and SQLite (via modernc.org/sqlite).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/internal/ids"
	"github.com/MrEthical07/portalauth/permission"
)

const pgUniqueViolation = "23505"

// Dialect selects placeholder style and driver.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	}
	return 0, fmt.Errorf("sqlstore: unknown driver %q", name)
}

func (d Dialect) driverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "pgx"
}

// rebind rewrites ? placeholders to $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const userColumns = `id, user_id, first_name, last_name, username, email, password_hash,
profile_image_url, last_login_date, last_login_date_display, join_date,
role, authorities, active, not_locked`

const schema = `create table if not exists users (
	id text primary key,
	user_id text not null unique,
	first_name text not null default '',
	last_name text not null default '',
	username text not null unique,
	email text not null unique,
	password_hash text not null,
	profile_image_url text not null default '',
	last_login_date bigint,
	last_login_date_display bigint,
	join_date bigint not null,
	role text not null,
	authorities text not null default '',
	active boolean not null,
	not_locked boolean not null
)`

// Store implements portalauth.Repository. Timestamps are stored as Unix
// milliseconds and authorities as a comma-separated list.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ portalauth.Repository = (*Store)(nil)

// New wraps an open database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open opens dsn with the driver for dialect and pings it.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite {
		// One connection keeps ":memory:" databases shared and avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return New(db, dialect), nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the users table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*portalauth.User, error) {
	var (
		u                      portalauth.User
		role, authorities      string
		lastLogin, lastDisplay sql.NullInt64
		joined                 int64
	)
	err := row.Scan(&u.ID, &u.UserID, &u.FirstName, &u.LastName, &u.Username, &u.Email, &u.PasswordHash,
		&u.ProfileImageURL, &lastLogin, &lastDisplay, &joined,
		&role, &authorities, &u.Active, &u.NotLocked)
	if err != nil {
		return nil, err
	}
	u.Role = permission.Role(role)
	u.Authorities = splitAuthorities(authorities)
	u.JoinDate = time.UnixMilli(joined).UTC()
	u.LastLoginDate = fromMillis(lastLogin)
	u.LastLoginDateDisplay = fromMillis(lastDisplay)
	return &u, nil
}

func (s *Store) findOne(ctx context.Context, column, value string) (*portalauth.User, error) {
	q := s.dialect.rebind(`select ` + userColumns + ` from users where ` + column + `=?`)
	u, err := scanUser(s.db.QueryRowContext(ctx, q, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*portalauth.User, error) {
	return s.findOne(ctx, "username", username)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*portalauth.User, error) {
	return s.findOne(ctx, "email", email)
}

func (s *Store) FindAll(ctx context.Context) ([]portalauth.User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []portalauth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Save upserts u by ID, assigning a ULID on first save.
func (s *Store) Save(ctx context.Context, u *portalauth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	q := s.dialect.rebind(`insert into users (` + userColumns + `)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
on conflict (id) do update set
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	username = excluded.username,
	email = excluded.email,
	password_hash = excluded.password_hash,
	profile_image_url = excluded.profile_image_url,
	last_login_date = excluded.last_login_date,
	last_login_date_display = excluded.last_login_date_display,
	role = excluded.role,
	authorities = excluded.authorities,
	active = excluded.active,
	not_locked = excluded.not_locked`)

	_, err := s.db.ExecContext(ctx, q,
		u.ID, u.UserID, u.FirstName, u.LastName, u.Username, u.Email, u.PasswordHash,
		u.ProfileImageURL, toMillis(u.LastLoginDate), toMillis(u.LastLoginDateDisplay), u.JoinDate.UnixMilli(),
		string(u.Role), strings.Join(u.Authorities, ","), u.Active, u.NotLocked,
	)
	return uniqueViolation(err)
}

// uniqueViolation maps a unique-constraint failure on username or email to
// the matching account error. Other errors pass through.
func uniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var column string
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		if pgErr.Code != pgUniqueViolation {
			return err
		}
		column = pgErr.ConstraintName
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		column = err.Error()
	default:
		return err
	}
	switch {
	case strings.Contains(column, "username"):
		return portalauth.ErrUsernameExists
	case strings.Contains(column, "email"):
		return portalauth.ErrEmailExists
	}
	return err
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`delete from users where id=?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return portalauth.ErrUserNotFound
	}
	return nil
}

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func splitAuthorities(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
