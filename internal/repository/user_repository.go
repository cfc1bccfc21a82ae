package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/blog-cms/internal/model"
)

// UserStore persists user records. Implementations must enforce username
// and email uniqueness atomically and report violations as ErrConflict.
type UserStore interface {
	Insert(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// Hasher is the subset of utils.PasswordHasher the credential store needs.
type Hasher interface {
	Hash(plain string) (string, error)
}

// Credentials is the credential store: it hashes raw passwords before
// handing records to the underlying UserStore.
type Credentials struct {
	store  UserStore
	hasher Hasher
	now    func() time.Time
}

func NewCredentials(store UserStore, hasher Hasher) *Credentials {
	return &Credentials{store: store, hasher: hasher, now: time.Now}
}

// Create hashes rawPassword and persists a new user. ErrConflict is
// returned when the username or email is already registered; no record is
// written in that case.
func (c *Credentials) Create(ctx context.Context, username, email, rawPassword string) (model.User, error) {
	hash, err := c.hasher.Hash(rawPassword)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		Username:     strings.TrimSpace(username),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    c.now().UTC().Truncate(time.Second),
	}
	if err := c.store.Insert(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// FindByEmail returns ErrNotFound when no account uses email.
func (c *Credentials) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return c.store.GetByEmail(ctx, NormalizeEmail(email))
}

// FindByID returns ErrNotFound when no account has id.
func (c *Credentials) FindByID(ctx context.Context, id string) (model.User, error) {
	return c.store.GetByID(ctx, id)
}

// NormalizeEmail lowercases and trims an address so lookups and the unique
// index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// UserRepo is the MySQL-backed UserStore. Uniqueness relies on the
// uq_users_username and uq_users_email indexes created by the migrations.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Insert inserts u and sets its ID.
func (r *UserRepo) Insert(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, created_at) VALUES (?,?,?,?)",
		u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = strconv.FormatInt(id, 10)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id,username,email,password_hash,created_at FROM users WHERE email=? LIMIT 1",
		email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return model.User{}, ErrNotFound
	}
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT id,username,email,password_hash,created_at FROM users WHERE id=? LIMIT 1",
		n))
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u  model.User
		id uint64
	)
	if err := row.Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	u.ID = strconv.FormatUint(id, 10)
	return u, nil
}
