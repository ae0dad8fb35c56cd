package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/cityprosperity/internal/rbac"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrBadRole            = errors.New("unknown role")
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Users reads and writes the users table.
type Users struct{ db *sql.DB }

func NewUsers(db *sql.DB) *Users { return &Users{db: db} }

// Create hashes password with bcrypt and inserts a new user.
func (u *Users) Create(ctx context.Context, username, password, role string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return u.CreateWithHash(ctx, username, string(hash), role)
}

func (u *Users) CreateWithHash(ctx context.Context, username, hash, role string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, errors.New("username is required")
	}
	if !rbac.ValidRole(role) {
		return User{}, fmt.Errorf("%w: %q", ErrBadRole, role)
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return User{}, fmt.Errorf("password hash: %w", err)
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	if err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=$1`, username).Scan(new(int)); err == nil {
		return User{}, fmt.Errorf("%w: %s", ErrUserExists, username)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}

	usr := User{ID: uuid.NewString(), Username: username, Role: role}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
		usr.ID, usr.Username, hash, usr.Role, time.Now().Unix())
	if err != nil {
		return User{}, err
	}
	return usr, tx.Commit()
}

// EnsureAdmin creates the bootstrap admin when username is unknown. An
// existing user is left untouched.
func (u *Users) EnsureAdmin(ctx context.Context, username, hash string) error {
	if username == "" || hash == "" {
		return nil
	}
	_, err := u.CreateWithHash(ctx, username, hash, rbac.RoleAdmin)
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	return err
}

// Authenticate checks password against the stored bcrypt hash.
func (u *Users) Authenticate(ctx context.Context, username, password string) (User, error) {
	var usr User
	var hash string
	err := u.db.QueryRowContext(ctx,
		`SELECT id, username, role, password_hash FROM users WHERE username=$1`,
		strings.TrimSpace(username)).Scan(&usr.ID, &usr.Username, &usr.Role, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (u *Users) List(ctx context.Context) ([]User, error) {
	rows, err := u.db.QueryContext(ctx, `SELECT id, username, role FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var usr User
		if err := rows.Scan(&usr.ID, &usr.Username, &usr.Role); err != nil {
			return nil, err
		}
		out = append(out, usr)
	}
	return out, rows.Err()
}
