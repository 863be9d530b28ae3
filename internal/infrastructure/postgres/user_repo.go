package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type User struct {
	ID             int64
	Username       string
	PasswordBcrypt string
	CreatedAt      time.Time
}

type UserRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *UserRepo { return &UserRepo{pool: pool} }

func (r *UserRepo) Create(ctx context.Context, username, passwordBcrypt string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_bcrypt) VALUES ($1,$2) RETURNING id`,
		username, passwordBcrypt,
	).Scan(&id)
	return id, err
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, password_bcrypt, created_at FROM users WHERE username=$1`, username)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordBcrypt, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// SetAPIToken stores the (already encrypted) coworking-API bearer token for a
// user, creating the row on first use.
func (r *UserRepo) SetAPIToken(ctx context.Context, userID int64, tokenEnc string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_tokens (user_id, token_enc, updated_at) VALUES ($1,$2,now())
		ON CONFLICT (user_id) DO UPDATE SET token_enc=$2, updated_at=now()
	`, userID, tokenEnc)
	return err
}

func (r *UserRepo) GetAPIToken(ctx context.Context, userID int64) (string, error) {
	var enc string
	err := r.pool.QueryRow(ctx,
		`SELECT token_enc FROM api_tokens WHERE user_id=$1`, userID).Scan(&enc)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return enc, err
}
