package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

// UserDirectory reads the users table owned by the account service.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func (d *UserDirectory) LookupUser(ctx context.Context, userID int64) (domain.User, error) {
	var user domain.User
	err := d.pool.QueryRow(ctx,
		`SELECT id, username, notifications_enabled FROM users WHERE id=$1`, userID,
	).Scan(&user.ID, &user.Username, &user.NotificationsEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", classify(err))
	}
	return user, nil
}

func (d *UserDirectory) Usernames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	rows, err := d.pool.Query(ctx, `SELECT id, username FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("query usernames: %w", classify(err))
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (d *UserDirectory) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, username, notifications_enabled FROM users ORDER BY username, id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", classify(err))
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.NotificationsEnabled); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
