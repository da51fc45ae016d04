package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"craps-server/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
)

const userColumns = `user_id, username, balance, created_at, updated_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.UserID,
		&user.Username,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user with the given starting balance.
func (r *UserRepository) Create(ctx context.Context, userID int64, username string, balance int64) (*model.User, error) {
	const query = `
		INSERT INTO users (user_id, username, balance, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(querier(ctx, r.pool).QueryRow(ctx, query, userID, username, balance))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(querier(ctx, r.pool).QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user, creating one with the starting balance if it
// doesn't exist. The second return value reports whether it was created.
func (r *UserRepository) GetOrCreate(ctx context.Context, userID int64, username string, startingBalance int64) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, userID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, userID, username, startingBalance)
	if err != nil {
		// Another request might have created the user first
		user, err = r.GetByID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}
	return user, true, nil
}

// UpdateBalance adds amount to the user's balance; amount may be negative.
func (r *UserRepository) UpdateBalance(ctx context.Context, userID int64, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(querier(ctx, r.pool).QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return user, nil
}

// SetBalance sets a user's balance to an exact value.
func (r *UserRepository) SetBalance(ctx context.Context, userID int64, balance int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(querier(ctx, r.pool).QueryRow(ctx, query, userID, balance))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	return user, nil
}

// GetTopUsers retrieves the top N users by balance.
func (r *UserRepository) GetTopUsers(ctx context.Context, limit int) ([]*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY balance DESC, user_id LIMIT $1`

	rows, err := querier(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// UpdateUsername updates a user's display name.
func (r *UserRepository) UpdateUsername(ctx context.Context, userID int64, username string) error {
	const query = `UPDATE users SET username = $2, updated_at = NOW() WHERE user_id = $1`

	result, err := querier(ctx, r.pool).Exec(ctx, query, userID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Exists checks if a user with the given ID exists.
func (r *UserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`

	var exists bool
	if err := querier(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}
