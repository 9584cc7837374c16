// Package accounts creates accounts for referred users.
package accounts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"referral-service/internal/models"
)

// Creator creates the referred user's account. Idempotency is not
// guaranteed; duplicate-email handling is the backing service's
// concern.
type Creator interface {
	CreateReferredUser(ctx context.Context, profile models.UserProfile) (string, error)
}

// PostgresCreator creates referred users as pending rows in the users
// table.
type PostgresCreator struct {
	conn *sql.DB
}

// NewPostgresCreator wraps an existing database connection.
func NewPostgresCreator(conn *sql.DB) *PostgresCreator {
	return &PostgresCreator{conn: conn}
}

// CreateReferredUser inserts a pending user account and returns its ID.
func (c *PostgresCreator) CreateReferredUser(ctx context.Context, profile models.UserProfile) (string, error) {
	id := uuid.New().String()

	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, phone, first_name, last_name, status)
		 VALUES ($1, $2, $3, $4, $5, 'pending')`,
		id,
		profile.Email,
		nullable(profile.Phone),
		profile.FirstName,
		profile.LastName,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create referred user: %w", err)
	}

	return id, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
