// Package store is the Postgres persistence layer for referrals,
// groups, and referred-user accounts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"referral-service/internal/models"
)

// Store wraps the database connection and provides referral data access.
type Store struct {
	conn *sql.DB
}

// New opens a Postgres connection and initializes the schema.
func New(dsn string) (*Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// NewWithConn wraps an existing connection without touching the schema.
// Tests use this with a mock connection.
func NewWithConn(conn *sql.DB) *Store {
	return &Store{conn: conn}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// DB exposes the underlying connection for collaborators that share it.
func (s *Store) DB() *sql.DB {
	return s.conn
}

// initSchema creates the necessary tables if they don't exist. The
// referral constraints carry the domain invariants: one referral per
// (referrer, referred user, group), one per (referrer, referred user)
// for general referrals, and no self-referrals.
func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			phone TEXT,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS groups (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS referrals (
			id UUID PRIMARY KEY,
			referrer_id UUID NOT NULL,
			referred_by_user_id UUID NOT NULL,
			group_id UUID REFERENCES groups(id),
			email TEXT NOT NULL,
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT referrals_no_self_referral CHECK (referrer_id <> referred_by_user_id),
			CONSTRAINT referrals_unique_per_group UNIQUE (referrer_id, referred_by_user_id, group_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS referrals_unique_general
			ON referrals(referrer_id, referred_by_user_id) WHERE group_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_referrals_referrer ON referrals(referrer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_referrals_group ON referrals(group_id)`,
	}

	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// InsertReferral persists a referral record. Constraint violations
// (duplicate, missing group, self-referral) surface as pq errors for
// the backend package to classify.
func (s *Store) InsertReferral(ctx context.Context, ref models.Referral) error {
	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}

	query := `INSERT INTO referrals (id, referrer_id, referred_by_user_id, group_id, email, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.conn.ExecContext(ctx, query,
		ref.ID,
		ref.ReferrerID,
		ref.ReferredByUserID,
		nullableUUID(ref.GroupID),
		ref.Email,
		nullableString(ref.Note),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert referral: %w", err)
	}

	return nil
}

// GroupByID fetches a group. Returns sql.ErrNoRows when the group does
// not exist.
func (s *Store) GroupByID(ctx context.Context, groupID string) (models.Group, error) {
	var g models.Group
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM groups WHERE id = $1`,
		groupID,
	).Scan(&g.ID, &g.Name, &g.CreatedAt)
	if err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// ReferralsByUser lists every referral made by a referrer, newest first.
func (s *Store) ReferralsByUser(ctx context.Context, referrerID string) ([]models.Referral, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, referrer_id, referred_by_user_id, COALESCE(group_id::text, ''), email, COALESCE(note, ''), created_at
		 FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query referrals: %w", err)
	}
	defer rows.Close()

	return scanReferrals(rows)
}

// ReferralsForGroup lists every referral into a group, newest first.
func (s *Store) ReferralsForGroup(ctx context.Context, groupID string) ([]models.Referral, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, referrer_id, referred_by_user_id, COALESCE(group_id::text, ''), email, COALESCE(note, ''), created_at
		 FROM referrals WHERE group_id = $1 ORDER BY created_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query group referrals: %w", err)
	}
	defer rows.Close()

	return scanReferrals(rows)
}

// Statistics summarizes referral volume: totals plus a per-group
// breakdown. Reporting only; the write pipeline never reads it.
func (s *Store) Statistics(ctx context.Context) (models.ReferralStatistics, error) {
	var stats models.ReferralStatistics

	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE group_id IS NULL),
			COUNT(*) FILTER (WHERE group_id IS NOT NULL)
		 FROM referrals`,
	).Scan(&stats.Total, &stats.General, &stats.Group)
	if err != nil {
		return models.ReferralStatistics{}, fmt.Errorf("failed to query referral totals: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT group_id::text, COUNT(*) FROM referrals
		 WHERE group_id IS NOT NULL GROUP BY group_id ORDER BY COUNT(*) DESC`,
	)
	if err != nil {
		return models.ReferralStatistics{}, fmt.Errorf("failed to query group breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gc models.GroupReferralCount
		if err := rows.Scan(&gc.GroupID, &gc.Count); err != nil {
			return models.ReferralStatistics{}, fmt.Errorf("failed to scan group count: %w", err)
		}
		stats.ByGroup = append(stats.ByGroup, gc)
	}
	if err := rows.Err(); err != nil {
		return models.ReferralStatistics{}, fmt.Errorf("error iterating group counts: %w", err)
	}

	return stats, nil
}

// CountByReferrer returns how many referrals a referrer has made.
func (s *Store) CountByReferrer(ctx context.Context, referrerID string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`,
		referrerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}

func scanReferrals(rows *sql.Rows) ([]models.Referral, error) {
	var referrals []models.Referral
	for rows.Next() {
		var ref models.Referral
		err := rows.Scan(
			&ref.ID,
			&ref.ReferrerID,
			&ref.ReferredByUserID,
			&ref.GroupID,
			&ref.Email,
			&ref.Note,
			&ref.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		referrals = append(referrals, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referrals: %w", err)
	}

	return referrals, nil
}

func nullableUUID(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
