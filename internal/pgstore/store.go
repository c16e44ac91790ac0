// Copyright (C) 2025 Lakeshed Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package pgstore loads schema-less JSON records into Postgres tables
// whose columns are inferred from the records themselves.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTableExists is returned by CreateTable under PolicyFail when the
// target table already exists.
var ErrTableExists = errors.New("table already exists")

// Config is the explicit connection configuration. URL, when set,
// overrides the individual fields.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	URL      string `mapstructure:"url"`
}

// ConnString builds a postgresql:// URL from the config.
func (c Config) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := &url.URL{
		Scheme: "postgresql",
		Host:   fmt.Sprintf("%s:%d", c.Host, port),
		Path:   c.Database,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", c.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Store is one pooled connection to the relational side of the
// pipeline. A single Store handle serves a whole run.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres. The caller owns the Store and must Close it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ConflictPolicy controls what CreateTable does when the table exists.
type ConflictPolicy string

const (
	PolicyAppend  ConflictPolicy = "append"  // create if absent, keep existing rows
	PolicyReplace ConflictPolicy = "replace" // drop and recreate
	PolicyFail    ConflictPolicy = "fail"    // error when the table exists
)

// ParsePolicy validates a policy string from config or flags.
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(s) {
	case PolicyAppend, PolicyReplace, PolicyFail:
		return ConflictPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (want append, replace, or fail)", s)
	}
}

// CreateTable creates the table with the given columns, honoring the
// conflict policy.
func (s *Store) CreateTable(ctx context.Context, table string, cols []Column, policy ConflictPolicy) error {
	switch policy {
	case PolicyReplace:
		drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", pgx.Identifier{table}.Sanitize())
		if _, err := s.pool.Exec(ctx, drop); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	case PolicyFail:
		var exists bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = current_schema() AND tablename = $1)",
			table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrTableExists, table)
		}
	case PolicyAppend:
		// CREATE TABLE IF NOT EXISTS below is enough.
	default:
		return fmt.Errorf("unknown conflict policy %q", policy)
	}

	if _, err := s.pool.Exec(ctx, createTableSQL(table, cols)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// InsertRows appends records to the table in one pgx batch, in order.
// Missing keys insert as NULL; JSONB columns take the re-encoded value.
func (s *Store) InsertRows(ctx context.Context, table string, cols []Column, rows []map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	sql := insertSQL(table, cols)
	batch := &pgx.Batch{}
	for _, row := range rows {
		args, err := rowArgs(cols, row)
		if err != nil {
			return 0, err
		}
		batch.Queue(sql, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	var inserted int64
	for range rows {
		ct, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert into %s: %w", table, err)
		}
		inserted += ct.RowsAffected()
	}
	return inserted, nil
}
