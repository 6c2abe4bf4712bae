// Package postgres implements the store using pgx/v5 with raw SQL.
// Job records live in a single huddle_jobs table; schema migrations are
// applied in order and tracked in huddle_migrations.
package postgres
