// Package sqlstore provides the SQL implementations for the data storage
// interfaces defined in the internal/store package. The same code runs
// against a PostgreSQL server (via the pgx stdlib driver) or the embedded
// SQLite engine: queries stick to portable SQL and the time-bucketed
// aggregates are computed in Go from windowed row fetches.
package sqlstore
