// Package mysql stores the content archive in MySQL. Schema changes ship as
// embedded SQL files under deploy/migrations and are applied once, tracked in
// the schema_migrations table.
package mysql
