package notification

import (
	"database/sql"
	"embed"

	"github.com/nao1215/bookfeed/pkg/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// initSchema はembedされたマイグレーションを適用してスキーマを構築する。
func initSchema(db *sql.DB) error {
	return migration.Run(db, migrationFS, "migrations")
}
