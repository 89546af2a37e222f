package database

import (
	"context"
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema
var schemaFS embed.FS

// Schema names a set of tables.
type Schema string

const (
	// SchemaClient holds words, review events, the activity log and the sync queue.
	SchemaClient Schema = "client"
	// SchemaServer holds the entities accepted by the sync server.
	SchemaServer Schema = "server"
)

// schemaDirs maps a driver name to its directory under schema/.
var schemaDirs = map[string]string{
	"sqlite3": "sqlite",
	"mysql":   "mysql",
}

// Migrate creates the tables of schema for the connection's dialect. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB, schema Schema) error {
	dialect, ok := schemaDirs[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	file := path.Join("schema", dialect, string(schema)+".sql")
	data, err := schemaFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("schemaFS.ReadFile(%s) > %w", file, err)
	}

	for _, stmt := range strings.Split(string(data), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db.ExecContext(%s) > %w", file, err)
		}
	}
	return nil
}
