// Package testutil provides shared test helpers for config files, databases and word fixtures.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/tango/internal/config"
	"github.com/at-ishikawa/tango/internal/database"
	"github.com/at-ishikawa/tango/internal/scheduler"
	"github.com/at-ishikawa/tango/internal/timestamp"
	"github.com/at-ishikawa/tango/internal/word"
)

// SetupTestConfig creates a config file whose databases live under tmpDir.
// Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string) string {
	t.Helper()

	configContent := fmt.Sprintf(`database:
  driver: sqlite3
  path: %s
server:
  port: 18080
  database:
    driver: sqlite3
    path: %s
sync:
  interval: 1s
  request_timeout: 2s
  batch_size: 10
  retry_attempts: 0
study:
  timezone: UTC
`,
		filepath.Join(tmpDir, "tango.db"),
		filepath.Join(tmpDir, "tango-server.db"),
	)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}

// SetupTestConfigWithAPIKey creates a config file with a fake OpenAI API key for tests
// that require API key validation to pass.
func SetupTestConfigWithAPIKey(t *testing.T, tmpDir string) string {
	t.Helper()
	cfgPath := SetupTestConfig(t, tmpDir)

	content, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	content = append(content, []byte("openai:\n  api_key: fake-key-for-testing\n  model: gpt-4o-mini\n")...)
	require.NoError(t, os.WriteFile(cfgPath, content, 0644))
	return cfgPath
}

// NewTestDB opens a migrated SQLite database in a temporary directory. It is closed on cleanup.
func NewTestDB(t *testing.T, schemas ...database.Schema) *sqlx.DB {
	t.Helper()
	if len(schemas) == 0 {
		schemas = []database.Schema{database.SchemaClient}
	}

	db, err := database.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, schema := range schemas {
		require.NoError(t, database.Migrate(context.Background(), db, schema))
	}
	return db
}

// WordOption configures optional fields when creating a word fixture.
type WordOption func(*word.Word)

// WithID overrides the generated id.
func WithID(id string) WordOption {
	return func(w *word.Word) {
		w.ID = id
	}
}

// WithState sets the scheduling state and the derived familiarity.
func WithState(state scheduler.State) WordOption {
	return func(w *word.Word) {
		w.State = state
		w.Familiarity = word.FamiliarityOf(state)
	}
}

// WithNextReviewAt makes the word due at the given time.
func WithNextReviewAt(at time.Time) WordOption {
	return func(w *word.Word) {
		w.NextReviewAt = timestamp.New(at)
	}
}

// WithUpdatedAt sets the last modification time.
func WithUpdatedAt(at time.Time) WordOption {
	return func(w *word.Word) {
		w.UpdatedAt = timestamp.New(at)
	}
}

// NewWord creates a word fixture created at createdAt.
func NewWord(text string, createdAt time.Time, opts ...WordOption) *word.Word {
	w := word.New(text, "", text+" meaning", "", createdAt)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// InsertWords stores fixtures through the DB repository.
func InsertWords(t *testing.T, db *sqlx.DB, words ...*word.Word) {
	t.Helper()
	repo := word.NewDBRepository(db)
	for _, w := range words {
		require.NoError(t, repo.Create(context.Background(), w))
	}
}
