package repo

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
)

func getPostgresStore(t *testing.T) (*PostgresStore, *sql.DB) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		t.Skipf("Postgres not available: %v", err)
	}

	store := NewPostgresStore(db, url)
	require.NoError(t, store.Migrate(context.Background()))
	return store, db
}

func TestPostgresStore_Contract(t *testing.T) {
	store, db := getPostgresStore(t)
	defer db.Close()

	runStoreContract(t, store, true)
}
