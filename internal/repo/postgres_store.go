package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	pgChangesChannel = "document_changes"
	pgQueryTimeout   = 3 * time.Second
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// PostgresStore keeps documents in a single JSONB table and announces
// changes with NOTIFY. Notifications are sent inside the writing
// transaction, so listeners receive them in commit order.
type PostgresStore struct {
	db      *sql.DB
	connURL string
}

// NewPostgresStore uses db for reads and writes and opens a dedicated
// connection to connURL for every subscription.
func NewPostgresStore(db *sql.DB, connURL string) *PostgresStore {
	return &PostgresStore{db: db, connURL: connURL}
}

// Migrate creates the documents table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, pgSchema); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	query := `SELECT doc FROM documents WHERE collection = $1 AND id = $2`
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	var doc []byte
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, id string, doc []byte) error {
	query := `INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`

	_, err := s.write(ctx, "put", collection, query, collection, id, string(doc))
	return err
}

func (s *PostgresStore) Create(ctx context.Context, collection, id string, doc []byte) error {
	query := `INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO NOTHING`

	n, err := s.write(ctx, "create", collection, query, collection, id, string(doc))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	query := `UPDATE documents SET doc = doc || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2`

	n, err := s.write(ctx, "merge", collection, query, collection, id, string(patch))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`

	n, err := s.write(ctx, "delete", collection, query, collection, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) (Documents, error) {
	query := `SELECT id, doc FROM documents WHERE collection = $1`
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer rows.Close()

	docs := Documents{}
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, unavailable("list", err)
		}
		docs[id] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return docs, nil
}

// write runs query and notifies listeners of collection in one transaction.
// It returns the number of affected rows; nothing is announced when no row
// changed.
func (s *PostgresStore) write(ctx context.Context, op, collection, query string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, pgQueryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable(op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, unavailable(op, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, nil
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, pgChangesChannel, collection); err != nil {
		return 0, unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable(op, err)
	}
	return n, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (Subscription, error) {
	conn, err := s.listen(ctx)
	if err != nil {
		return nil, err
	}

	signals := make(chan error, 1)
	fetch := func(ctx context.Context) (Documents, error) {
		return s.List(ctx, collection)
	}
	sub := startFeed(ctx, fetch, signals, fn)

	go s.relay(sub, conn, collection, signals)

	return sub, nil
}

func (s *PostgresStore) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, s.connURL)
	if err != nil {
		return nil, unavailable("listen", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgChangesChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, unavailable("listen", err)
	}
	return conn, nil
}

// relay forwards notifications for collection to signals. A broken listener
// connection is reported once and then re-established; the first signal
// after reconnecting makes the feed re-read changes it may have missed.
func (s *PostgresStore) relay(sub *subscription, conn *pgx.Conn, collection string, signals chan<- error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sub.done
		cancel()
	}()

	for {
		for conn == nil {
			var err error
			if conn, err = s.listen(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				signal(signals, err)
				if !sleepCtx(ctx, reconnectDelay) {
					return
				}
				continue
			}
			signal(signals, nil)
		}

		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			_ = conn.Close(context.Background())
			conn = nil
			if ctx.Err() != nil {
				return
			}
			signal(signals, unavailable("listen", err))
			continue
		}
		if n.Payload == collection {
			signal(signals, nil)
		}
	}
}
