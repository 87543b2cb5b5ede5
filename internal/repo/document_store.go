package repo

import "context"

// Documents maps document ids to their raw JSON bodies for one collection.
type Documents map[string][]byte

// SnapshotFunc receives the full contents of a collection every time it
// changes, or the error that prevented reading it.
type SnapshotFunc func(docs Documents, err error)

// Subscription is a live feed on one collection.
type Subscription interface {
	ID() string
	// Unsubscribe stops the feed. Once it returns the callback is never
	// invoked again. It must not be called from inside the callback.
	Unsubscribe()
}

// DocumentStore is the remote key/value document store. Collections are
// slash separated paths such as "locations/{id}/inventory" and documents are
// JSON objects keyed by a caller chosen id. Stores never own the client
// connection they are built on.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// Put writes doc under id, replacing any existing document wholesale.
	Put(ctx context.Context, collection, id string, doc []byte) error
	// Create writes doc only if id is free, else ErrAlreadyExists.
	Create(ctx context.Context, collection, id string, doc []byte) error
	// Merge overwrites the given top level fields of an existing document and
	// leaves the others untouched. ErrNotFound if the document is missing.
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) (Documents, error)
	// Subscribe delivers the current collection contents immediately and again
	// after every committed change, in commit order, one call at a time.
	Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (Subscription, error)
}
