package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process DocumentStore. It backs tests and the
// "memory" store driver.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
	watchers    map[string]map[chan error]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: map[string]map[string][]byte{},
		watchers:    map[string]map[chan error]struct{}{},
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(doc), nil
}

func (s *MemoryStore) Put(_ context.Context, collection, id string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.write(collection, id, doc)
	return nil
}

func (s *MemoryStore) Create(_ context.Context, collection, id string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; ok {
		return ErrAlreadyExists
	}
	s.write(collection, id, doc)
	return nil
}

func (s *MemoryStore) Merge(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}

	var doc map[string]any
	if err := json.Unmarshal(current, &doc); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, collection, id, err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode merged document: %w", err)
	}
	s.write(collection, id, merged)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	s.notify(collection, nil)
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string) (Documents, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make(Documents, len(s.collections[collection]))
	for id, doc := range s.collections[collection] {
		docs[id] = clone(doc)
	}
	return docs, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (Subscription, error) {
	signals := make(chan error, 1)

	s.mu.Lock()
	if s.watchers[collection] == nil {
		s.watchers[collection] = map[chan error]struct{}{}
	}
	s.watchers[collection][signals] = struct{}{}
	s.mu.Unlock()

	fetch := func(ctx context.Context) (Documents, error) {
		return s.List(ctx, collection)
	}
	sub := startFeed(ctx, fetch, signals, fn)

	go func() {
		<-sub.done
		s.mu.Lock()
		delete(s.watchers[collection], signals)
		s.mu.Unlock()
	}()

	return sub, nil
}

// Disrupt pushes err to every subscriber of collection as if the change
// feed had failed. Stored documents are not touched.
func (s *MemoryStore) Disrupt(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notify(collection, unavailable("subscribe", err))
}

// write must be called with mu held.
func (s *MemoryStore) write(collection, id string, doc []byte) {
	if s.collections[collection] == nil {
		s.collections[collection] = map[string][]byte{}
	}
	s.collections[collection][id] = clone(doc)
	s.notify(collection, nil)
}

func (s *MemoryStore) notify(collection string, err error) {
	for ch := range s.watchers[collection] {
		signal(ch, err)
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
