package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mistakebook/pkg/domain"
	"mistakebook/pkg/kv"
)

// Fixed logical keys for the three persisted collections.
const (
	keyDocuments  = "documents"
	keyMistakes   = "mistakes"
	keyReviewLogs = "reviewlogs"
)

// schemaVersion is written into every persisted envelope so future layouts
// can migrate old blobs.
const schemaVersion = 1

type envelope[T any] struct {
	SchemaVersion int `json:"schemaVersion"`
	Items         []T `json:"items"`
}

// KVStore implements Store over a key-value blob store. The three
// collections are loaded once at construction, mutated in memory, and
// written through after every mutation. A failed read falls back to the
// empty collection so startup never blocks on a corrupt blob; a failed
// write is surfaced as ErrPersistence while the in-memory change stays
// applied.
type KVStore struct {
	mu    sync.Mutex // serializes mutations so write-through stays ordered
	mem   *MemoryStore
	blobs kv.Store
}

// NewKVStore loads the persisted collections from blobs.
func NewKVStore(blobs kv.Store) *KVStore {
	s := &KVStore{
		mem:   NewMemoryStore(),
		blobs: blobs,
	}
	s.load()
	return s
}

func (s *KVStore) load() {
	for _, doc := range loadCollection[domain.Document](s.blobs, keyDocuments) {
		s.mem.saveDocumentLocked(doc)
	}
	for _, mk := range loadCollection[domain.Mistake](s.blobs, keyMistakes) {
		s.mem.saveMistakeLocked(mk)
	}
	for _, log := range loadCollection[domain.ReviewLog](s.blobs, keyReviewLogs) {
		s.mem.logs[log.MistakeID] = append(s.mem.logs[log.MistakeID], log)
	}
}

func loadCollection[T any](blobs kv.Store, key string) []T {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, ok, err := blobs.Get(ctx, key)
	if err != nil {
		slog.Warn("failed to load collection, starting empty", "key", key, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("failed to decode collection, starting empty", "key", key, "err", err)
		return nil
	}
	return env.Items
}

func persistCollection[T any](blobs kv.Store, key string, items []T) error {
	raw, err := json.Marshal(envelope[T]{SchemaVersion: schemaVersion, Items: items})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistence, key, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := blobs.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, key, err)
	}
	return nil
}

func (s *KVStore) persistDocuments() error {
	docs, _ := s.mem.ListDocuments()
	return persistCollection(s.blobs, keyDocuments, docs)
}

func (s *KVStore) persistMistakes() error {
	mistakes, _ := s.mem.ListMistakes()
	return persistCollection(s.blobs, keyMistakes, mistakes)
}

func (s *KVStore) persistReviewLogs() error {
	return persistCollection(s.blobs, keyReviewLogs, s.mem.snapshotReviewLogs())
}

// SaveDocument stores a document and writes the collection through.
func (s *KVStore) SaveDocument(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mem.SaveDocument(doc)
	return s.persistDocuments()
}

// GetDocument retrieves a document by fingerprint and role.
func (s *KVStore) GetDocument(fingerprint string, role domain.DocumentRole) (domain.Document, bool, error) {
	return s.mem.GetDocument(fingerprint, role)
}

// DeleteDocument removes a document and writes the collection through.
func (s *KVStore) DeleteDocument(fingerprint string, role domain.DocumentRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mem.DeleteDocument(fingerprint, role)
	return s.persistDocuments()
}

// ListDocuments returns documents in insertion order.
func (s *KVStore) ListDocuments() ([]domain.Document, error) {
	return s.mem.ListDocuments()
}

// SaveMistake stores a mistake and writes the collection through.
func (s *KVStore) SaveMistake(m domain.Mistake) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mem.SaveMistake(m)
	return s.persistMistakes()
}

// GetMistake retrieves a mistake by ID.
func (s *KVStore) GetMistake(id string) (domain.Mistake, bool, error) {
	return s.mem.GetMistake(id)
}

// DeleteMistake removes a mistake plus its review logs and writes both
// collections through.
func (s *KVStore) DeleteMistake(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mem.DeleteMistake(id)
	if err := s.persistMistakes(); err != nil {
		return err
	}
	return s.persistReviewLogs()
}

// ListMistakesByPairGroup returns a group's mistakes in creation order.
func (s *KVStore) ListMistakesByPairGroup(pairGroupID string) ([]domain.Mistake, error) {
	return s.mem.ListMistakesByPairGroup(pairGroupID)
}

// ListMistakes returns all mistakes in creation order.
func (s *KVStore) ListMistakes() ([]domain.Mistake, error) {
	return s.mem.ListMistakes()
}

// SaveReview stores the rated mistake with its log entry and writes both
// collections through.
func (s *KVStore) SaveReview(m domain.Mistake, log domain.ReviewLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.mem.SaveReview(m, log)
	if err := s.persistMistakes(); err != nil {
		return err
	}
	return s.persistReviewLogs()
}

// ListReviewLogsByMistake returns a mistake's rating history, oldest first.
func (s *KVStore) ListReviewLogsByMistake(mistakeID string) ([]domain.ReviewLog, error) {
	return s.mem.ListReviewLogsByMistake(mistakeID)
}
