package store

import (
	"sync"

	"mistakebook/pkg/domain"
)

type docKey struct {
	fingerprint string
	role        domain.DocumentRole
}

// MemoryStore keeps all collections in-process. Used in tests and as the
// substrate of the KV-backed store.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[docKey]domain.Document
	docOrder  []docKey
	mistakes  map[string]domain.Mistake
	mistOrder []string
	logs      map[string][]domain.ReviewLog // mistake ID -> logs, oldest first
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[docKey]domain.Document),
		mistakes: make(map[string]domain.Mistake),
		logs:     make(map[string][]domain.ReviewLog),
	}
}

// SaveDocument stores or replaces a document and tracks insertion order.
func (m *MemoryStore) SaveDocument(doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveDocumentLocked(doc)
	return nil
}

func (m *MemoryStore) saveDocumentLocked(doc domain.Document) {
	key := docKey{fingerprint: doc.Fingerprint, role: doc.Role}
	if _, exists := m.docs[key]; !exists {
		m.docOrder = append(m.docOrder, key)
	}
	m.docs[key] = doc
}

// GetDocument retrieves a document by fingerprint and role.
func (m *MemoryStore) GetDocument(fingerprint string, role domain.DocumentRole) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[docKey{fingerprint: fingerprint, role: role}]
	return doc, ok, nil
}

// DeleteDocument removes a document record.
func (m *MemoryStore) DeleteDocument(fingerprint string, role domain.DocumentRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docKey{fingerprint: fingerprint, role: role}
	delete(m.docs, key)
	filtered := m.docOrder[:0]
	for _, item := range m.docOrder {
		if item != key {
			filtered = append(filtered, item)
		}
	}
	m.docOrder = filtered
	return nil
}

// ListDocuments returns documents in insertion order.
func (m *MemoryStore) ListDocuments() ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0, len(m.docOrder))
	for _, key := range m.docOrder {
		if doc, ok := m.docs[key]; ok {
			res = append(res, doc)
		}
	}
	return res, nil
}

// SaveMistake stores or replaces a mistake and tracks insertion order.
func (m *MemoryStore) SaveMistake(mk domain.Mistake) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveMistakeLocked(mk)
	return nil
}

func (m *MemoryStore) saveMistakeLocked(mk domain.Mistake) {
	if _, exists := m.mistakes[mk.ID]; !exists {
		m.mistOrder = append(m.mistOrder, mk.ID)
	}
	m.mistakes[mk.ID] = mk
}

// GetMistake retrieves a mistake by ID.
func (m *MemoryStore) GetMistake(id string) (domain.Mistake, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.mistakes[id]
	return mk, ok, nil
}

// DeleteMistake removes a mistake and its review logs.
func (m *MemoryStore) DeleteMistake(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mistakes, id)
	delete(m.logs, id)
	filtered := m.mistOrder[:0]
	for _, item := range m.mistOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.mistOrder = filtered
	return nil
}

// ListMistakesByPairGroup returns a group's mistakes in creation order.
func (m *MemoryStore) ListMistakesByPairGroup(pairGroupID string) ([]domain.Mistake, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Mistake, 0, len(m.mistOrder))
	for _, id := range m.mistOrder {
		if mk, ok := m.mistakes[id]; ok && mk.PairGroupID == pairGroupID {
			res = append(res, mk)
		}
	}
	return res, nil
}

// ListMistakes returns all mistakes in creation order.
func (m *MemoryStore) ListMistakes() ([]domain.Mistake, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Mistake, 0, len(m.mistOrder))
	for _, id := range m.mistOrder {
		if mk, ok := m.mistakes[id]; ok {
			res = append(res, mk)
		}
	}
	return res, nil
}

// SaveReview stores the rated mistake and appends its log entry.
func (m *MemoryStore) SaveReview(mk domain.Mistake, log domain.ReviewLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveMistakeLocked(mk)
	m.logs[log.MistakeID] = append(m.logs[log.MistakeID], log)
	return nil
}

// snapshotReviewLogs flattens every log entry, grouped by mistake creation
// order, for write-through serialization.
func (m *MemoryStore) snapshotReviewLogs() []domain.ReviewLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ReviewLog, 0, len(m.mistOrder))
	for _, id := range m.mistOrder {
		res = append(res, m.logs[id]...)
	}
	return res
}

// ListReviewLogsByMistake returns a mistake's rating history, oldest first.
func (m *MemoryStore) ListReviewLogsByMistake(mistakeID string) ([]domain.ReviewLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logs := m.logs[mistakeID]
	res := make([]domain.ReviewLog, len(logs))
	copy(res, logs)
	return res, nil
}
