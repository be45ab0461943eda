package store

import (
	"errors"

	"mistakebook/pkg/domain"
)

// ErrPersistence wraps backing-store write failures. The in-memory mutation
// that triggered the write stays applied; only durability is lost.
var ErrPersistence = errors.New("persistence failure")

// Store defines persistence operations for documents, mistakes, and review
// logs. Implementations must keep the three collections mutually consistent:
// deleting a mistake removes its review logs in the same transaction, and
// SaveReview persists the mistake update and its log entry atomically.
type Store interface {
	// documents
	SaveDocument(doc domain.Document) error
	GetDocument(fingerprint string, role domain.DocumentRole) (domain.Document, bool, error)
	DeleteDocument(fingerprint string, role domain.DocumentRole) error
	ListDocuments() ([]domain.Document, error)

	// mistakes
	SaveMistake(m domain.Mistake) error
	GetMistake(id string) (domain.Mistake, bool, error)
	DeleteMistake(id string) error
	ListMistakesByPairGroup(pairGroupID string) ([]domain.Mistake, error)
	ListMistakes() ([]domain.Mistake, error)

	// review logs
	SaveReview(m domain.Mistake, log domain.ReviewLog) error
	ListReviewLogsByMistake(mistakeID string) ([]domain.ReviewLog, error)
}
