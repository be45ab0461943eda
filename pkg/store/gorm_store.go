package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mistakebook/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&DocumentModel{}, &MistakeModel{}, &ReviewLogModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveDocument inserts or updates a document keyed by (fingerprint, role).
func (s *GormStore) SaveDocument(doc domain.Document) error {
	model := documentToModel(doc)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}, {Name: "role"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "page_count", "pair_group_id", "storage_key", "size_bytes", "updated_at"}),
	}).Create(&model).Error
}

// GetDocument retrieves a document by fingerprint and role.
func (s *GormStore) GetDocument(fingerprint string, role domain.DocumentRole) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "fingerprint = ? AND role = ?", fingerprint, string(role)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// DeleteDocument removes a document record.
func (s *GormStore) DeleteDocument(fingerprint string, role domain.DocumentRole) error {
	return s.db.Delete(&DocumentModel{}, "fingerprint = ? AND role = ?", fingerprint, string(role)).Error
}

// ListDocuments returns all documents ordered by created_at.
func (s *GormStore) ListDocuments() ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// SaveMistake inserts or updates a mistake.
func (s *GormStore) SaveMistake(m domain.Mistake) error {
	model := mistakeToModel(m)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"clean_fingerprint", "title", "note", "tags",
			"last_reviewed_at", "next_review_at", "interval_days", "easiness", "review_streak",
			"updated_at",
		}),
	}).Create(&model).Error
}

// GetMistake retrieves a mistake by ID.
func (s *GormStore) GetMistake(id string) (domain.Mistake, bool, error) {
	var model MistakeModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Mistake{}, false, nil
		}
		return domain.Mistake{}, false, err
	}
	return mistakeFromModel(model), true, nil
}

// DeleteMistake removes a mistake and its review logs in one transaction.
func (s *GormStore) DeleteMistake(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ReviewLogModel{}, "mistake_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&MistakeModel{}, "id = ?", id).Error; err != nil {
			return err
		}
		return nil
	})
}

// ListMistakesByPairGroup returns a group's mistakes, oldest first.
func (s *GormStore) ListMistakesByPairGroup(pairGroupID string) ([]domain.Mistake, error) {
	return s.listMistakes("created_at ASC", "pair_group_id = ?", pairGroupID)
}

// ListMistakes returns all mistakes, oldest first.
func (s *GormStore) ListMistakes() ([]domain.Mistake, error) {
	return s.listMistakes("created_at ASC")
}

func (s *GormStore) listMistakes(order string, conds ...any) ([]domain.Mistake, error) {
	var models []MistakeModel
	tx := s.db.Order(order)
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Mistake, 0, len(models))
	for _, m := range models {
		res = append(res, mistakeFromModel(m))
	}
	return res, nil
}

// SaveReview persists a rated mistake and its log entry atomically.
func (s *GormStore) SaveReview(m domain.Mistake, log domain.ReviewLog) error {
	mistakeModel := mistakeToModel(m)
	logModel := reviewLogToModel(log)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"last_reviewed_at", "next_review_at", "interval_days", "easiness", "review_streak",
				"updated_at",
			}),
		}).Create(&mistakeModel).Error; err != nil {
			return err
		}
		return tx.Create(&logModel).Error
	})
}

// ListReviewLogsByMistake returns a mistake's rating history, oldest first.
func (s *GormStore) ListReviewLogsByMistake(mistakeID string) ([]domain.ReviewLog, error) {
	var models []ReviewLogModel
	if err := s.db.Order("reviewed_at ASC").Find(&models, "mistake_id = ?", mistakeID).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ReviewLog, 0, len(models))
	for _, m := range models {
		res = append(res, reviewLogFromModel(m))
	}
	return res, nil
}
