package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"mistakebook/pkg/domain"
)

// GORM models used for persistence.
type DocumentModel struct {
	Fingerprint string `gorm:"primaryKey"`
	Role        string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	PageCount   int    `gorm:"not null"`
	PairGroupID string `gorm:"not null;index"`
	StorageKey  string
	SizeBytes   int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type MistakeModel struct {
	ID                  string `gorm:"primaryKey"`
	PairGroupID         string `gorm:"not null;index"`
	OriginalFingerprint string `gorm:"not null"`
	CleanFingerprint    string
	PageIndex           int     `gorm:"not null"`
	BBoxX               float64 `gorm:"not null"`
	BBoxY               float64 `gorm:"not null"`
	BBoxWidth           float64 `gorm:"not null"`
	BBoxHeight          float64 `gorm:"not null"`
	Title               string
	Note                string
	Tags                datatypes.JSON
	LastReviewedAt      *time.Time
	NextReviewAt        *time.Time `gorm:"index"`
	IntervalDays        int        `gorm:"not null"`
	Easiness            float64    `gorm:"not null"`
	ReviewStreak        int        `gorm:"not null"`
	CreatedAt           time.Time  `gorm:"not null;index"`
	UpdatedAt           time.Time  `gorm:"not null"`
}

type ReviewLogModel struct {
	ID          string    `gorm:"primaryKey"`
	MistakeID   string    `gorm:"not null;index"`
	Rating      string    `gorm:"not null"`
	ReviewedAt  time.Time `gorm:"not null"`
	OldInterval int       `gorm:"not null"`
	NewInterval int       `gorm:"not null"`
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		Fingerprint: d.Fingerprint,
		Role:        string(d.Role),
		Title:       d.Title,
		PageCount:   d.PageCount,
		PairGroupID: d.PairGroupID,
		StorageKey:  d.StorageKey,
		SizeBytes:   d.SizeBytes,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		Fingerprint: m.Fingerprint,
		Role:        domain.DocumentRole(m.Role),
		Title:       m.Title,
		PageCount:   m.PageCount,
		PairGroupID: m.PairGroupID,
		StorageKey:  m.StorageKey,
		SizeBytes:   m.SizeBytes,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func mistakeToModel(m domain.Mistake) MistakeModel {
	var tags datatypes.JSON
	if len(m.Tags) > 0 {
		raw, _ := json.Marshal(m.Tags)
		tags = datatypes.JSON(raw)
	}
	return MistakeModel{
		ID:                  m.ID,
		PairGroupID:         m.PairGroupID,
		OriginalFingerprint: m.OriginalFingerprint,
		CleanFingerprint:    m.CleanFingerprint,
		PageIndex:           m.PageIndex,
		BBoxX:               m.BBox.X,
		BBoxY:               m.BBox.Y,
		BBoxWidth:           m.BBox.Width,
		BBoxHeight:          m.BBox.Height,
		Title:               m.Title,
		Note:                m.Note,
		Tags:                tags,
		LastReviewedAt:      m.LastReviewedAt,
		NextReviewAt:        m.NextReviewAt,
		IntervalDays:        m.IntervalDays,
		Easiness:            m.Easiness,
		ReviewStreak:        m.ReviewStreak,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func mistakeFromModel(m MistakeModel) domain.Mistake {
	var tags []string
	if len(m.Tags) > 0 {
		_ = json.Unmarshal(m.Tags, &tags)
	}
	return domain.Mistake{
		ID:                  m.ID,
		PairGroupID:         m.PairGroupID,
		OriginalFingerprint: m.OriginalFingerprint,
		CleanFingerprint:    m.CleanFingerprint,
		PageIndex:           m.PageIndex,
		BBox: domain.BBox{
			X:      m.BBoxX,
			Y:      m.BBoxY,
			Width:  m.BBoxWidth,
			Height: m.BBoxHeight,
		},
		Title:          m.Title,
		Note:           m.Note,
		Tags:           tags,
		LastReviewedAt: m.LastReviewedAt,
		NextReviewAt:   m.NextReviewAt,
		IntervalDays:   m.IntervalDays,
		Easiness:       m.Easiness,
		ReviewStreak:   m.ReviewStreak,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func reviewLogToModel(l domain.ReviewLog) ReviewLogModel {
	return ReviewLogModel{
		ID:          l.ID,
		MistakeID:   l.MistakeID,
		Rating:      string(l.Rating),
		ReviewedAt:  l.ReviewedAt,
		OldInterval: l.OldInterval,
		NewInterval: l.NewInterval,
	}
}

func reviewLogFromModel(m ReviewLogModel) domain.ReviewLog {
	return domain.ReviewLog{
		ID:          m.ID,
		MistakeID:   m.MistakeID,
		Rating:      domain.Rating(m.Rating),
		ReviewedAt:  m.ReviewedAt,
		OldInterval: m.OldInterval,
		NewInterval: m.NewInterval,
	}
}
