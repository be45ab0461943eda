package domain

import "time"

type DocumentRole string

const (
	RoleAnnotated DocumentRole = "annotated"
	RoleClean     DocumentRole = "clean"
)

// ParseRole validates a role string coming in over the wire.
func ParseRole(s string) (DocumentRole, bool) {
	switch DocumentRole(s) {
	case RoleAnnotated, RoleClean:
		return DocumentRole(s), true
	}
	return "", false
}

type Rating string

const (
	RatingAgain Rating = "again"
	RatingHard  Rating = "hard"
	RatingGood  Rating = "good"
	RatingEasy  Rating = "easy"
)

// Document is the metadata record for one uploaded PDF binary in one role.
// Identity within a role is the content fingerprint, so re-uploading the
// same bytes updates the existing record instead of creating a duplicate.
type Document struct {
	Fingerprint string       `json:"fingerprint"`
	Role        DocumentRole `json:"role"`
	Title       string       `json:"title"`
	PageCount   int          `json:"pageCount"`
	PairGroupID string       `json:"pairGroupId"`
	StorageKey  string       `json:"-"`
	SizeBytes   int64        `json:"sizeBytes"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Pair is the derived projection of the documents sharing one pair group.
// It is recomputed from the document collection on every read, never stored.
type Pair struct {
	PairGroupID          string    `json:"pairGroupId"`
	Title                string    `json:"title"`
	PageCount            int       `json:"pageCount"`
	AnnotatedFingerprint string    `json:"annotatedFingerprint"`
	CleanFingerprint     string    `json:"cleanFingerprint,omitempty"`
	HasClean             bool      `json:"hasClean"`
	CreatedAt            time.Time `json:"createdAt"`
}

// BBox is a normalized rectangle in [0,1] relative to page dimensions,
// origin top-left.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Mistake is one flagged region on a page of a pair group, together with
// its spaced-repetition scheduling state.
type Mistake struct {
	ID                  string     `json:"id"`
	PairGroupID         string     `json:"pairGroupId"`
	OriginalFingerprint string     `json:"originalFingerprint"`
	CleanFingerprint    string     `json:"cleanFingerprint,omitempty"`
	PageIndex           int        `json:"pageIndex"`
	BBox                BBox       `json:"bbox"`
	Title               string     `json:"title"`
	Note                string     `json:"note"`
	Tags                []string   `json:"tags,omitempty"`
	LastReviewedAt      *time.Time `json:"lastReviewedAt,omitempty"`
	NextReviewAt        *time.Time `json:"nextReviewAt,omitempty"`
	IntervalDays        int        `json:"intervalDays"`
	Easiness            float64    `json:"easiness"`
	ReviewStreak        int        `json:"reviewStreak"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Due reports whether the mistake's next scheduled review has arrived.
// A mistake with no schedule at all counts as due.
func (m Mistake) Due(now time.Time) bool {
	return m.NextReviewAt == nil || !m.NextReviewAt.After(now)
}

// ReviewLog is the immutable audit record of one rating event. It is
// created exactly once per rating and removed only when its mistake is
// deleted.
type ReviewLog struct {
	ID          string    `json:"id"`
	MistakeID   string    `json:"mistakeId"`
	Rating      Rating    `json:"rating"`
	ReviewedAt  time.Time `json:"reviewedAt"`
	OldInterval int       `json:"oldInterval"`
	NewInterval int       `json:"newInterval"`
}
