package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"mistakebook/internal/review"
	"mistakebook/pkg/domain"
)

// minRegionExtent is the smallest selectable width/height, as a fraction of
// the page dimension. Anything smaller is a slip of the pen, not a region.
const minRegionExtent = 0.005

// boundsSlack absorbs float error at the page edge.
const boundsSlack = 1e-9

// CreateMistakeParams carries one region selection on an annotated page.
type CreateMistakeParams struct {
	PairGroupID string
	PageIndex   int
	BBox        domain.BBox
	Title       string
	Note        string
	Tags        []string
}

// CreateMistake validates the region, anchors it to the pair group's current
// documents, and schedules it for immediate review.
func (a *App) CreateMistake(p CreateMistakeParams) (domain.Mistake, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	annotated, ok, err := a.annotatedInGroup(p.PairGroupID)
	if err != nil {
		return domain.Mistake{}, err
	}
	if !ok {
		return domain.Mistake{}, fmt.Errorf("%w: pair group %s", ErrNotFound, p.PairGroupID)
	}
	if p.PageIndex < 0 || p.PageIndex >= annotated.PageCount {
		return domain.Mistake{}, fmt.Errorf("%w: page %d outside document of %d pages",
			ErrInvalidRegion, p.PageIndex, annotated.PageCount)
	}
	if err := validateBBox(p.BBox); err != nil {
		return domain.Mistake{}, err
	}

	now := a.now()
	m := domain.Mistake{
		ID:                  uuid.NewString(),
		PairGroupID:         p.PairGroupID,
		OriginalFingerprint: annotated.Fingerprint,
		PageIndex:           p.PageIndex,
		BBox:                p.BBox,
		Title:               p.Title,
		Note:                p.Note,
		Tags:                p.Tags,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if clean, ok, err := a.cleanInGroup(p.PairGroupID); err != nil {
		return domain.Mistake{}, err
	} else if ok {
		m.CleanFingerprint = clean.Fingerprint
	}
	m = review.NewSchedule(m, now)

	if err := a.store.SaveMistake(m); err != nil {
		return domain.Mistake{}, fmt.Errorf("save mistake: %w", err)
	}
	return m, nil
}

// UpdateMistakeParams carries a partial edit of the free-text fields. Nil
// means "leave unchanged".
type UpdateMistakeParams struct {
	Title *string
	Note  *string
	Tags  []string
}

// UpdateMistake edits title/note/tags only; scheduling state is owned by the
// scheduler and never touched here.
func (a *App) UpdateMistake(id string, p UpdateMistakeParams) (domain.Mistake, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok, err := a.store.GetMistake(id)
	if err != nil {
		return domain.Mistake{}, fmt.Errorf("lookup mistake: %w", err)
	}
	if !ok {
		return domain.Mistake{}, fmt.Errorf("%w: mistake %s", ErrNotFound, id)
	}
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Note != nil {
		m.Note = *p.Note
	}
	if p.Tags != nil {
		m.Tags = p.Tags
	}
	m.UpdatedAt = a.now()
	if err := a.store.SaveMistake(m); err != nil {
		return domain.Mistake{}, fmt.Errorf("save mistake: %w", err)
	}
	return m, nil
}

// DeleteMistake removes a mistake and its review logs.
func (a *App) DeleteMistake(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok, err := a.store.GetMistake(id)
	if err != nil {
		return fmt.Errorf("lookup mistake: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: mistake %s", ErrNotFound, id)
	}
	if err := a.store.DeleteMistake(id); err != nil {
		return fmt.Errorf("delete mistake: %w", err)
	}
	return nil
}

// ListForPairGroup returns a group's mistakes in creation order.
func (a *App) ListForPairGroup(pairGroupID string) ([]domain.Mistake, error) {
	return a.store.ListMistakesByPairGroup(pairGroupID)
}

// ListDue returns every mistake whose next review has arrived, in creation
// order. Due-ness is computed from stored state and the clock, never from a
// persisted flag.
func (a *App) ListDue(now time.Time) ([]domain.Mistake, error) {
	all, err := a.store.ListMistakes()
	if err != nil {
		return nil, fmt.Errorf("list mistakes: %w", err)
	}
	due := make([]domain.Mistake, 0, len(all))
	for _, m := range all {
		if m.Due(now) {
			due = append(due, m)
		}
	}
	return due, nil
}

// DueNow is ListDue against the application clock.
func (a *App) DueNow() ([]domain.Mistake, error) {
	return a.ListDue(a.now())
}

// MistakeLogs returns a mistake's rating history, oldest first.
func (a *App) MistakeLogs(id string) ([]domain.ReviewLog, error) {
	_, ok, err := a.store.GetMistake(id)
	if err != nil {
		return nil, fmt.Errorf("lookup mistake: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: mistake %s", ErrNotFound, id)
	}
	return a.store.ListReviewLogsByMistake(id)
}

func (a *App) cleanInGroup(pairGroupID string) (domain.Document, bool, error) {
	docs, err := a.store.ListDocuments()
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("list documents: %w", err)
	}
	for _, doc := range docs {
		if doc.PairGroupID == pairGroupID && doc.Role == domain.RoleClean {
			return doc, true, nil
		}
	}
	return domain.Document{}, false, nil
}

func validateBBox(b domain.BBox) error {
	if b.Width < minRegionExtent || b.Height < minRegionExtent {
		return fmt.Errorf("%w: region below minimum size", ErrInvalidRegion)
	}
	if b.X < 0 || b.Y < 0 {
		return fmt.Errorf("%w: region origin outside page", ErrInvalidRegion)
	}
	if b.X+b.Width > 1+boundsSlack || b.Y+b.Height > 1+boundsSlack {
		return fmt.Errorf("%w: region extends past page edge", ErrInvalidRegion)
	}
	return nil
}
