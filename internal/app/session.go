package app

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"mistakebook/internal/review"
	"mistakebook/pkg/domain"
	"mistakebook/pkg/store"
)

// SessionState is the snapshot the UI renders between ratings.
type SessionState struct {
	Total    int             `json:"total"`
	Position int             `json:"position"`
	Current  *domain.Mistake `json:"current,omitempty"`
}

// StartSession freezes the current due set into a new session queue,
// replacing any previous session.
func (a *App) StartSession() (SessionState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	due, err := a.ListDue(a.now())
	if err != nil {
		return SessionState{}, err
	}
	a.session = review.NewSession(due)
	return a.sessionStateLocked(), nil
}

// SessionStatus returns the current session position, or ErrNoSession when
// none has been started.
func (a *App) SessionStatus() (SessionState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return SessionState{}, ErrNoSession
	}
	return a.sessionStateLocked(), nil
}

// PreviewRating applies the scheduler to a mistake without persisting
// anything, so the UI can show what each rating would do.
func (a *App) PreviewRating(id string, rating domain.Rating) (domain.Mistake, error) {
	m, ok, err := a.store.GetMistake(id)
	if err != nil {
		return domain.Mistake{}, fmt.Errorf("lookup mistake: %w", err)
	}
	if !ok {
		return domain.Mistake{}, fmt.Errorf("%w: mistake %s", ErrNotFound, id)
	}
	return review.Apply(m, rating, a.now())
}

// RateCurrent applies a rating to the session's current entry: scheduler
// transition, atomic persistence of the updated mistake plus its log entry,
// then cursor advance. A persistence failure does not roll back the applied
// transition; it is surfaced alongside the result.
func (a *App) RateCurrent(rating domain.Rating) (SessionState, domain.ReviewLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		return SessionState{}, domain.ReviewLog{}, ErrNoSession
	}
	current, ok := a.session.Current()
	if !ok {
		return SessionState{}, domain.ReviewLog{}, fmt.Errorf("%w: session queue is empty", ErrNoSession)
	}

	// The session freezes queue membership, not record state. Edits made
	// while a session is open must survive the rating, so the transition
	// starts from the stored record, not the queue snapshot.
	fresh, ok, err := a.store.GetMistake(current.ID)
	if err != nil {
		return SessionState{}, domain.ReviewLog{}, fmt.Errorf("lookup mistake: %w", err)
	}
	if !ok {
		return SessionState{}, domain.ReviewLog{}, fmt.Errorf("%w: mistake %s", ErrNotFound, current.ID)
	}

	now := a.now()
	updated, err := review.Apply(fresh, rating, now)
	if err != nil {
		return SessionState{}, domain.ReviewLog{}, err
	}
	log := domain.ReviewLog{
		ID:          uuid.NewString(),
		MistakeID:   updated.ID,
		Rating:      rating,
		ReviewedAt:  now,
		OldInterval: fresh.IntervalDays,
		NewInterval: updated.IntervalDays,
	}

	saveErr := a.store.SaveReview(updated, log)
	if saveErr != nil && !errors.Is(saveErr, store.ErrPersistence) {
		// A transactional store applied nothing, so the session must not
		// move either.
		return SessionState{}, domain.ReviewLog{}, fmt.Errorf("save review: %w", saveErr)
	}

	a.session.SetCurrent(updated)
	a.session.Advance()
	return a.sessionStateLocked(), log, saveErr
}

func (a *App) sessionStateLocked() SessionState {
	state := SessionState{
		Total:    a.session.Len(),
		Position: a.session.Position(),
	}
	if current, ok := a.session.Current(); ok {
		state.Current = &current
	}
	return state
}
