// Package review implements the spaced-repetition scheduler and the session
// controller that walks the due queue.
package review

import (
	"errors"
	"math"
	"time"

	"mistakebook/pkg/domain"
)

// ErrInvalidRating is returned for a rating outside again/hard/good/easy.
// The mistake's state is left untouched.
var ErrInvalidRating = errors.New("unrecognized rating")

const (
	// DefaultEasiness is the easiness factor assigned at creation.
	DefaultEasiness = 2.5
	// MinEasiness is the hard floor applied on every decreasing transition.
	MinEasiness = 1.3
)

// NewSchedule initializes the scheduling state of a freshly created mistake:
// never reviewed, due immediately.
func NewSchedule(m domain.Mistake, now time.Time) domain.Mistake {
	next := now
	m.LastReviewedAt = nil
	m.NextReviewAt = &next
	m.IntervalDays = 0
	m.Easiness = DefaultEasiness
	m.ReviewStreak = 0
	return m
}

// Apply returns a copy of m with its scheduling state advanced by one rating
// at time now. It is a pure function; persisting the result (and the audit
// log entry derived from the old and new intervals) is the caller's job.
func Apply(m domain.Mistake, rating domain.Rating, now time.Time) (domain.Mistake, error) {
	interval := m.IntervalDays
	ease := m.Easiness
	if ease == 0 {
		ease = DefaultEasiness
	}
	streak := m.ReviewStreak

	switch rating {
	case domain.RatingAgain:
		interval = 1
		ease = math.Max(MinEasiness, ease-0.3)
		streak = 0
	case domain.RatingHard:
		if interval == 0 {
			interval = 1
		} else {
			interval = maxInt(1, roundDays(float64(interval)*1.2))
		}
		ease = math.Max(MinEasiness, ease-0.15)
		streak = 0
	case domain.RatingGood:
		if interval == 0 {
			interval = 1
		} else {
			interval = maxInt(1, roundDays(float64(interval)*ease))
		}
		streak++
	case domain.RatingEasy:
		if interval == 0 {
			interval = 2
		} else {
			interval = maxInt(2, roundDays(float64(interval)*(ease+0.15)))
		}
		ease += 0.1
		streak++
	default:
		return domain.Mistake{}, ErrInvalidRating
	}

	last := now
	next := now.AddDate(0, 0, interval)
	m.LastReviewedAt = &last
	m.NextReviewAt = &next
	m.IntervalDays = interval
	m.Easiness = ease
	m.ReviewStreak = streak
	m.UpdatedAt = now
	return m, nil
}

// roundDays rounds half away from zero.
func roundDays(v float64) int {
	return int(math.Round(v))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
