package review

import (
	"testing"

	"mistakebook/pkg/domain"
)

func queueOf(ids ...string) []domain.Mistake {
	out := make([]domain.Mistake, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Mistake{ID: id})
	}
	return out
}

func TestSessionEmpty(t *testing.T) {
	s := NewSession(nil)
	if _, ok := s.Current(); ok {
		t.Fatal("empty session returned a current entry")
	}
	s.Advance() // must not panic
	if s.Len() != 0 || s.Position() != 0 {
		t.Fatalf("len=%d pos=%d, want 0/0", s.Len(), s.Position())
	}
}

func TestSessionAdvanceWraps(t *testing.T) {
	s := NewSession(queueOf("a", "b", "c"))
	s.Advance()
	s.Advance()
	if s.Position() != 2 {
		t.Fatalf("position = %d, want 2", s.Position())
	}
	s.Advance()
	if s.Position() != 0 {
		t.Fatalf("position after wrap = %d, want 0", s.Position())
	}
	if cur, ok := s.Current(); !ok || cur.ID != "a" {
		t.Fatalf("current after wrap = %v ok=%v, want a", cur, ok)
	}
}

func TestSessionQueueIsFrozenSnapshot(t *testing.T) {
	due := queueOf("a", "b")
	s := NewSession(due)
	due[0].ID = "mutated"
	if cur, _ := s.Current(); cur.ID != "a" {
		t.Fatalf("session queue aliases caller slice: %v", cur)
	}
}

func TestSessionSetCurrentKeepsRatedEntryVisible(t *testing.T) {
	s := NewSession(queueOf("a", "b"))
	updated := domain.Mistake{ID: "a", IntervalDays: 1, ReviewStreak: 1}
	s.SetCurrent(updated)
	s.Advance()
	s.Advance() // wrap back to the rated entry
	cur, ok := s.Current()
	if !ok || cur.IntervalDays != 1 || cur.ReviewStreak != 1 {
		t.Fatalf("current = %v ok=%v, want updated entry", cur, ok)
	}
}
