package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"mistakebook/pkg/domain"
)

type fakeLister struct {
	due []domain.Mistake
	err error
}

func (f *fakeLister) DueNow() ([]domain.Mistake, error) { return f.due, f.err }

type capturePublisher struct {
	events []Event
}

func (c *capturePublisher) Publish(_ context.Context, ev Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func mistakes(n int) []domain.Mistake {
	out := make([]domain.Mistake, n)
	for i := range out {
		out[i] = domain.Mistake{ID: string(rune('a' + i))}
	}
	return out
}

func TestScanOncePublishesWhenDue(t *testing.T) {
	pub := &capturePublisher{}
	w := New(&fakeLister{due: mistakes(3)}, pub, time.Minute)
	w.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	if err := w.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.DueCount != 3 || len(ev.MistakeIDs) != 3 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.GeneratedAt.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("GeneratedAt = %v", ev.GeneratedAt)
	}
}

func TestScanOnceSilentWhenNothingDue(t *testing.T) {
	pub := &capturePublisher{}
	w := New(&fakeLister{}, pub, time.Minute)

	if err := w.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events, want 0", len(pub.events))
	}
}

func TestScanOnceCapsIDList(t *testing.T) {
	pub := &capturePublisher{}
	w := New(&fakeLister{due: mistakes(maxEventIDs + 5)}, pub, time.Minute)

	if err := w.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	ev := pub.events[0]
	if ev.DueCount != maxEventIDs+5 || len(ev.MistakeIDs) != maxEventIDs {
		t.Fatalf("unexpected event: count=%d ids=%d", ev.DueCount, len(ev.MistakeIDs))
	}
}

func TestScanOnceSurfacesListError(t *testing.T) {
	pub := &capturePublisher{}
	w := New(&fakeLister{err: errors.New("backend down")}, pub, time.Minute)

	if err := w.ScanOnce(context.Background()); err == nil {
		t.Fatal("expected scan error")
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events after error, want 0", len(pub.events))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := New(&fakeLister{}, &capturePublisher{}, time.Millisecond)
	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}
