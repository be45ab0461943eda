package app

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"mistakebook/internal/review"
	"mistakebook/pkg/domain"
	"mistakebook/pkg/storage"
	"mistakebook/pkg/store"
)

// buildPDF assembles a minimal valid PDF with the given number of empty
// pages, keeping xref offsets consistent.
func buildPDF(pages int) []byte {
	return assemblePDF(pages, "")
}

// pdfWithComment inserts a comment line after the header so two builds with
// different comments have different bytes but the same page count. The
// comment sits before the objects, so the computed xref offsets stay valid
// and %%EOF stays last.
func pdfWithComment(pages int, comment string) []byte {
	return assemblePDF(pages, comment)
}

func assemblePDF(pages int, comment string) []byte {
	var buf bytes.Buffer
	var offsets []int

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	if comment != "" {
		fmt.Fprintf(&buf, "%% %s\n", comment)
	}
	kids := ""
	for i := 0; i < pages; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+i)
	}
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		writeObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefStart)
	return buf.Bytes()
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestApp(t *testing.T) (*App, *storage.MemoryObjectStore, *testClock) {
	t.Helper()
	objects := storage.NewMemoryObjectStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	a, err := New(Config{
		Store:   store.NewMemoryStore(),
		Objects: objects,
		Now:     clock.Now,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, objects, clock
}

func validBBox() domain.BBox {
	return domain.BBox{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.1}
}

func TestRegisterAnnotatedIsIdempotent(t *testing.T) {
	a, objects, _ := newTestApp(t)
	pdf := buildPDF(3)

	first, err := a.RegisterAnnotated("midterm.pdf", "", pdf)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.Title != "midterm" || first.PageCount != 3 || first.PairGroupID == "" {
		t.Fatalf("unexpected document: %+v", first)
	}

	second, err := a.RegisterAnnotated("midterm-v2.pdf", "Midterm, corrected", pdf)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if second.PairGroupID != first.PairGroupID {
		t.Fatalf("pair group changed on re-upload: %s vs %s", second.PairGroupID, first.PairGroupID)
	}
	if second.Title != "Midterm, corrected" {
		t.Fatalf("title not refreshed: %q", second.Title)
	}

	pairs, err := a.ListPairs()
	if err != nil {
		t.Fatalf("list pairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("re-upload created a duplicate pair: %v", pairs)
	}
	if objects.Len() != 1 {
		t.Fatalf("re-upload created a duplicate binary: %d objects", objects.Len())
	}
}

func TestRegisterCleanPageCountMismatchMutatesNothing(t *testing.T) {
	a, objects, _ := newTestApp(t)
	annotated, err := a.RegisterAnnotated("quiz.pdf", "", buildPDF(3))
	if err != nil {
		t.Fatalf("register annotated: %v", err)
	}

	before, _ := a.ListPairs()
	_, err = a.RegisterClean("quiz-clean.pdf", annotated.PairGroupID, buildPDF(4))
	if !errors.Is(err, ErrPageCountMismatch) {
		t.Fatalf("err = %v, want ErrPageCountMismatch", err)
	}

	after, _ := a.ListPairs()
	if len(after) != len(before) || after[0].HasClean {
		t.Fatalf("document collection mutated on mismatch: %v", after)
	}
	if objects.Len() != 1 {
		t.Fatalf("rejected binary was stored: %d objects", objects.Len())
	}
}

func TestRegisterCleanAttachesToPair(t *testing.T) {
	a, _, _ := newTestApp(t)
	annotated, err := a.RegisterAnnotated("quiz.pdf", "Quiz 1", buildPDF(2))
	if err != nil {
		t.Fatalf("register annotated: %v", err)
	}
	clean, err := a.RegisterClean("quiz-clean.pdf", annotated.PairGroupID, pdfWithComment(2, "clean rendition"))
	if err != nil {
		t.Fatalf("register clean: %v", err)
	}
	if clean.Fingerprint == annotated.Fingerprint {
		t.Fatal("test binaries should differ")
	}

	pairs, err := a.ListPairs()
	if err != nil {
		t.Fatalf("list pairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("pairs = %v, want one", pairs)
	}
	p := pairs[0]
	if !p.HasClean || p.CleanFingerprint != clean.Fingerprint {
		t.Fatalf("clean not attached: %+v", p)
	}
	if p.Title != "Quiz 1" {
		t.Fatalf("pair title = %q, want annotated member's title", p.Title)
	}
}

func TestRegisterCleanReplacesPreviousClean(t *testing.T) {
	a, objects, _ := newTestApp(t)
	annotated, err := a.RegisterAnnotated("quiz.pdf", "Quiz 1", buildPDF(2))
	if err != nil {
		t.Fatalf("register annotated: %v", err)
	}
	first, err := a.RegisterClean("scan-v1.pdf", annotated.PairGroupID, pdfWithComment(2, "first scan"))
	if err != nil {
		t.Fatalf("register first clean: %v", err)
	}
	second, err := a.RegisterClean("scan-v2.pdf", annotated.PairGroupID, pdfWithComment(2, "second scan"))
	if err != nil {
		t.Fatalf("register second clean: %v", err)
	}
	if second.Fingerprint == first.Fingerprint {
		t.Fatal("test binaries should differ")
	}

	// The group holds exactly one clean member, the latest upload.
	pairs, err := a.ListPairs()
	if err != nil {
		t.Fatalf("list pairs: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("pairs = %v, want one", pairs)
	}
	if !pairs[0].HasClean || pairs[0].CleanFingerprint != second.Fingerprint {
		t.Fatalf("pair clean member = %+v, want %s", pairs[0], second.Fingerprint)
	}
	if _, err := a.FindDocument(first.Fingerprint, domain.RoleClean); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old clean record lookup = %v, want ErrNotFound", err)
	}

	// The replaced binary is gone too: annotated plus the new clean remain.
	if objects.Len() != 2 {
		t.Fatalf("objects.Len() = %d, want 2", objects.Len())
	}
}

func TestRegisterCleanUnknownGroup(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, err := a.RegisterClean("x.pdf", "nope", buildPDF(1)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegisterRejectsGarbageUpload(t *testing.T) {
	a, objects, _ := newTestApp(t)
	if _, err := a.RegisterAnnotated("x.pdf", "", []byte("not a pdf")); err == nil {
		t.Fatal("expected parse error")
	}
	if objects.Len() != 0 {
		t.Fatal("invalid binary was stored")
	}
}

func TestCreateMistakeValidation(t *testing.T) {
	a, _, _ := newTestApp(t)
	annotated, err := a.RegisterAnnotated("quiz.pdf", "", buildPDF(2))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name string
		p    CreateMistakeParams
		want error
	}{
		{"unknown group", CreateMistakeParams{PairGroupID: "nope", PageIndex: 0, BBox: validBBox()}, ErrNotFound},
		{"page out of range", CreateMistakeParams{PairGroupID: annotated.PairGroupID, PageIndex: 2, BBox: validBBox()}, ErrInvalidRegion},
		{"negative page", CreateMistakeParams{PairGroupID: annotated.PairGroupID, PageIndex: -1, BBox: validBBox()}, ErrInvalidRegion},
		{"zero width", CreateMistakeParams{PairGroupID: annotated.PairGroupID, BBox: domain.BBox{X: 0.1, Y: 0.1, Width: 0, Height: 0.2}}, ErrInvalidRegion},
		{"below minimum size", CreateMistakeParams{PairGroupID: annotated.PairGroupID, BBox: domain.BBox{X: 0.1, Y: 0.1, Width: 0.001, Height: 0.2}}, ErrInvalidRegion},
		{"past right edge", CreateMistakeParams{PairGroupID: annotated.PairGroupID, BBox: domain.BBox{X: 0.9, Y: 0.1, Width: 0.2, Height: 0.1}}, ErrInvalidRegion},
		{"past bottom edge", CreateMistakeParams{PairGroupID: annotated.PairGroupID, BBox: domain.BBox{X: 0.1, Y: 0.95, Width: 0.1, Height: 0.1}}, ErrInvalidRegion},
		{"negative origin", CreateMistakeParams{PairGroupID: annotated.PairGroupID, BBox: domain.BBox{X: -0.1, Y: 0.1, Width: 0.3, Height: 0.1}}, ErrInvalidRegion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := a.CreateMistake(tc.p); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if got, _ := a.ListForPairGroup(annotated.PairGroupID); len(got) != 0 {
		t.Fatalf("rejected regions were stored: %v", got)
	}
}

func TestCreateMistakeAnchorsFingerprints(t *testing.T) {
	a, _, clock := newTestApp(t)
	annotated, err := a.RegisterAnnotated("quiz.pdf", "", buildPDF(2))
	if err != nil {
		t.Fatalf("register annotated: %v", err)
	}
	clean, err := a.RegisterClean("quiz-clean.pdf", annotated.PairGroupID, pdfWithComment(2, "clean"))
	if err != nil {
		t.Fatalf("register clean: %v", err)
	}

	m, err := a.CreateMistake(CreateMistakeParams{
		PairGroupID: annotated.PairGroupID,
		PageIndex:   1,
		BBox:        validBBox(),
		Title:       "sign error",
		Tags:        []string{"algebra"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.OriginalFingerprint != annotated.Fingerprint || m.CleanFingerprint != clean.Fingerprint {
		t.Fatalf("fingerprints not anchored: %+v", m)
	}
	if m.IntervalDays != 0 || m.Easiness != review.DefaultEasiness || m.ReviewStreak != 0 {
		t.Fatalf("unexpected initial schedule: %+v", m)
	}
	if !m.Due(clock.Now()) {
		t.Fatal("new mistake not due immediately")
	}
}

func TestUpdateMistakePartialEdit(t *testing.T) {
	a, _, _ := newTestApp(t)
	annotated, _ := a.RegisterAnnotated("quiz.pdf", "", buildPDF(1))
	m, _ := a.CreateMistake(CreateMistakeParams{
		PairGroupID: annotated.PairGroupID,
		BBox:        validBBox(),
		Title:       "original title",
		Note:        "original note",
	})

	note := "forgot to carry the one"
	updated, err := a.UpdateMistake(m.ID, UpdateMistakeParams{Note: &note})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Note != note {
		t.Fatalf("note = %q, want %q", updated.Note, note)
	}
	if updated.Title != "original title" {
		t.Fatalf("title changed on partial update: %q", updated.Title)
	}

	if _, err := a.UpdateMistake("missing", UpdateMistakeParams{Note: &note}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListDueHonorsClock(t *testing.T) {
	a, _, clock := newTestApp(t)
	annotated, _ := a.RegisterAnnotated("quiz.pdf", "", buildPDF(1))
	m, _ := a.CreateMistake(CreateMistakeParams{PairGroupID: annotated.PairGroupID, BBox: validBBox()})

	due, err := a.ListDue(clock.Now())
	if err != nil || len(due) != 1 {
		t.Fatalf("due = %v err=%v, want the new mistake", due, err)
	}

	// Rate it good; it moves a day out and leaves the due set.
	if _, err := a.StartSession(); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, _, err := a.RateCurrent(domain.RatingGood); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if due, _ = a.ListDue(clock.Now()); len(due) != 0 {
		t.Fatalf("rated mistake still due: %v", due)
	}

	clock.Advance(24*time.Hour + time.Second)
	due, _ = a.ListDue(clock.Now())
	if len(due) != 1 || due[0].ID != m.ID {
		t.Fatalf("due after a day = %v, want the mistake back", due)
	}
}

func TestSessionLifecycle(t *testing.T) {
	a, _, clock := newTestApp(t)
	annotated, _ := a.RegisterAnnotated("quiz.pdf", "", buildPDF(3))
	var ids []string
	for i := 0; i < 3; i++ {
		m, err := a.CreateMistake(CreateMistakeParams{PairGroupID: annotated.PairGroupID, PageIndex: i, BBox: validBBox()})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, m.ID)
	}

	if _, err := a.SessionStatus(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("status before start = %v, want ErrNoSession", err)
	}

	state, err := a.StartSession()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.Total != 3 || state.Position != 0 || state.Current == nil || state.Current.ID != ids[0] {
		t.Fatalf("unexpected initial state: %+v", state)
	}

	// Three ratings walk the whole queue; the wrap lands back on index 0.
	for i := 0; i < 3; i++ {
		state, log, err := a.RateCurrent(domain.RatingGood)
		if err != nil {
			t.Fatalf("rate %d: %v", i, err)
		}
		if log.MistakeID != ids[i] || log.OldInterval != 0 || log.NewInterval != 1 {
			t.Fatalf("log %d = %+v", i, log)
		}
		wantPos := (i + 1) % 3
		if state.Position != wantPos {
			t.Fatalf("position after rating %d = %d, want %d", i, state.Position, wantPos)
		}
	}

	// The frozen queue still shows the (no longer due) entries; a new
	// session recomputes and comes up empty.
	state, err = a.SessionStatus()
	if err != nil || state.Total != 3 {
		t.Fatalf("mid-session state = %+v err=%v", state, err)
	}
	state, err = a.StartSession()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if state.Total != 0 || state.Current != nil {
		t.Fatalf("restarted session not empty: %+v", state)
	}

	_ = clock
}

func TestRateCurrentRejectsUnknownRating(t *testing.T) {
	a, _, _ := newTestApp(t)
	annotated, _ := a.RegisterAnnotated("quiz.pdf", "", buildPDF(1))
	m, _ := a.CreateMistake(CreateMistakeParams{PairGroupID: annotated.PairGroupID, BBox: validBBox()})
	if _, err := a.StartSession(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, _, err := a.RateCurrent(domain.Rating("sideways")); !errors.Is(err, review.ErrInvalidRating) {
		t.Fatalf("err = %v, want ErrInvalidRating", err)
	}

	// State untouched: the mistake is still in its initial schedule and the
	// cursor did not move.
	state, err := a.SessionStatus()
	if err != nil || state.Position != 0 {
		t.Fatalf("state after rejected rating = %+v err=%v", state, err)
	}
	logs, err := a.MistakeLogs(m.ID)
	if err != nil || len(logs) != 0 {
		t.Fatalf("rejected rating produced logs: %v err=%v", logs, err)
	}
}

func TestRateCurrentKeepsMidSessionEdits(t *testing.T) {
	a, _, _ := newTestApp(t)
	annotated, _ := a.RegisterAnnotated("quiz.pdf", "", buildPDF(1))
	m, err := a.CreateMistake(CreateMistakeParams{
		PairGroupID: annotated.PairGroupID,
		BBox:        validBBox(),
		Title:       "before",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.StartSession(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Edit while the session is open; the queue snapshot still carries the
	// old title.
	title := "after"
	if _, err := a.UpdateMistake(m.ID, UpdateMistakeParams{Title: &title, Tags: []string{"algebra"}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, _, err := a.RateCurrent(domain.RatingGood); err != nil {
		t.Fatalf("rate: %v", err)
	}

	stored, err := a.ListForPairGroup(annotated.PairGroupID)
	if err != nil || len(stored) != 1 {
		t.Fatalf("list = %v err=%v", stored, err)
	}
	got := stored[0]
	if got.Title != "after" || len(got.Tags) != 1 || got.Tags[0] != "algebra" {
		t.Fatalf("rating reverted edits: %+v", got)
	}
	if got.IntervalDays != 1 || got.ReviewStreak != 1 {
		t.Fatalf("rating not applied: %+v", got)
	}
}

func TestDeleteMistakeCascadesLogs(t *testing.T) {
	a, _, _ := newTestApp(t)
	annotated, _ := a.RegisterAnnotated("quiz.pdf", "", buildPDF(2))
	first, _ := a.CreateMistake(CreateMistakeParams{PairGroupID: annotated.PairGroupID, PageIndex: 0, BBox: validBBox()})
	second, _ := a.CreateMistake(CreateMistakeParams{PairGroupID: annotated.PairGroupID, PageIndex: 1, BBox: validBBox()})

	if _, err := a.StartSession(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, _, err := a.RateCurrent(domain.RatingGood); err != nil {
			t.Fatalf("rate %d: %v", i, err)
		}
	}

	if err := a.DeleteMistake(first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := a.MistakeLogs(first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted mistake's logs reachable: %v", err)
	}
	logs, err := a.MistakeLogs(second.ID)
	if err != nil || len(logs) != 1 {
		t.Fatalf("unrelated logs affected: %v err=%v", logs, err)
	}

	if err := a.DeleteMistake(first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete err = %v, want ErrNotFound", err)
	}
}

func TestPreviewRatingPersistsNothing(t *testing.T) {
	a, _, _ := newTestApp(t)
	annotated, _ := a.RegisterAnnotated("quiz.pdf", "", buildPDF(1))
	m, _ := a.CreateMistake(CreateMistakeParams{PairGroupID: annotated.PairGroupID, BBox: validBBox()})

	preview, err := a.PreviewRating(m.ID, domain.RatingEasy)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.IntervalDays != 2 {
		t.Fatalf("preview interval = %d, want 2", preview.IntervalDays)
	}

	stored, err := a.ListForPairGroup(annotated.PairGroupID)
	if err != nil || len(stored) != 1 {
		t.Fatalf("list: %v err=%v", stored, err)
	}
	if stored[0].IntervalDays != 0 {
		t.Fatalf("preview mutated stored state: %+v", stored[0])
	}
	logs, _ := a.MistakeLogs(m.ID)
	if len(logs) != 0 {
		t.Fatalf("preview produced logs: %v", logs)
	}
}
