package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mistakebook/pkg/domain"
	"mistakebook/pkg/fingerprint"
	"mistakebook/pkg/pdfinfo"
	"mistakebook/pkg/storage"
)

// RegisterAnnotated registers the marked-up rendition of a document. Identity
// is the content fingerprint: uploading the same bytes again refreshes the
// existing record (title, page count) and keeps its pair group, so a mistake
// authored against it stays anchored.
func (a *App) RegisterAnnotated(filename, declaredTitle string, data []byte) (domain.Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fp, pageCount, err := a.inspect(data)
	if err != nil {
		return domain.Document{}, err
	}

	now := a.now()
	title := strings.TrimSpace(declaredTitle)
	if title == "" {
		title = titleFromName(filename)
	}

	doc, exists, err := a.store.GetDocument(fp, domain.RoleAnnotated)
	if err != nil {
		return domain.Document{}, fmt.Errorf("lookup document: %w", err)
	}
	if !exists {
		doc = domain.Document{
			Fingerprint: fp,
			Role:        domain.RoleAnnotated,
			PairGroupID: uuid.NewString(),
			StorageKey:  storage.DocumentKey(string(domain.RoleAnnotated), fp),
			CreatedAt:   now,
		}
	}
	doc.Title = title
	doc.PageCount = pageCount
	doc.SizeBytes = int64(len(data))
	doc.UpdatedAt = now

	if err := a.putObject(doc.StorageKey, data); err != nil {
		return domain.Document{}, err
	}
	if err := a.store.SaveDocument(doc); err != nil {
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

// RegisterClean attaches the unmarked rendition to an existing pair group.
// The clean binary must have exactly the annotated member's page count;
// otherwise nothing is stored, not even the binary. A group holds at most
// one clean member, so uploading a different binary replaces the previous
// one rather than accumulating a second record.
func (a *App) RegisterClean(filename, pairGroupID string, data []byte) (domain.Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	annotated, ok, err := a.annotatedInGroup(pairGroupID)
	if err != nil {
		return domain.Document{}, err
	}
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: pair group %s has no annotated document", ErrNotFound, pairGroupID)
	}

	fp, pageCount, err := a.inspect(data)
	if err != nil {
		return domain.Document{}, err
	}
	if pageCount != annotated.PageCount {
		return domain.Document{}, fmt.Errorf("%w: clean has %d pages, annotated has %d",
			ErrPageCountMismatch, pageCount, annotated.PageCount)
	}

	previous, hadClean, err := a.cleanInGroup(pairGroupID)
	if err != nil {
		return domain.Document{}, err
	}

	now := a.now()
	doc, exists, err := a.store.GetDocument(fp, domain.RoleClean)
	if err != nil {
		return domain.Document{}, fmt.Errorf("lookup document: %w", err)
	}
	if !exists {
		doc = domain.Document{
			Fingerprint: fp,
			Role:        domain.RoleClean,
			StorageKey:  storage.DocumentKey(string(domain.RoleClean), fp),
			CreatedAt:   now,
		}
	}
	doc.Title = titleFromName(filename)
	doc.PageCount = pageCount
	doc.PairGroupID = pairGroupID
	doc.SizeBytes = int64(len(data))
	doc.UpdatedAt = now

	if err := a.putObject(doc.StorageKey, data); err != nil {
		return domain.Document{}, err
	}
	if err := a.store.SaveDocument(doc); err != nil {
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}

	if hadClean && previous.Fingerprint != fp {
		if err := a.store.DeleteDocument(previous.Fingerprint, domain.RoleClean); err != nil {
			return domain.Document{}, fmt.Errorf("replace clean document: %w", err)
		}
		if err := a.objects.Delete(context.Background(), previous.StorageKey); err != nil {
			// The record is gone; an orphaned binary only wastes space.
			slog.Warn("failed to delete replaced clean binary", "key", previous.StorageKey, "err", err)
		}
	}
	return doc, nil
}

// ListPairs derives the pairing-group view from the flat document
// collection: one entry per group, display title preferring the annotated
// member, in the annotated members' insertion order.
func (a *App) ListPairs() ([]domain.Pair, error) {
	docs, err := a.store.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	byGroup := make(map[string]int)
	pairs := make([]domain.Pair, 0, len(docs))
	for _, doc := range docs {
		idx, seen := byGroup[doc.PairGroupID]
		if !seen {
			byGroup[doc.PairGroupID] = len(pairs)
			pairs = append(pairs, domain.Pair{PairGroupID: doc.PairGroupID})
			idx = len(pairs) - 1
		}
		p := &pairs[idx]
		switch doc.Role {
		case domain.RoleAnnotated:
			p.Title = doc.Title
			p.PageCount = doc.PageCount
			p.AnnotatedFingerprint = doc.Fingerprint
			p.CreatedAt = doc.CreatedAt
		case domain.RoleClean:
			p.CleanFingerprint = doc.Fingerprint
			p.HasClean = true
			if p.Title == "" {
				p.Title = doc.Title
			}
			if p.PageCount == 0 {
				p.PageCount = doc.PageCount
			}
		}
	}
	return pairs, nil
}

// FindDocument looks up one document by fingerprint and role.
func (a *App) FindDocument(fp string, role domain.DocumentRole) (domain.Document, error) {
	doc, ok, err := a.store.GetDocument(fp, role)
	if err != nil {
		return domain.Document{}, fmt.Errorf("lookup document: %w", err)
	}
	if !ok {
		return domain.Document{}, ErrNotFound
	}
	return doc, nil
}

// DocumentDownloadURL returns a pre-signed URL for the stored binary.
func (a *App) DocumentDownloadURL(fp string, role domain.DocumentRole) (string, error) {
	doc, err := a.FindDocument(fp, role)
	if err != nil {
		return "", err
	}
	url, err := a.objects.PresignGet(context.Background(), doc.StorageKey, a.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}

// inspect fingerprints the binary and extracts its page count. Both must
// succeed before any state is touched.
func (a *App) inspect(data []byte) (fp string, pageCount int, err error) {
	fp, err = fingerprint.Compute(data)
	if err != nil {
		return "", 0, fmt.Errorf("fingerprint upload: %w", err)
	}
	pageCount, err = pdfinfo.PageCount(data)
	if err != nil {
		return "", 0, err
	}
	return fp, pageCount, nil
}

func (a *App) putObject(key string, data []byte) error {
	err := a.objects.Put(context.Background(), key, bytes.NewReader(data), int64(len(data)), "application/pdf")
	if err != nil {
		return fmt.Errorf("store binary: %w", err)
	}
	return nil
}

// annotatedInGroup scans the document collection for a group's annotated
// member. The collection is small enough that the derived view needs no
// index.
func (a *App) annotatedInGroup(pairGroupID string) (domain.Document, bool, error) {
	docs, err := a.store.ListDocuments()
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("list documents: %w", err)
	}
	for _, doc := range docs {
		if doc.PairGroupID == pairGroupID && doc.Role == domain.RoleAnnotated {
			return doc, true, nil
		}
	}
	return domain.Document{}, false, nil
}

func titleFromName(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled document"
	}
	return title
}
