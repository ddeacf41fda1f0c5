package kb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketbot/pkg/store"
)

func newTestManager(t *testing.T, index *VectorIndex) (*Manager, *store.GormStore) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewGormStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewGormStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	m, err := NewManager(st, index, filepath.Join(dir, "kb_files"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, st
}

func TestAddDocumentAndLiteralSearch(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	src := writeTextFile(t, t.TempDir(), "pricing.txt",
		"Our pricing strategy targets small businesses.\n\nDiscounts apply in the first quarter.")

	res, err := m.AddDocument(ctx, src, "Pricing Guide", 42)
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if res.DocID == 0 || res.NumPages != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	hits, err := m.Search(ctx, "pricing strategy", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Title != "Pricing Guide" || hits[0].PageNum != 1 {
		t.Errorf("unexpected hit: %+v", hits[0])
	}
	if !strings.Contains(strings.ToLower(hits[0].Snippet), "pricing") {
		t.Errorf("snippet missing term: %q", hits[0].Snippet)
	}
}

func TestAddDocumentValidation(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	dir := t.TempDir()

	if _, err := m.AddDocument(ctx, filepath.Join(dir, "missing.txt"), "", 1); !errors.Is(err, ErrFileMissing) {
		t.Errorf("missing file: expected ErrFileMissing, got %v", err)
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}
	if _, err := m.AddDocument(ctx, empty, "", 1); !errors.Is(err, ErrFileEmpty) {
		t.Errorf("empty file: expected ErrFileEmpty, got %v", err)
	}

	unsupported := writeTextFile(t, dir, "image.png", "binarydata")
	if _, err := m.AddDocument(ctx, unsupported, "", 1); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unsupported format: expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestAddDocumentDefaultsTitleFromFilename(t *testing.T) {
	m, st := newTestManager(t, nil)
	src := writeTextFile(t, t.TempDir(), "launch-checklist.txt", "Announce on every channel.")

	res, err := m.AddDocument(context.Background(), src, "  ", 1)
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	doc, ok, err := st.GetDocument(res.DocID)
	if err != nil || !ok {
		t.Fatalf("GetDocument: ok=%v err=%v", ok, err)
	}
	if doc.Title != "launch-checklist" {
		t.Errorf("expected title from filename, got %q", doc.Title)
	}
}

func TestAddDocumentReusesStoredFile(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	srcDir := t.TempDir()
	src := writeTextFile(t, srcDir, "guide.txt", "original stored content")

	res, err := m.AddDocument(ctx, src, "Guide", 1)
	if err != nil {
		t.Fatalf("first AddDocument: %v", err)
	}
	if err := m.DeleteDocument(res.DocID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	// A later upload of the same filename with different bytes must not
	// overwrite the stored copy.
	src2 := writeTextFile(t, t.TempDir(), "guide.txt", "changed content")
	res2, err := m.AddDocument(ctx, src2, "Guide", 1)
	if err != nil {
		t.Fatalf("second AddDocument: %v", err)
	}
	stored, err := os.ReadFile(filepath.Join(m.storageDir, "guide.txt"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(stored) != "original stored content" {
		t.Errorf("stored file was overwritten: %q", stored)
	}
	content, ok, err := m.store.GetPageContent(res2.DocID, 1)
	if err != nil || !ok {
		t.Fatalf("GetPageContent: ok=%v err=%v", ok, err)
	}
	if content != "original stored content" {
		t.Errorf("pages should come from the stored copy, got %q", content)
	}
}

func TestDeleteDocumentKeepsFileOnDisk(t *testing.T) {
	m, st := newTestManager(t, nil)
	ctx := context.Background()
	src := writeTextFile(t, t.TempDir(), "keep.txt", "some knowledge")

	res, err := m.AddDocument(ctx, src, "Keep", 1)
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := m.DeleteDocument(res.DocID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	if _, err := os.Stat(filepath.Join(m.storageDir, "keep.txt")); err != nil {
		t.Errorf("stored file should survive deletion: %v", err)
	}
	if _, ok, _ := st.GetDocument(res.DocID); ok {
		t.Error("document row should be gone")
	}
	if err := m.DeleteDocument(res.DocID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("second delete: expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSearchUsesVectorIndexWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	emb := newStubEmbedder()
	idx, err := NewVectorIndex(filepath.Join(dir, "vectors"), emb, 0.7)
	if err != nil {
		t.Fatalf("NewVectorIndex: %v", err)
	}
	m, _ := newTestManager(t, idx)
	ctx := context.Background()

	src := writeTextFile(t, dir, "strategy.txt", "pricing strategy for launches")
	if _, err := m.AddDocument(ctx, src, "Strategy", 1); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	hits, err := m.Search(ctx, "pricing advice", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 semantic hit, got %d", len(hits))
	}
	if hits[0].Score == 0 {
		t.Error("semantic hits should carry a score")
	}
}

func TestSearchFallsBackToLiteralWhenAllHitsBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	emb := newStubEmbedder()
	idx, err := NewVectorIndex(filepath.Join(dir, "vectors"), emb, 0.7)
	if err != nil {
		t.Fatalf("NewVectorIndex: %v", err)
	}
	m, _ := newTestManager(t, idx)
	ctx := context.Background()

	src := writeTextFile(t, dir, "strategy.txt", "pricing strategy for launches")
	if _, err := m.AddDocument(ctx, src, "Strategy", 1); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	// "pricing strategy" has no fixture vector, so its embedding is
	// orthogonal to every indexed page and no semantic hit survives the
	// threshold. The words still match literally.
	hits, err := m.Search(ctx, "pricing strategy", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 literal hit, got %d", len(hits))
	}
	if hits[0].Score != 0 {
		t.Error("literal hits carry no score")
	}
	if !idx.Enabled() {
		t.Error("an empty semantic result must not disable the index")
	}

	content, found, err := m.ContentForQuery(ctx, "pricing strategy")
	if err != nil {
		t.Fatalf("ContentForQuery: %v", err)
	}
	if !found || !strings.Contains(content, "pricing strategy for launches") {
		t.Errorf("expected literal content, found=%v content=%q", found, content)
	}
}

func TestSearchFallsBackToLiteralOnEmbedFailure(t *testing.T) {
	dir := t.TempDir()
	emb := newStubEmbedder()
	idx, err := NewVectorIndex(filepath.Join(dir, "vectors"), emb, 0.7)
	if err != nil {
		t.Fatalf("NewVectorIndex: %v", err)
	}
	m, _ := newTestManager(t, idx)
	ctx := context.Background()

	src := writeTextFile(t, dir, "strategy.txt", "pricing strategy for launches")
	if _, err := m.AddDocument(ctx, src, "Strategy", 1); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	emb.fail = true
	hits, err := m.Search(ctx, "pricing", 5)
	if err != nil {
		t.Fatalf("Search should fall back, got error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 literal hit, got %d", len(hits))
	}
	if hits[0].Score != 0 {
		t.Error("literal hits carry no score")
	}
	if idx.Enabled() {
		t.Error("index should be disabled after the failure")
	}
}

func TestContentForQuery(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()
	src := writeTextFile(t, t.TempDir(), "channels.txt", "Email campaigns convert best on Tuesdays.")
	if _, err := m.AddDocument(ctx, src, "Channels", 1); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	content, found, err := m.ContentForQuery(ctx, "email campaigns")
	if err != nil {
		t.Fatalf("ContentForQuery: %v", err)
	}
	if !found {
		t.Fatal("expected a match")
	}
	if !strings.Contains(content, "Document: Channels (Page 1)") {
		t.Errorf("content missing header: %q", content)
	}
	if !strings.Contains(content, "convert best on Tuesdays") {
		t.Errorf("content missing page text: %q", content)
	}

	_, found, err = m.ContentForQuery(ctx, "zzzznohit")
	if err != nil {
		t.Fatalf("ContentForQuery: %v", err)
	}
	if found {
		t.Error("expected no match")
	}
}

func TestRebuildIndex(t *testing.T) {
	dir := t.TempDir()
	emb := newStubEmbedder()
	idx, err := NewVectorIndex(filepath.Join(dir, "vectors"), emb, 0.7)
	if err != nil {
		t.Fatalf("NewVectorIndex: %v", err)
	}
	m, _ := newTestManager(t, idx)
	ctx := context.Background()

	src := writeTextFile(t, dir, "strategy.txt", "pricing strategy for launches")
	if _, err := m.AddDocument(ctx, src, "Strategy", 1); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	if err := m.RebuildIndex(ctx); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry after rebuild, got %d", idx.Len())
	}

	noVec, _ := newTestManager(t, nil)
	if err := noVec.RebuildIndex(ctx); !errors.Is(err, ErrVectorUnavailable) {
		t.Errorf("expected ErrVectorUnavailable without an index, got %v", err)
	}
}
