package kb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"marketbot/pkg/domain"
	"marketbot/pkg/store"
)

// IngestResult summarizes a successful document ingestion.
type IngestResult struct {
	DocID    int64
	NumPages int
}

// Manager ingests documents into the store and answers knowledge-base
// queries. The vector index is optional; without one, or when it is
// degraded, every search runs as a literal match.
type Manager struct {
	store      store.Store
	index      *VectorIndex
	storageDir string
}

// NewManager creates a Manager storing ingested files under storageDir.
// index may be nil, which disables semantic search entirely.
func NewManager(st store.Store, index *VectorIndex, storageDir string) (*Manager, error) {
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create knowledge base dir: %w", err)
	}
	return &Manager{store: st, index: index, storageDir: storageDir}, nil
}

// AddDocument copies the file into the knowledge base directory, extracts
// its text, and stores the document with its pages. Re-adding a filename
// that already has a non-empty stored file reuses the stored copy.
func (m *Manager) AddDocument(ctx context.Context, srcPath, title string, adminID int64) (IngestResult, error) {
	info, err := os.Stat(srcPath)
	if os.IsNotExist(err) {
		return IngestResult{}, fmt.Errorf("%w: %s", ErrFileMissing, srcPath)
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() == 0 {
		return IngestResult{}, fmt.Errorf("%w: %s", ErrFileEmpty, srcPath)
	}
	filename := filepath.Base(srcPath)
	if !supportedExtension(filepath.Ext(filename)) {
		return IngestResult{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if title = strings.TrimSpace(title); title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	storedPath, err := m.placeFile(srcPath, filename)
	if err != nil {
		return IngestResult{}, err
	}

	texts, err := extractPages(storedPath)
	if err != nil {
		return IngestResult{}, err
	}

	pages := make([]domain.Page, len(texts))
	for i, content := range texts {
		pages[i] = domain.Page{PageNum: i + 1, Content: content}
	}
	doc := domain.Document{
		Filename: filename,
		Title:    title,
		FilePath: storedPath,
		NumPages: len(pages),
		AdminID:  adminID,
	}
	docID, err := m.store.CreateDocumentWithPages(doc, pages)
	if err != nil {
		return IngestResult{}, fmt.Errorf("store document: %w", err)
	}

	if m.index != nil {
		if err := m.index.AddDocument(ctx, docID, title, texts); err != nil {
			slog.Warn("document stored but not indexed for semantic search", "doc_id", docID, "error", err)
		}
	}
	slog.Info("document added to knowledge base", "doc_id", docID, "filename", filename, "pages", len(pages))
	return IngestResult{DocID: docID, NumPages: len(pages)}, nil
}

// placeFile copies src into the storage directory. An existing non-empty
// file with the same name is reused so repeated uploads stay idempotent.
func (m *Manager) placeFile(srcPath, filename string) (string, error) {
	dst := filepath.Join(m.storageDir, filename)
	if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
		return dst, nil
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create stored file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("copy file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close stored file: %w", err)
	}
	return dst, nil
}

// DeleteDocument removes the document and its pages from the store and
// drops its entries from the vector index. The stored file stays on disk.
func (m *Manager) DeleteDocument(docID int64) error {
	if err := m.store.DeleteDocument(docID); err != nil {
		return err
	}
	if m.index != nil {
		if err := m.index.RemoveDocument(docID); err != nil {
			slog.Warn("document deleted but vector index not updated", "doc_id", docID, "error", err)
		}
	}
	slog.Info("document removed from knowledge base", "doc_id", docID)
	return nil
}

// Search queries the knowledge base. Semantic search runs when the
// vector index is usable; any degradation falls back to a literal match
// without surfacing an error to the caller.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	if m.index != nil && m.index.Enabled() {
		hits, err := m.index.Search(ctx, query, limit)
		switch {
		case err != nil:
			slog.Warn("semantic search failed, using literal search", "error", err)
		case len(hits) == 0:
			// Every candidate fell below the similarity threshold.
			slog.Debug("semantic search found nothing, using literal search", "query", query)
		default:
			results := make([]domain.SearchResult, len(hits))
			for i, hit := range hits {
				results[i] = domain.SearchResult{
					DocID:   hit.DocID,
					Title:   hit.Title,
					PageNum: hit.PageNum,
					Snippet: Snippet(hit.Content, query, 200),
					Score:   hit.Score,
				}
			}
			return results, nil
		}
	}
	return m.literalSearch(query, limit)
}

func (m *Manager) literalSearch(query string, limit int) ([]domain.SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}
	hits, err := m.store.SearchPages(terms, limit)
	if err != nil {
		return nil, fmt.Errorf("search pages: %w", err)
	}
	results := make([]domain.SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = domain.SearchResult{
			DocID:   hit.DocID,
			Title:   hit.Title,
			PageNum: hit.PageNum,
			Snippet: Snippet(hit.Content, terms[0], 200),
		}
	}
	return results, nil
}

// ContentForQuery returns the full text of the best-matching pages,
// formatted for inclusion in a generation prompt. The second return is
// false when nothing matched.
func (m *Manager) ContentForQuery(ctx context.Context, query string) (string, bool, error) {
	results, err := m.Search(ctx, query, 5)
	if err != nil {
		return "", false, err
	}
	if len(results) == 0 {
		return "", false, nil
	}
	var parts []string
	for _, r := range results {
		content, ok, err := m.store.GetPageContent(r.DocID, r.PageNum)
		if err != nil {
			return "", false, fmt.Errorf("load page content: %w", err)
		}
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("Document: %s (Page %d)\n\n%s", r.Title, r.PageNum, content))
	}
	if len(parts) == 0 {
		return "", false, nil
	}
	return strings.Join(parts, "\n\n---\n\n"), true, nil
}

// RebuildIndex re-embeds every stored page. It is a no-op without a
// vector index.
func (m *Manager) RebuildIndex(ctx context.Context) error {
	if m.index == nil {
		return ErrVectorUnavailable
	}
	docs, err := m.store.ListDocuments()
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	input := make([]RebuildDoc, 0, len(docs))
	for _, doc := range docs {
		pages, err := m.store.ListPages(doc.ID)
		if err != nil {
			return fmt.Errorf("list pages of %d: %w", doc.ID, err)
		}
		texts := make([]string, len(pages))
		for i, p := range pages {
			texts[i] = p.Content
		}
		input = append(input, RebuildDoc{DocID: doc.ID, Title: doc.Title, Pages: texts})
	}
	if err := m.index.Rebuild(ctx, input); err != nil {
		return fmt.Errorf("rebuild vector index: %w", err)
	}
	slog.Info("vector index rebuilt", "documents", len(input), "pages", m.index.Len())
	return nil
}

// ListDocuments returns all stored documents.
func (m *Manager) ListDocuments() ([]domain.Document, error) {
	return m.store.ListDocuments()
}
