package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"marketbot/pkg/ai"
)

const indexFileName = "index.json"

// Number of pages embedded per request during a rebuild.
const embedBatchSize = 16

type vectorEntry struct {
	DocID   int64     `json:"doc_id"`
	Title   string    `json:"title"`
	PageNum int       `json:"page_num"`
	Content string    `json:"content"`
	Vector  []float32 `json:"vector"`
}

type indexFile struct {
	Model   string        `json:"model"`
	Dim     int           `json:"dim"`
	Entries []vectorEntry `json:"entries"`
}

// VectorHit is one scored page from a semantic search.
type VectorHit struct {
	DocID   int64
	Title   string
	PageNum int
	Content string
	Score   float64
}

// VectorIndex keeps page embeddings on disk and answers similarity
// queries against them. When loading or embedding fails the index
// disables itself for the rest of the process so callers can fall back
// to literal search.
type VectorIndex struct {
	mu        sync.RWMutex
	dir       string
	embedder  ai.Embedder
	threshold float64
	entries   []vectorEntry
	dim       int
	disabled  bool
}

// NewVectorIndex loads the index stored under dir, if any. A corrupt
// file or a model mismatch leaves the index empty and disabled; callers
// can restore it with Rebuild.
func NewVectorIndex(dir string, embedder ai.Embedder, threshold float64) (*VectorIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vector index: embedder is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector storage dir: %w", err)
	}
	idx := &VectorIndex{dir: dir, embedder: embedder, threshold: threshold}

	path := filepath.Join(dir, indexFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vector index: %w", err)
	}
	var stored indexFile
	if err := json.Unmarshal(data, &stored); err != nil {
		slog.Warn("vector index file is corrupt, semantic search disabled until rebuild", "path", path, "error", err)
		idx.disabled = true
		return idx, nil
	}
	if stored.Model != embedder.Model() {
		slog.Warn("vector index was built with a different embedding model, semantic search disabled until rebuild",
			"indexed_model", stored.Model, "configured_model", embedder.Model())
		idx.disabled = true
		return idx, nil
	}
	idx.entries = stored.Entries
	idx.dim = stored.Dim
	return idx, nil
}

// Enabled reports whether the index can currently answer queries.
func (v *VectorIndex) Enabled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return !v.disabled
}

// Len returns the number of indexed pages.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}

// AddDocument embeds the given pages and appends them to the index.
// Pages are numbered from 1 in the order given.
func (v *VectorIndex) AddDocument(ctx context.Context, docID int64, title string, pages []string) error {
	if len(pages) == 0 {
		return nil
	}
	vectors, err := v.embed(ctx, pages)
	if err != nil {
		return fmt.Errorf("embed document pages: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for i, vec := range vectors {
		if v.dim == 0 {
			v.dim = len(vec)
		}
		v.entries = append(v.entries, vectorEntry{
			DocID:   docID,
			Title:   title,
			PageNum: i + 1,
			Content: pages[i],
			Vector:  vec,
		})
	}
	return v.saveLocked()
}

// RemoveDocument drops every entry belonging to docID.
func (v *VectorIndex) RemoveDocument(docID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	kept := v.entries[:0]
	for _, entry := range v.entries {
		if entry.DocID != docID {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(v.entries) {
		return nil
	}
	v.entries = kept
	return v.saveLocked()
}

// Search embeds the query and returns up to limit pages scoring at or
// above the similarity threshold, best first.
func (v *VectorIndex) Search(ctx context.Context, query string, limit int) ([]VectorHit, error) {
	v.mu.RLock()
	if v.disabled {
		v.mu.RUnlock()
		return nil, ErrVectorUnavailable
	}
	v.mu.RUnlock()

	vectors, err := v.embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVec := vectors[0]

	v.mu.RLock()
	defer v.mu.RUnlock()
	var hits []VectorHit
	for _, entry := range v.entries {
		score := cosineSimilarity(queryVec, entry.Vector)
		if score < v.threshold {
			continue
		}
		hits = append(hits, VectorHit{
			DocID:   entry.DocID,
			Title:   entry.Title,
			PageNum: entry.PageNum,
			Content: entry.Content,
			Score:   score,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Rebuild re-embeds every page of every document and replaces the index
// atomically. A successful rebuild re-enables a disabled index.
func (v *VectorIndex) Rebuild(ctx context.Context, docs []RebuildDoc) error {
	var (
		mu      sync.Mutex
		entries []vectorEntry
	)
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, doc := range docs {
		if len(doc.Pages) == 0 {
			continue
		}
		doc := doc
		group.Go(func() error {
			for start := 0; start < len(doc.Pages); start += embedBatchSize {
				end := start + embedBatchSize
				if end > len(doc.Pages) {
					end = len(doc.Pages)
				}
				batch := doc.Pages[start:end]
				vectors, err := v.embedder.EmbedTexts(ctx, batch)
				if err != nil {
					return fmt.Errorf("embed pages of %q: %w", doc.Title, err)
				}
				mu.Lock()
				for i, vec := range vectors {
					entries = append(entries, vectorEntry{
						DocID:   doc.DocID,
						Title:   doc.Title,
						PageNum: start + i + 1,
						Content: batch[i],
						Vector:  vec,
					})
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries = entries
	v.dim = 0
	if len(entries) > 0 {
		v.dim = len(entries[0].Vector)
	}
	if err := v.saveLocked(); err != nil {
		return err
	}
	v.disabled = false
	return nil
}

// RebuildDoc is one document's pages, ordered by page number, as input
// to Rebuild.
type RebuildDoc struct {
	DocID int64
	Title string
	Pages []string
}

// embed calls the embedder, retrying once so a transient backend hiccup
// does not take the index down. A repeated failure disables the index.
func (v *VectorIndex) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := v.embedder.EmbedTexts(ctx, texts)
	if err == nil {
		return vectors, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	slog.Warn("embedding call failed, retrying", "error", err)
	vectors, err = v.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		v.disable()
		return nil, err
	}
	return vectors, nil
}

func (v *VectorIndex) disable() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.disabled {
		slog.Warn("semantic search disabled after embedding failure, falling back to literal search")
		v.disabled = true
	}
}

// saveLocked writes the index to a temp file and renames it into place.
// Callers must hold mu.
func (v *VectorIndex) saveLocked() error {
	stored := indexFile{Model: v.embedder.Model(), Dim: v.dim, Entries: v.entries}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode vector index: %w", err)
	}
	path := filepath.Join(v.dir, indexFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write vector index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace vector index: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
