// Package knowledge loads reference documents (past estimates, rate sheets)
// and retrieves the passages most relevant to a query. Retrieval prefers the
// vector index when one is wired and falls back to keyword overlap scoring.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"estimator/internal/docext"
	"estimator/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Document is one loaded reference file.
type Document struct {
	Name string
	Text string
}

// Result is one retrieved passage.
type Result struct {
	Text   string
	Source string
	Score  float64
}

// Searcher retrieves passages by semantic similarity.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// boostTerms get extra weight in keyword scoring since they mark the passages
// estimation answers draw from.
var boostTerms = map[string]float64{
	"team":      2,
	"developer": 2,
	"estimate":  2,
	"hour":      1.5,
	"cost":      1.5,
	"rate":      1.5,
}

// Base is the document store plus its retrieval paths.
type Base struct {
	dataDir       string
	estimatesFile string
	vector        Searcher

	mu        sync.RWMutex
	docs      []Document
	chunks    []chunk
	estimates string
}

type chunk struct {
	source string
	text   string
	tokens map[string]int
}

// NewBase wires the store. vector may be nil; retrieval then relies on
// keyword overlap only.
func NewBase(dataDir, estimatesFile string, vector Searcher) *Base {
	return &Base{dataDir: dataDir, estimatesFile: estimatesFile, vector: vector}
}

// Load extracts every supported document under the data dir in parallel.
// A missing dir is not an error; the base just stays empty.
func (b *Base) Load(ctx context.Context) error {
	entries, err := os.ReadDir(b.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("knowledge data dir %s missing, starting empty", b.dataDir)
			return nil
		}
		return fmt.Errorf("reading knowledge dir failed: %w", err)
	}

	var mu sync.Mutex
	var docs []Document
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, entry := range entries {
		if entry.IsDir() || !docext.Supported(filepath.Ext(entry.Name())) {
			continue
		}
		name := entry.Name()
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(b.dataDir, name)
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s failed: %w", name, err)
			}
			text, err := docext.Extract(name, raw)
			if err != nil {
				logger.Warnf("knowledge skipping %s: %v", name, err)
				return nil
			}
			mu.Lock()
			docs = append(docs, Document{Name: name, Text: text})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })

	b.mu.Lock()
	b.docs = docs
	b.chunks = chunkDocuments(docs)
	b.estimates = findEstimates(docs, b.estimatesFile)
	b.mu.Unlock()
	logger.Infof("Knowledge base loaded %d documents (%d chunks) from %s", len(docs), len(b.chunks), b.dataDir)
	return nil
}

// Documents returns the loaded documents.
func (b *Base) Documents() []Document {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Document(nil), b.docs...)
}

// EstimatesReference returns up to maxChars of the designated estimates file,
// used to anchor the model on real past numbers.
func (b *Base) EstimatesReference(maxChars int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if maxChars > 0 && len(b.estimates) > maxChars {
		return b.estimates[:maxChars]
	}
	return b.estimates
}

// Search retrieves up to limit relevant passages. Vector results win when the
// index answers; any vector failure degrades to keyword overlap.
func (b *Base) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 8
	}
	if b.vector != nil {
		results, err := b.vector.Search(ctx, query, limit)
		if err != nil {
			logger.Warnf("vector search failed, falling back to keywords: %v", err)
		} else if len(results) > 0 {
			return results, nil
		}
	}
	return b.keywordSearch(query, limit), nil
}

// Context renders up to limit retrieved passages as one prompt block, bounded
// by maxChars so a handful of long passages cannot blow the prompt budget.
// maxChars <= 0 means unbounded.
func (b *Base) Context(ctx context.Context, query string, limit, maxChars int) (string, error) {
	results, err := b.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, r := range results {
		block := strings.TrimSpace(r.Text)
		if r.Source != "" {
			block = "[" + r.Source + "] " + block
		}
		if maxChars > 0 && sb.Len() > 0 && sb.Len()+len(block) > maxChars {
			break
		}
		sb.WriteString(block)
		sb.WriteString("\n\n")
	}
	out := strings.TrimSpace(sb.String())
	if maxChars > 0 && len(out) > maxChars {
		out = strings.TrimSpace(out[:maxChars])
	}
	return out, nil
}

func (b *Base) keywordSearch(query string, limit int) []Result {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	b.mu.RLock()
	chunks := b.chunks
	b.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i, ch := range chunks {
		score := 0.0
		for term := range terms {
			if ch.tokens[term] == 0 {
				continue
			}
			weight := 1.0
			if w, ok := boostTerms[term]; ok {
				weight = w
			}
			score += weight
		}
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		ch := chunks[h.idx]
		out = append(out, Result{Text: ch.text, Source: ch.source, Score: h.score})
	}
	return out
}

// chunkDocuments splits texts on blank lines and packs paragraphs into
// passages of roughly 800 characters.
func chunkDocuments(docs []Document) []chunk {
	const target = 800
	var chunks []chunk
	for _, doc := range docs {
		paragraphs := strings.Split(doc.Text, "\n\n")
		var buf strings.Builder
		flush := func() {
			text := strings.TrimSpace(buf.String())
			buf.Reset()
			if text == "" {
				return
			}
			chunks = append(chunks, chunk{source: doc.Name, text: text, tokens: tokenCounts(text)})
		}
		for _, p := range paragraphs {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if buf.Len() > 0 && buf.Len()+len(p) > target {
				flush()
			}
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(p)
		}
		flush()
	}
	return chunks
}

func findEstimates(docs []Document, name string) string {
	for _, doc := range docs {
		if strings.EqualFold(doc.Name, name) {
			return doc.Text
		}
	}
	return ""
}

func tokenize(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for token := range tokenCounts(text) {
		out[token] = struct{}{}
	}
	return out
}

// tokenCounts lowercases, strips punctuation and singularizes a trailing "s"
// so "developers" matches "developer".
func tokenCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,;:!?()[]{}\"'`|")
		if len(token) < 3 {
			continue
		}
		if len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") {
			token = token[:len(token)-1]
		}
		counts[token]++
	}
	return counts
}
