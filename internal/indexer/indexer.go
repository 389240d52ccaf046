// Package indexer implements the indexer (SPEC_FULL.md component C): walks
// a project tree, routes every file through the parser registry and
// graph-edge extractor, and upserts the resulting chunks/edges into the
// vector-store and graph contracts.
package indexer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"knowledgecore/internal/parser"
	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/rag/embedder"
	"knowledgecore/internal/reliability"
)

// Status is a project's process-local IndexStatus (spec.md §3). It is
// process-wide mutable state, lost on restart, and is only ever mutated by
// the Indexer.
type Status struct {
	Project       string    `json:"project"`
	State         string    `json:"status"`
	TotalFiles    int       `json:"totalFiles,omitempty"`
	IndexedFiles  int       `json:"indexedFiles,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated,omitempty"`
	VectorCount   int       `json:"vectorCount,omitempty"`
	Errors        []string  `json:"errors,omitempty"`
}

const (
	StateIdle      = "idle"
	StateIndexing  = "indexing"
	StateCompleted = "completed"
	StateError     = "error"
)

// ProjectStats is getProjectStats's response shape (spec.md §4.C).
type ProjectStats struct {
	FileCount   int            `json:"fileCount"`
	TotalLines  int            `json:"totalLines"`
	Languages   map[string]int `json:"languages"`
	LastIndexed time.Time      `json:"lastIndexed"`
}

// maxEmbedBatch is the ≤64-embeddings-per-batch cap named in spec.md §4.C.
const maxEmbedBatch = 64

// drainWindow is how long reindexWithZeroDowntime waits before deleting the
// superseded collection version.
const drainWindow = 30 * time.Second

// IndexRequest mirrors spec.md §4.C's indexProject argument shape.
type IndexRequest struct {
	Project         string
	Path            string
	Force           bool
	Patterns        []string
	ExcludePatterns []string
}

// Indexer is the SPEC_FULL.md component C service: one per process, holding
// every project's in-flight/last-run Status.
type Indexer struct {
	vector   databases.VectorStore
	graph    databases.GraphDB
	emb      embedder.Embedder
	breakers *reliability.Registry
	sparse   bool

	mu       sync.Mutex
	statuses map[string]*Status
	versions map[string]int
}

// New constructs an Indexer. sparseEnabled mirrors spec.md §4.C's
// feature-flagged sparse-vector embedding.
func New(vector databases.VectorStore, graph databases.GraphDB, emb embedder.Embedder, breakers *reliability.Registry, sparseEnabled bool) *Indexer {
	return &Indexer{
		vector: vector, graph: graph, emb: emb, breakers: breakers, sparse: sparseEnabled,
		statuses: make(map[string]*Status), versions: make(map[string]int),
	}
}

func collectionFor(project string) string { return project + "_codebase" }

// GetIndexStatus returns a snapshot of a project's process-local status.
func (idx *Indexer) GetIndexStatus(project string) Status {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if s, ok := idx.statuses[project]; ok {
		return *s
	}
	return Status{Project: project, State: StateIdle}
}

// IndexProject starts a background indexing job for req.Project, rejecting
// with a KindConflict "already_indexing" error if one is already running,
// per spec.md §4.C.
func (idx *Indexer) IndexProject(ctx context.Context, req IndexRequest) error {
	idx.mu.Lock()
	if s, ok := idx.statuses[req.Project]; ok && s.State == StateIndexing {
		idx.mu.Unlock()
		return reliability.New(reliability.KindConflict, "already_indexing", nil)
	}
	status := &Status{Project: req.Project, State: StateIndexing, LastUpdated: time.Now()}
	idx.statuses[req.Project] = status
	idx.mu.Unlock()

	go idx.run(context.WithoutCancel(ctx), req, collectionFor(req.Project), status)
	return nil
}

func (idx *Indexer) run(ctx context.Context, req IndexRequest, collection string, status *Status) {
	files, err := walk(req.Path, req.Patterns, req.ExcludePatterns)
	if err != nil {
		idx.fail(status, err)
		return
	}
	idx.mu.Lock()
	status.TotalFiles = len(files)
	idx.mu.Unlock()

	var allEdges []parser.GraphEdge
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			idx.fail(status, err)
			return
		}
		edges, err := idx.indexFile(ctx, req.Project, collection, f)
		idx.mu.Lock()
		status.IndexedFiles++
		status.LastUpdated = time.Now()
		if err != nil {
			status.Errors = append(status.Errors, f+": "+err.Error())
		}
		if rerr, ok := reliability.AsError(err); ok && (rerr.Kind == reliability.KindUnavailable || rerr.Kind == reliability.KindCircuitOpen) {
			status.State = StateError
			idx.mu.Unlock()
			return
		}
		idx.mu.Unlock()
		allEdges = append(allEdges, edges...)
	}

	for _, e := range allEdges {
		_ = idx.graph.UpsertNode(ctx, e.FromFile, []string{"file"}, nil)
		if e.ToFile != "" {
			_ = idx.graph.UpsertNode(ctx, e.ToFile, []string{"file"}, nil)
			_ = idx.graph.UpsertEdge(ctx, e.FromFile, string(e.EdgeType), e.ToFile, nil)
		}
	}

	idx.mu.Lock()
	status.State = StateCompleted
	status.LastUpdated = time.Now()
	idx.mu.Unlock()
}

func (idx *Indexer) fail(status *Status, err error) {
	idx.mu.Lock()
	status.State = StateError
	status.Errors = append(status.Errors, err.Error())
	status.LastUpdated = time.Now()
	idx.mu.Unlock()
}

// indexFile classifies, parses, embeds, and upserts one file's chunks,
// returning the graph edges the file itself contributes. A parse failure
// never aborts the job — per spec.md §4.A/§4.C's error policy the caller
// just records it and continues; only a reliability.KindUnavailable
// (embedder unreachable) or KindCircuitOpen (breaker open) is unrecoverable.
func (idx *Indexer) indexFile(ctx context.Context, project, collection, filePath string) ([]parser.GraphEdge, error) {
	content, err := readFile(filePath)
	if err != nil {
		return nil, err
	}
	chunks := parser.Parse(filePath, content)
	if len(chunks) == 0 {
		return nil, nil
	}
	language := ""
	if len(chunks) > 0 {
		language = chunks[0].Language
	}
	edges := parser.ExtractEdges(content, filePath)

	for start := 0; start < len(chunks); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		var vecs [][]float32
		err := idx.breakers.Get("embedding").Execute(func() error {
			v, err := idx.emb.EmbedBatch(ctx, texts)
			if err != nil {
				return reliability.New(reliability.KindUnavailable, "embedding unavailable", err)
			}
			vecs = v
			return nil
		})
		if err != nil {
			return edges, err
		}

		points := make([]databases.Point, len(batch))
		for i, c := range batch {
			points[i] = databases.Point{
				ID:     deterministicID(project, filePath, c.StartLine, c.EndLine, c.Content),
				Vector: vecs[i],
				Payload: map[string]any{
					"content":   c.Content,
					"startLine": c.StartLine,
					"endLine":   c.EndLine,
					"language":  c.Language,
					"type":      string(c.Type),
					"project":   project,
					"file":      filePath,
					"chunkType": string(c.Type),
				},
			}
		}
		_ = language

		err = idx.breakers.Get("vectorStore").Execute(func() error {
			if err := idx.vector.UpsertPoints(ctx, collection, points); err != nil {
				return reliability.New(reliability.KindUpstream, "vector upsert failed", err)
			}
			return nil
		})
		if err != nil {
			return edges, err
		}
	}
	return edges, nil
}

// deterministicID computes the stable id named in spec.md §3's Point
// invariant, over (project, file, startLine, endLine, contentHash), using
// uuid.NewSHA1 over a fixed namespace the way the teacher's domain ids are
// derived elsewhere in this tree.
var idNamespace = uuid.MustParse("6f6f8f6e-6f6f-4f6f-8f6f-6f6f6f6f6f6f")

func deterministicID(project, file string, start, end int, content string) string {
	h := sha256.Sum256([]byte(content))
	key := project + "|" + file + "|" + itoa(start) + "|" + itoa(end) + "|" + hex.EncodeToString(h[:8])
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// GetProjectStats implements spec.md §4.C's getProjectStats by walking the
// tree fresh (this Indexer keeps no persistent chunk catalogue beyond what
// the vector store itself holds).
func (idx *Indexer) GetProjectStats(project, rootPath string, patterns, excludes []string) (ProjectStats, error) {
	files, err := walk(rootPath, patterns, excludes)
	if err != nil {
		return ProjectStats{}, err
	}
	stats := ProjectStats{FileCount: len(files), Languages: make(map[string]int)}
	for _, f := range files {
		content, err := readFile(f)
		if err != nil {
			continue
		}
		stats.TotalLines += bytes.Count([]byte(content), []byte("\n")) + 1
		if lang := languageOf(f); lang != "" {
			stats.Languages[lang]++
		}
	}
	idx.mu.Lock()
	if s, ok := idx.statuses[project]; ok {
		stats.LastIndexed = s.LastUpdated
	}
	idx.mu.Unlock()
	return stats, nil
}

func languageOf(path string) string {
	chunks := parser.Parse(path, "placeholder content long enough to classify")
	if len(chunks) > 0 {
		return chunks[0].Language
	}
	return ""
}

func walk(root string, patterns, excludes []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		if matchesAny(rel, excludes) {
			return nil
		}
		if len(patterns) > 0 && !matchesAny(rel, patterns) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	sort.Strings(files)
	return files, err
}

func matchesAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}
