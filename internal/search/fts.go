package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/normanking/glance/internal/data"
	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/pkg/types"
)

const elementSchema = `
CREATE TABLE IF NOT EXISTS elements (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    identity    TEXT NOT NULL,
    app         TEXT NOT NULL,
    type        TEXT NOT NULL,
    text        TEXT NOT NULL,
    x           REAL,
    y           REAL,
    w           REAL,
    h           REAL,
    captured_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_elements_identity ON elements(identity);
CREATE INDEX IF NOT EXISTS idx_elements_captured ON elements(captured_at);

CREATE VIRTUAL TABLE IF NOT EXISTS elements_fts USING fts5(
    text,
    content='elements',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS elements_ai AFTER INSERT ON elements BEGIN
    INSERT INTO elements_fts(rowid, text) VALUES (new.id, new.text);
END;

CREATE TRIGGER IF NOT EXISTS elements_ad AFTER DELETE ON elements BEGIN
    INSERT INTO elements_fts(elements_fts, rowid, text) VALUES ('delete', old.id, old.text);
END;
`

const (
	defaultLimit     = 10
	resultCacheSize  = 64
	resultCacheTTL   = 2 * time.Second
)

// cachedHits is one memoized search result.
type cachedHits struct {
	hits    []types.SearchHit
	storedAt time.Time
}

// FTSIndex is the local SQLite FTS5 element index. Snapshots are replaced
// wholesale per identity on every cache update, mirroring the cache's
// replace-not-mutate semantics.
type FTSIndex struct {
	db           *sql.DB
	log          *logging.Logger
	recentWindow time.Duration
	results      *lru.Cache[string, cachedHits]
	now          func() time.Time
}

// IndexConfig configures the FTS element index.
type IndexConfig struct {
	// DBPath is the SQLite file path; "" selects an in-memory index.
	DBPath string
	// RecentWindow bounds RecentOnly searches (default 10m).
	RecentWindow time.Duration
}

// NewFTSIndex opens (or creates) the element index.
func NewFTSIndex(cfg IndexConfig) (*FTSIndex, error) {
	db, err := data.Open(cfg.DBPath, "glance_elements")
	if err != nil {
		return nil, fmt.Errorf("open element index: %w", err)
	}

	if _, err := db.Exec(elementSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize element schema: %w", err)
	}

	results, err := lru.New[string, cachedHits](resultCacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create result cache: %w", err)
	}

	recentWindow := cfg.RecentWindow
	if recentWindow <= 0 {
		recentWindow = 10 * time.Minute
	}

	return &FTSIndex{
		db:           db,
		log:          logging.Global().WithComponent("ElementIndex"),
		recentWindow: recentWindow,
		results:      results,
		now:          time.Now,
	}, nil
}

// Close releases the underlying database.
func (x *FTSIndex) Close() error {
	return x.db.Close()
}

// IndexSnapshot replaces the indexed elements for an identity with a fresh
// snapshot. Elements without text contribute nothing to ranked search and
// are skipped.
func (x *FTSIndex) IndexSnapshot(ctx context.Context, identity, app string, capturedAt time.Time, elements []types.Element) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM elements WHERE identity = ?", identity); err != nil {
		return fmt.Errorf("clear previous snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO elements (identity, app, type, text, x, y, w, h, captured_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, el := range elements {
		text := strings.TrimSpace(el.Text)
		if text == "" {
			text = strings.TrimSpace(el.Value)
		}
		if text == "" {
			continue
		}

		var xPos, yPos, w, h sql.NullFloat64
		if el.Bounds != nil {
			xPos = sql.NullFloat64{Float64: el.Bounds.X, Valid: true}
			yPos = sql.NullFloat64{Float64: el.Bounds.Y, Valid: true}
			w = sql.NullFloat64{Float64: el.Bounds.Width, Valid: true}
			h = sql.NullFloat64{Float64: el.Bounds.Height, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, identity, app, string(el.Type), text, xPos, yPos, w, h, capturedAt); err != nil {
			return fmt.Errorf("insert element: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	// A new snapshot invalidates memoized results.
	x.results.Purge()

	x.log.Debug("indexed %d elements for %s", inserted, identity)
	return nil
}

// Search performs bm25-ranked full-text search over indexed elements.
func (x *FTSIndex) Search(ctx context.Context, query string, opts Options) ([]types.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}

	cacheKey := fmt.Sprintf("%s|%s|%v|%d|%.2f", query, opts.App, opts.RecentOnly, opts.Limit, opts.MinScore)
	if cached, ok := x.results.Get(cacheKey); ok && x.now().Sub(cached.storedAt) < resultCacheTTL {
		return cached.hits, nil
	}

	ftsQuery, err := prepareFTSQuery(query)
	if err != nil {
		return nil, fmt.Errorf("invalid search query: %w", err)
	}

	sqlQuery, args := x.buildSearchQuery(ftsQuery, opts)

	rows, err := x.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	hits := make([]types.SearchHit, 0, opts.Limit)
	for rows.Next() {
		hit, err := scanHit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if hit.Score < opts.MinScore {
			continue
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}

	x.results.Add(cacheKey, cachedHits{hits: hits, storedAt: x.now()})
	return hits, nil
}

// buildSearchQuery constructs the SQL query with filters and ranking.
func (x *FTSIndex) buildSearchQuery(ftsQuery string, opts Options) (string, []any) {
	args := []any{ftsQuery}

	query := `
SELECT e.type, e.text, e.x, e.y, e.w, e.h, bm25(elements_fts) AS bm25_score
FROM elements_fts
JOIN elements e ON elements_fts.rowid = e.id
WHERE elements_fts MATCH ?`

	if opts.App != "" {
		query += "\nAND e.app = ?"
		args = append(args, opts.App)
	}
	if opts.RecentOnly {
		query += "\nAND e.captured_at >= ?"
		args = append(args, x.now().Add(-x.recentWindow))
	}

	// bm25 scores are negative (lower is better).
	query += "\nORDER BY bm25(elements_fts) ASC\nLIMIT ?"
	args = append(args, opts.Limit)

	return query, args
}

// scanHit parses a row into a SearchHit.
func scanHit(rows *sql.Rows) (types.SearchHit, error) {
	var (
		hit        types.SearchHit
		elType     string
		xPos, yPos sql.NullFloat64
		w, h       sql.NullFloat64
		bm25Score  float64
	)

	if err := rows.Scan(&elType, &hit.Text, &xPos, &yPos, &w, &h, &bm25Score); err != nil {
		return hit, err
	}

	hit.Type = types.ElementType(elType)
	hit.Score = normalizeBM25(bm25Score)
	if xPos.Valid && yPos.Valid && w.Valid && h.Valid {
		hit.Bounds = &types.BoundingBox{X: xPos.Float64, Y: yPos.Float64, Width: w.Float64, Height: h.Float64}
	}

	return hit, nil
}

// normalizeBM25 converts a raw bm25 score into a 0.0 - 1.0 relevance.
// bm25 scores are negative, typically in [-10, 0].
func normalizeBM25(score float64) float64 {
	const maxBM25 = 10.0
	normalized := (-score) / maxBM25
	if normalized < 0 {
		return 0
	}
	if normalized > 1 {
		return 1
	}
	return normalized
}

// prepareFTSQuery escapes special FTS5 characters and prepares the query.
// Multi-term queries without explicit operators are OR-joined for recall.
func prepareFTSQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query cannot be empty")
	}

	var result strings.Builder
	inQuote := false

	for i := 0; i < len(query); i++ {
		char := query[i]
		switch char {
		case '"':
			inQuote = !inQuote
			result.WriteByte(char)
		case '*', '(', ')', '{', '}', '[', ']', '^', ':', '\'', '?', '!', ',', '.':
			if !inQuote {
				result.WriteByte(' ')
			} else {
				result.WriteByte(char)
			}
		default:
			result.WriteByte(char)
		}
	}

	ftsQuery := strings.TrimSpace(result.String())
	if ftsQuery == "" {
		return "", fmt.Errorf("query reduced to nothing after escaping")
	}

	upper := strings.ToUpper(ftsQuery)
	if !strings.Contains(upper, " AND ") && !strings.Contains(upper, " OR ") {
		terms := strings.Fields(ftsQuery)
		if len(terms) > 1 {
			ftsQuery = strings.Join(terms, " OR ")
		}
	}

	return ftsQuery, nil
}
