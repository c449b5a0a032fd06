// Package retrieval finds uploaded-document passages relevant to a chapter
// using pgvector cosine similarity.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lamim/uxie/internal/api"
)

// Scope selects the chunks a course may draw on: those of the course
// itself plus any explicitly referenced documents
type Scope struct {
	CourseID    string
	DocumentIDs []string
}

// Empty reports whether the scope cannot match any chunk
func (s Scope) Empty() bool {
	return s.CourseID == "" && len(s.DocumentIDs) == 0
}

// ContextRetriever returns passages for retrieval-augmented generation
type ContextRetriever interface {
	Retrieve(ctx context.Context, scope Scope, query string, topK int, threshold float64) ([]string, error)
	HasDocuments(ctx context.Context, scope Scope) (bool, error)
}

// Querier is the subset of pgxpool.Pool used by the retriever
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRetriever queries a pgvector table of document chunks
type PGRetriever struct {
	db       Querier
	embedder api.Embedder
	table    string
	logger   *slog.Logger
}

// New creates a retriever over an existing connection
func New(db Querier, embedder api.Embedder, table string, logger *slog.Logger) *PGRetriever {
	if table == "" {
		table = "document_chunks"
	}
	return &PGRetriever{
		db:       db,
		embedder: embedder,
		table:    pgx.Identifier{table}.Sanitize(),
		logger:   logger.With("component", "retrieval"),
	}
}

// Connect opens a connection pool for dsn
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to retrieval database: %w", err)
	}
	return pool, nil
}

// HasDocuments reports whether any chunk falls in scope
func (r *PGRetriever) HasDocuments(ctx context.Context, scope Scope) (bool, error) {
	if scope.Empty() {
		return false, nil
	}
	sql := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE course_id::text = $1 OR document_id::text = ANY($2))`, r.table)

	var exists bool
	if err := r.db.QueryRow(ctx, sql, scope.CourseID, docIDs(scope)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check documents: %w", err)
	}
	return exists, nil
}

// Retrieve returns up to topK chunk texts whose cosine similarity to the
// query is at least threshold, most similar first
func (r *PGRetriever) Retrieve(ctx context.Context, scope Scope, query string, topK int, threshold float64) ([]string, error) {
	if scope.Empty() || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding model returned no vector")
	}

	sql := fmt.Sprintf(`SELECT content, 1 - (embedding <=> $1::vector) AS similarity
FROM %s
WHERE (course_id::text = $2 OR document_id::text = ANY($3))
  AND 1 - (embedding <=> $1::vector) >= $4
ORDER BY embedding <=> $1::vector
LIMIT $5`, r.table)

	rows, err := r.db.Query(ctx, sql, VectorLiteral(vectors[0]), scope.CourseID, docIDs(scope), threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	var passages []string
	for rows.Next() {
		var (
			content    string
			similarity float64
		)
		if err := rows.Scan(&content, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		passages = append(passages, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}

	r.logger.Debug("Retrieved context", "course_id", scope.CourseID, "passages", len(passages))
	return passages, nil
}

// VectorLiteral formats v in pgvector's text representation
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func docIDs(s Scope) []string {
	if s.DocumentIDs == nil {
		return []string{}
	}
	return s.DocumentIDs
}

// NopRetriever is used when retrieval is disabled
type NopRetriever struct{}

func (NopRetriever) Retrieve(context.Context, Scope, string, int, float64) ([]string, error) {
	return nil, nil
}

func (NopRetriever) HasDocuments(context.Context, Scope) (bool, error) { return false, nil }
