package neo4j

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Options struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
	// Timeout bounds writes, parent lookups and resolver reads. Searches are
	// bounded by the caller.
	Timeout time.Duration
}

// Store is the graph-backed case study store. It owns one driver pool for
// the lifetime of the process.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	logger   *slog.Logger
}

// Open creates the driver and verifies connectivity before returning.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(opts.URI) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open graph store", errors.New("neo4j uri is empty"))
	}
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.User, opts.Password, ""), func(cfg *neo4j.Config) {
		if opts.MaxPoolSize > 0 {
			cfg.MaxConnectionPoolSize = opts.MaxPoolSize
		}
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "create neo4j driver", err)
	}

	store := NewWithDriver(driver, opts.Database, opts.Timeout, logger)
	if err := store.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return store, nil
}

func NewWithDriver(driver neo4j.DriverWithContext, database string, timeout time.Duration, logger *slog.Logger) *Store {
	if database == "" {
		database = "neo4j"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		driver:   driver,
		database: database,
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *Store) VerifyConnectivity(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "verify neo4j connectivity", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureIndexes runs each schema statement in its own auto-commit
// transaction so a partially provisioned schema can be completed by a retry.
func (s *Store) EnsureIndexes(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "ensure indexes", fmt.Errorf("dimension must be positive, got %d", dimension))
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, stmt := range indexStatements(dimension) {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			return provisioningError(stmt, err)
		}
	}
	s.logger.Info("indexes_ensured", "dimension", dimension, "database", s.database)
	return nil
}

func (s *Store) UpsertChunk(ctx context.Context, rec domain.ChunkRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	params := map[string]any{
		"case_id":    rec.CaseID,
		"title":      rec.Title,
		"url":        rec.URL,
		"chunk_id":   rec.ChunkID,
		"text":       rec.Text,
		"order":      int64(rec.Order),
		"char_start": int64(rec.CharStart),
		"char_end":   int64(rec.CharEnd),
	}
	query := upsertChunkWithoutEmbeddingQuery
	if len(rec.Embedding) > 0 {
		query = upsertChunkQuery
		params["embedding"] = embeddingParam(rec.Embedding)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return storeError("upsert chunk", err)
	}
	return nil
}

func (s *Store) SearchLexical(ctx context.Context, query string, limit int) ([]domain.ScoredChunk, error) {
	escaped := EscapeLucene(strings.TrimSpace(query))
	if escaped == "" || limit <= 0 {
		return nil, nil
	}
	return s.searchChunks(ctx, "lexical search", lexicalSearchQuery(), map[string]any{
		"q": escaped,
		"k": int64(limit),
	})
}

func (s *Store) SearchVector(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return nil, nil
	}
	return s.searchChunks(ctx, "vector search", vectorSearchQuery(), map[string]any{
		"qvec": embeddingParam(queryVector),
		"k":    int64(limit),
	})
}

func (s *Store) searchChunks(ctx context.Context, operation, query string, params map[string]any) ([]domain.ScoredChunk, error) {
	records, err := s.read(ctx, query, params)
	if err != nil {
		return nil, storeError(operation, err)
	}
	out := make([]domain.ScoredChunk, 0, len(records))
	for _, record := range records {
		hit := scoredChunkFromRecord(record)
		if hit.ChunkID == "" {
			continue
		}
		out = append(out, hit)
	}
	return out, nil
}

// CaseStudiesByChunkIDs resolves the owning case study of each chunk in one
// round trip. Chunks without a parent are absent from the result.
func (s *Store) CaseStudiesByChunkIDs(ctx context.Context, chunkIDs []string) (map[string]domain.CaseStudy, error) {
	out := make(map[string]domain.CaseStudy, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}
	lctx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, err := s.read(lctx, parentsByChunkIDsQuery(), map[string]any{"ids": chunkIDs})
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.ErrStoreUnavailable, "lookup parents", err)
		}
		return nil, storeError("lookup parents", err)
	}
	for _, record := range records {
		m := record.AsMap()
		chunkID := asString(m["chunk_id"])
		if _, seen := out[chunkID]; seen {
			continue
		}
		out[chunkID] = domain.CaseStudy{
			CaseID: asString(m["case_id"]),
			Title:  asString(m["title"]),
			URL:    asString(m["url"]),
		}
	}
	return out, nil
}

func (s *Store) FindCaseStudy(ctx context.Context, caseID string) (*domain.CaseStudySnapshot, error) {
	return s.findSnapshot(ctx, "find case study", caseStudyByIDQuery(), map[string]any{"cid": caseID})
}

func (s *Store) FindCaseStudyByChunk(ctx context.Context, chunkID string) (*domain.CaseStudySnapshot, error) {
	return s.findSnapshot(ctx, "find case study by chunk", caseStudyByChunkQuery(), map[string]any{"chid": chunkID})
}

func (s *Store) findSnapshot(ctx context.Context, operation, query string, params map[string]any) (*domain.CaseStudySnapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, err := s.read(ctx, query, params)
	if err != nil {
		return nil, storeError(operation, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return snapshotFromRecord(records[0]), nil
}

func (s *Store) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]*neo4j.Record)
	return records, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// storeError keeps caller cancellation visible and classifies everything
// else as a store outage.
func storeError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return domain.WrapError(domain.ErrStoreUnavailable, operation, err)
}

func provisioningError(stmt string, err error) error {
	op := "ensure index " + indexName(stmt)
	if neo4j.IsConnectivityError(err) {
		return fmt.Errorf("%s: %w: %w: %w", op, domain.ErrIndexProvisioning, domain.ErrStoreUnavailable, err)
	}
	return domain.WrapError(domain.ErrIndexProvisioning, op, err)
}

func indexName(stmt string) string {
	fields := strings.Fields(stmt)
	for i, field := range fields {
		if field == "INDEX" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return "unknown"
}
