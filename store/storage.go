package store

import (
	"context"
	"database/sql"
	"log"

	"qaforge/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type DocumentStorer interface {
	SaveDocument(context.Context, types.Document) error
	GetDocumentByID(context.Context, uuid.UUID) (*types.Document, error)
	DeleteChunksByDocID(context.Context, uuid.UUID) error
}

type ChunkStorer interface {
	SaveChunk(context.Context, types.Chunk) error
	ListChunksByDoc(context.Context, uuid.UUID) ([]types.Chunk, error)
	SearchChunks(context.Context, []float32, int) ([]types.Chunk, error)
}

type RunStorer interface {
	SaveRun(context.Context, types.GenerationRun) error
	ListRunsByDoc(context.Context, uuid.UUID) ([]types.GenerationRun, error)
}

type CaseStorer interface {
	SaveCase(context.Context, types.TestCase) error
	ListCasesByProject(context.Context, string) ([]types.TestCase, error)
	FindCaseBySignature(context.Context, string, int64) (*types.TestCase, error)
	UpdateCaseTags(context.Context, uuid.UUID, []string) error
	DeleteCase(context.Context, uuid.UUID) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	rows, err := p.pool.Query(ctx, "SELECT id, title, source, source_path, created_at, updated_at, version FROM documents WHERE id = $1", docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}

	doc := &types.Document{}
	if err := rows.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Source,
		&doc.SourcePath,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.Version); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc types.Document) error {
	query := `INSERT INTO documents (id, title, source, source_path, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			source = EXCLUDED.source,
			source_path = EXCLUDED.source_path,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
			`
	_, err := p.pool.Exec(
		ctx,
		query,
		doc.ID,
		doc.Title,
		doc.Source,
		doc.SourcePath,
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.Version,
	)

	return err
}

func (p *PostgresStore) DeleteChunksByDocID(ctx context.Context, docID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM chunks WHERE doc_id = $1", docID)
	return err
}

func (p *PostgresStore) SaveChunk(ctx context.Context, c types.Chunk) error {
	query := `
    INSERT INTO chunks (id, doc_id, chunk_index, section, content, embedding)
    VALUES ($1, $2, $3, $4, $5, $6)
    `
	var embedding any
	if len(c.Embedding) > 0 {
		embedding = pgvector.NewVector(c.Embedding)
	}
	_, err := p.pool.Exec(ctx, query,
		c.ID, c.DocID, c.Index, c.Section, c.Content, embedding,
	)
	return err
}

func (p *PostgresStore) ListChunksByDoc(ctx context.Context, docID uuid.UUID) ([]types.Chunk, error) {
	query := `
	SELECT id, doc_id, chunk_index, section, content
	FROM chunks
	WHERE doc_id = $1
	ORDER BY chunk_index
	`
	rows, err := p.pool.Query(ctx, query, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocID,
			&chunk.Index,
			&chunk.Section,
			&chunk.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) SearchChunks(ctx context.Context, queryVec []float32, limit int) ([]types.Chunk, error) {
	vector := pgvector.NewVector(queryVec)

	query := `
		SELECT pc.id, pc.doc_id, pc.chunk_index, pc.section, pc.content,
		       1-(pc.embedding <=> $1) AS distance
		FROM chunks pc
		WHERE pc.embedding IS NOT NULL
		ORDER BY pc.embedding <=> $1
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, vector, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocID,
			&chunk.Index,
			&chunk.Section,
			&chunk.Content,
			&chunk.Distance); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// SaveRun records a completed (chunk, settings hash) generation. The unique
// index on that pair makes a second concurrent recording a no-op instead of
// double-counting work.
func (p *PostgresStore) SaveRun(ctx context.Context, r types.GenerationRun) error {
	query := `
	INSERT INTO generation_runs (id, chunk_id, doc_id, settings_hash, saved, skipped, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (chunk_id, settings_hash) DO NOTHING
	`
	_, err := p.pool.Exec(ctx, query,
		r.ID, r.ChunkID, r.DocID, r.SettingsHash, r.Saved, r.Skipped, r.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListRunsByDoc(ctx context.Context, docID uuid.UUID) ([]types.GenerationRun, error) {
	query := `
	SELECT id, chunk_id, doc_id, settings_hash, saved, skipped, created_at
	FROM generation_runs
	WHERE doc_id = $1
	ORDER BY created_at
	`
	rows, err := p.pool.Query(ctx, query, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []types.GenerationRun
	for rows.Next() {
		var r types.GenerationRun
		if err := rows.Scan(
			&r.ID,
			&r.ChunkID,
			&r.DocID,
			&r.SettingsHash,
			&r.Saved,
			&r.Skipped,
			&r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (p *PostgresStore) SaveCase(ctx context.Context, tc types.TestCase) error {
	query := `
	INSERT INTO test_cases (id, project_id, doc_id, chunk_id, title, steps, expected, tags, signature, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := p.pool.Exec(ctx, query,
		tc.ID, tc.ProjectID, tc.DocID, tc.ChunkID, tc.Title, tc.Steps, tc.Expected, tc.Tags, tc.Signature, tc.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListCasesByProject(ctx context.Context, projectID string) ([]types.TestCase, error) {
	query := `
	SELECT id, project_id, doc_id, chunk_id, title, steps, expected, tags, signature, created_at
	FROM test_cases
	WHERE project_id = $1
	ORDER BY created_at
	`
	rows, err := p.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []types.TestCase
	for rows.Next() {
		tc, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

func (p *PostgresStore) FindCaseBySignature(ctx context.Context, projectID string, signature int64) (*types.TestCase, error) {
	query := `
	SELECT id, project_id, doc_id, chunk_id, title, steps, expected, tags, signature, created_at
	FROM test_cases
	WHERE project_id = $1 AND signature = $2
	LIMIT 1
	`
	rows, err := p.pool.Query(ctx, query, projectID, signature)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}
	tc, err := scanCase(rows)
	if err != nil {
		return nil, err
	}
	return &tc, nil
}

func (p *PostgresStore) UpdateCaseTags(ctx context.Context, id uuid.UUID, tags []string) error {
	_, err := p.pool.Exec(ctx, "UPDATE test_cases SET tags = $2 WHERE id = $1", id, tags)
	return err
}

func (p *PostgresStore) DeleteCase(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM test_cases WHERE id = $1", id)
	return err
}

func scanCase(rows pgx.Rows) (types.TestCase, error) {
	var tc types.TestCase
	err := rows.Scan(
		&tc.ID,
		&tc.ProjectID,
		&tc.DocID,
		&tc.ChunkID,
		&tc.Title,
		&tc.Steps,
		&tc.Expected,
		&tc.Tags,
		&tc.Signature,
		&tc.CreatedAt)
	return tc, err
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		source TEXT,
		source_path TEXT,
		created_at TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE,
		version INTEGER DEFAULT 1
	);

    CREATE EXTENSION IF NOT EXISTS vector;

    CREATE TABLE IF NOT EXISTS chunks (
        id UUID PRIMARY KEY,
        doc_id UUID NOT NULL,
        chunk_index INT NOT NULL,
        section TEXT,
        content TEXT NOT NULL,
        embedding vector(768)
    );

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);

	CREATE TABLE IF NOT EXISTS generation_runs (
		id UUID PRIMARY KEY,
		chunk_id UUID NOT NULL,
		doc_id UUID NOT NULL,
		settings_hash TEXT NOT NULL,
		saved INT NOT NULL DEFAULT 0,
		skipped INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE
	);

	-- One recording per (chunk, settings) even under concurrent callers.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_chunk_settings ON generation_runs(chunk_id, settings_hash);
	CREATE INDEX IF NOT EXISTS idx_runs_doc_id ON generation_runs(doc_id);

	CREATE TABLE IF NOT EXISTS test_cases (
		id UUID PRIMARY KEY,
		project_id TEXT NOT NULL,
		doc_id UUID,
		chunk_id UUID,
		title TEXT NOT NULL,
		steps TEXT[],
		expected TEXT,
		tags TEXT[],
		signature BIGINT,
		created_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_cases_project ON test_cases(project_id);
	CREATE INDEX IF NOT EXISTS idx_cases_signature ON test_cases(project_id, signature);
    `
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
