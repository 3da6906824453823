package types

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Chunk is a contiguous slice of a source document's text. Chunks for a
// document are ordered by Index and never change once stored.
type Chunk struct {
	ID        uuid.UUID `json:"id"`
	DocID     uuid.UUID `json:"doc_id"`
	Index     int       `json:"index"`
	Section   string    `json:"section,omitempty"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	Distance  float64   `json:"distance,omitempty"`
}

type Document struct {
	ID         uuid.UUID
	Title      string
	Chunks     []Chunk
	Source     string
	SourcePath string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int
}

// GenerationSettings configures one AI generation request. Two values that
// are field-for-field equal must produce the same settings hash.
type GenerationSettings struct {
	Model            string  `json:"model" validate:"required"`
	Temperature      float64 `json:"temperature"`
	MaxCases         int     `json:"max_cases"`
	Instructions     string  `json:"instructions"`
	CoverageMode     string  `json:"coverage_mode"`
	IncludeNegative  bool    `json:"include_negative"`
	IncludeEdgeCases bool    `json:"include_edge_cases"`
}

// GenerationRun records that a chunk has been processed under a settings
// hash. Saved/Skipped are kept so the selector can compute per-chunk yield.
type GenerationRun struct {
	ID           uuid.UUID `json:"id"`
	ChunkID      uuid.UUID `json:"chunk_id"`
	DocID        uuid.UUID `json:"doc_id"`
	SettingsHash string    `json:"settings_hash"`
	Saved        int       `json:"saved"`
	Skipped      int       `json:"skipped"`
	CreatedAt    time.Time `json:"created_at"`
}

// TestCase is a generated QA test case. Signature holds the simhash bits
// (stored as int64); cases without a signature never take part in
// duplicate reconciliation.
type TestCase struct {
	ID        uuid.UUID     `json:"id"`
	ProjectID string        `json:"project_id"`
	DocID     uuid.UUID     `json:"doc_id"`
	ChunkID   uuid.UUID     `json:"chunk_id"`
	Title     string        `json:"title"`
	Steps     []string      `json:"steps"`
	Expected  string        `json:"expected,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	Signature sql.NullInt64 `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// ChunkResult is the outcome of generating from one chunk. Error is set
// instead of aborting the batch.
type ChunkResult struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	ChunkIndex int       `json:"chunk_index"`
	Saved      int       `json:"saved"`
	Skipped    int       `json:"skipped"`
	Reused     int       `json:"reused"`
	Error      string    `json:"error,omitempty"`
}

// ReconcileSummary reports one reconciliation pass over a project.
type ReconcileSummary struct {
	DuplicateGroups int              `json:"duplicate_groups"`
	CasesRemoved    int              `json:"cases_removed"`
	CasesMerged     int              `json:"cases_merged"`
	Groups          []DuplicateGroup `json:"groups,omitempty"`
}

// DuplicateGroup is a computed grouping of near-identical cases. It is a
// result of a reconciliation pass, never stored.
type DuplicateGroup struct {
	KeepID       uuid.UUID   `json:"keep_id"`
	DuplicateIDs []uuid.UUID `json:"duplicate_ids"`
}
