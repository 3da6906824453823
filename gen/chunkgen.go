package gen

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"qaforge/dedup"
	"qaforge/model"
	"qaforge/store"
	"qaforge/types"

	"github.com/google/uuid"
)

// ChunkRequest is one unit of generation work.
type ChunkRequest struct {
	Chunk        types.Chunk
	ProjectID    string
	Settings     types.GenerationSettings
	SettingsHash string
	OnProgress   func(step string)
}

// ChunkGenerator turns one chunk into persisted test cases. It never
// returns an error to the caller: failures are captured in the result so a
// batch can move on to the next chunk.
type ChunkGenerator struct {
	generator model.Generator
	cases     store.CaseStorer
	runs      store.RunStorer
	threshold int
}

func NewChunkGenerator(generator model.Generator, cases store.CaseStorer, runs store.RunStorer, hammingThreshold int) *ChunkGenerator {
	if hammingThreshold <= 0 {
		hammingThreshold = dedup.DefaultHammingThreshold
	}
	return &ChunkGenerator{
		generator: generator,
		cases:     cases,
		runs:      runs,
		threshold: hammingThreshold,
	}
}

func (g *ChunkGenerator) Generate(ctx context.Context, req ChunkRequest) types.ChunkResult {
	result := types.ChunkResult{
		ChunkID:    req.Chunk.ID,
		ChunkIndex: req.Chunk.Index,
	}

	progress(req.OnProgress, "generating")

	candidates, _, err := g.generator.Generate(ctx, req.Chunk.Content, req.Settings)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	progress(req.OnProgress, "deduplicating")

	existing, err := g.projectSignatures(ctx, req.ProjectID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	now := time.Now().UTC()
	var created []uint64
	for _, candidate := range candidates {
		tc := types.TestCase{
			ID:        uuid.New(),
			ProjectID: req.ProjectID,
			DocID:     req.Chunk.DocID,
			ChunkID:   req.Chunk.ID,
			Title:     candidate.Title,
			Steps:     candidate.Steps,
			Expected:  candidate.Expected,
			Tags:      candidate.Tags,
			CreatedAt: now,
		}
		sig := dedup.CaseFingerprint(tc)
		tc.Signature = sql.NullInt64{Int64: int64(sig), Valid: true}

		// Candidates from this same call are checked first so an in-call
		// repeat counts as skipped, not as reuse of a pre-existing artifact.
		// An exact match against the stored project means the case already
		// exists and is reused as-is; near-identical stored cases are skipped.
		if withinThreshold(created, sig, g.threshold) {
			result.Skipped++
			continue
		}
		switch g.classify(ctx, req.ProjectID, sig, existing) {
		case matchExact:
			result.Reused++
			continue
		case matchNear:
			result.Skipped++
			continue
		}

		if err := g.cases.SaveCase(ctx, tc); err != nil {
			// Persistence failure fails the chunk, not the batch. Counts are
			// reset so the caller sees the chunk as "not done".
			log.Printf("[CHUNKGEN] save case for chunk %s failed after %d saved: %v", req.Chunk.ID, result.Saved, err)
			return types.ChunkResult{
				ChunkID:    req.Chunk.ID,
				ChunkIndex: req.Chunk.Index,
				Error:      err.Error(),
			}
		}
		created = append(created, sig)
		result.Saved++
	}

	progress(req.OnProgress, "recording")

	run := types.GenerationRun{
		ID:           uuid.New(),
		ChunkID:      req.Chunk.ID,
		DocID:        req.Chunk.DocID,
		SettingsHash: req.SettingsHash,
		Saved:        result.Saved,
		Skipped:      result.Skipped,
		CreatedAt:    now,
	}
	if err := g.runs.SaveRun(ctx, run); err != nil {
		result.Error = err.Error()
		return result
	}

	progress(req.OnProgress, "done")
	return result
}

type matchKind int

const (
	matchNone matchKind = iota
	matchExact
	matchNear
)

func (g *ChunkGenerator) classify(ctx context.Context, projectID string, sig uint64, existing []uint64) matchKind {
	if found, err := g.cases.FindCaseBySignature(ctx, projectID, int64(sig)); err == nil && found != nil {
		return matchExact
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Printf("[CHUNKGEN] signature lookup failed, treating candidate as new: %v", err)
	}

	for _, known := range existing {
		if known == sig {
			return matchExact
		}
		if dedup.Hamming(known, sig) <= g.threshold {
			return matchNear
		}
	}
	return matchNone
}

func withinThreshold(sigs []uint64, sig uint64, threshold int) bool {
	for _, known := range sigs {
		if dedup.Hamming(known, sig) <= threshold {
			return true
		}
	}
	return false
}

func (g *ChunkGenerator) projectSignatures(ctx context.Context, projectID string) ([]uint64, error) {
	cases, err := g.cases.ListCasesByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sigs := make([]uint64, 0, len(cases))
	for _, tc := range cases {
		if tc.Signature.Valid {
			sigs = append(sigs, uint64(tc.Signature.Int64))
		}
	}
	return sigs, nil
}

// progress notifications are best effort and must never take the pipeline
// down with them.
func progress(fn func(string), step string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[CHUNKGEN] progress callback panicked on %q: %v", step, r)
		}
	}()
	fn(step)
}
