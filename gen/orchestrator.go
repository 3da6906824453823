package gen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"qaforge/model"
	"qaforge/store"
	"qaforge/types"

	"github.com/google/uuid"
)

const (
	// DefaultMaxChunksPerCall bounds how many chunks one generate call may
	// process.
	DefaultMaxChunksPerCall = 3

	// DefaultPacingDelay sits between successive chunk calls to stay inside
	// provider rate limits.
	DefaultPacingDelay = 500 * time.Millisecond
)

var (
	// ErrMissingInput means the request lacked a document id or settings.
	ErrMissingInput = errors.New("doc_id and settings are required")

	// ErrNoChunks means the document was never chunked; distinct from "all
	// chunks already processed", which is a normal empty result.
	ErrNoChunks = errors.New("no chunks found for document")
)

// ProjectReconciler is the duplicate-reconciliation hook the orchestrator
// fires after the last chunk of a document completes.
type ProjectReconciler interface {
	Reconcile(ctx context.Context, projectID string) (*types.ReconcileSummary, error)
}

// Orchestrator drives generate-more batches: it selects the chunks still
// needing generation and processes a bounded batch of them strictly
// sequentially.
type Orchestrator struct {
	chunks     store.ChunkStorer
	runs       store.RunStorer
	chunkGen   *ChunkGenerator
	reconciler ProjectReconciler

	maxChunksPerCall int
	pacingDelay      time.Duration
	logger           *slog.Logger
}

func NewOrchestrator(chunks store.ChunkStorer, runs store.RunStorer, cases store.CaseStorer, generator model.Generator, reconciler ProjectReconciler) *Orchestrator {
	return &Orchestrator{
		chunks:           chunks,
		runs:             runs,
		chunkGen:         NewChunkGenerator(generator, cases, runs, 0),
		reconciler:       reconciler,
		maxChunksPerCall: DefaultMaxChunksPerCall,
		pacingDelay:      DefaultPacingDelay,
		logger:           slog.Default(),
	}
}

// WithPacingDelay overrides the delay between chunk calls.
func (o *Orchestrator) WithPacingDelay(d time.Duration) *Orchestrator {
	o.pacingDelay = d
	return o
}

// GenerateMore processes the next batch of unprocessed chunks for a
// document under the given settings. Per-chunk failures are reported in
// the results, never raised; only bad input and a never-chunked document
// are errors.
func (o *Orchestrator) GenerateMore(ctx context.Context, params types.GenerateParams) (*types.GenerateResponse, error) {
	if params.DocID == "" || params.Settings == nil {
		return nil, ErrMissingInput
	}
	docID, err := uuid.Parse(params.DocID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid doc_id %q", ErrMissingInput, params.DocID)
	}

	settingsHash := BuildSettingsHash(*params.Settings)

	allChunks := params.Chunks
	if len(allChunks) == 0 {
		allChunks, err = o.chunks.ListChunksByDoc(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("list chunks for document %s: %w", docID, err)
		}
	}
	if len(allChunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, docID)
	}

	runs := params.Runs
	if runs == nil {
		runs, err = o.runs.ListRunsByDoc(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("list runs for document %s: %w", docID, err)
		}
	}

	remaining := SelectRemaining(allChunks, runs, settingsHash, params.Prioritize(), 0)
	if len(remaining) == 0 {
		return &types.GenerateResponse{
			Success:     true,
			Message:     "all chunks already processed with these settings",
			TotalChunks: len(allChunks),
			Results:     []types.ChunkResult{},
		}, nil
	}

	maxChunks := params.MaxChunksPerCall
	if maxChunks <= 0 {
		maxChunks = o.maxChunksPerCall
	}
	batch := remaining
	if len(batch) > maxChunks {
		batch = batch[:maxChunks]
	}

	o.logger.Info("processing generation batch",
		"doc", docID,
		"settings_hash", settingsHash,
		"batch", len(batch),
		"remaining", len(remaining))

	resp := &types.GenerateResponse{
		Success:     true,
		TotalChunks: len(allChunks),
		Results:     make([]types.ChunkResult, 0, len(batch)),
	}

	// One chunk at a time. Sequential processing keeps the remaining-count
	// bookkeeping consistent and respects provider rate limits.
	for i, chunk := range batch {
		if i > 0 && o.pacingDelay > 0 {
			time.Sleep(o.pacingDelay)
		}

		result := o.chunkGen.Generate(ctx, ChunkRequest{
			Chunk:        chunk,
			ProjectID:    params.ProjectID,
			Settings:     *params.Settings,
			SettingsHash: settingsHash,
		})
		if result.Error != "" {
			o.logger.Warn("chunk generation failed", "chunk", chunk.ID, "error", result.Error)
		}

		resp.Results = append(resp.Results, result)
		resp.Saved += result.Saved
		resp.Skipped += result.Skipped
		resp.Reused += result.Reused
	}

	resp.ProcessedChunks = len(batch)
	resp.RemainingChunks = len(remaining) - len(batch)
	if resp.RemainingChunks < 0 {
		resp.RemainingChunks = 0
	}

	// The batch that finishes the document triggers one reconciliation
	// pass. A failing pass is logged and omitted: the generation work
	// already succeeded.
	if resp.Saved > 0 && resp.RemainingChunks == 0 && o.reconciler != nil && params.ProjectID != "" {
		summary, err := o.reconciler.Reconcile(ctx, params.ProjectID)
		if err != nil {
			o.logger.Error("reconciliation after final batch failed", "project", params.ProjectID, "error", err)
		} else {
			resp.Reconciliation = summary
		}
	}

	return resp, nil
}

// Status reports generation progress for a document + settings hash
// without doing any work.
func (o *Orchestrator) Status(ctx context.Context, docID uuid.UUID, settingsHash string) (*types.GenerationStatus, error) {
	chunks, err := o.chunks.ListChunksByDoc(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks for document %s: %w", docID, err)
	}
	runs, err := o.runs.ListRunsByDoc(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("list runs for document %s: %w", docID, err)
	}

	remaining := SelectRemaining(chunks, runs, settingsHash, false, 0)

	status := &types.GenerationStatus{
		TotalChunks:     len(chunks),
		RemainingChunks: len(remaining),
		ProcessedChunks: len(chunks) - len(remaining),
		CanGenerateMore: len(remaining) > 0,
	}
	return status, nil
}
