package gen

import (
	"context"
	"errors"
	"testing"

	"qaforge/model"
	"qaforge/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChunkStore struct {
	chunks  []types.Chunk
	listErr error
}

func (f *fakeChunkStore) SaveChunk(_ context.Context, c types.Chunk) error {
	f.chunks = append(f.chunks, c)
	return nil
}

func (f *fakeChunkStore) ListChunksByDoc(_ context.Context, docID uuid.UUID) ([]types.Chunk, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []types.Chunk
	for _, c := range f.chunks {
		if c.DocID == docID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChunkStore) SearchChunks(context.Context, []float32, int) ([]types.Chunk, error) {
	return nil, nil
}

type fakeReconciler struct {
	calls   int
	project string
	summary *types.ReconcileSummary
	err     error
}

func (f *fakeReconciler) Reconcile(_ context.Context, projectID string) (*types.ReconcileSummary, error) {
	f.calls++
	f.project = projectID
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

// uniqueCandidates hands every call a fresh, distinct candidate so nothing
// collides during dedup.
func uniqueCandidates() *fakeGenerator {
	n := 0
	titles := []string{
		"Login with valid credentials shows the dashboard",
		"Export quarterly report as a PDF download",
		"Reset forgotten password through the email link",
		"Filter the order list by shipment status",
		"Upload an avatar image larger than the size limit",
		"Archive a project and verify it leaves the active list",
	}
	return &fakeGenerator{
		generate: func(context.Context, string, types.GenerationSettings) ([]model.Candidate, model.Usage, error) {
			title := titles[n%len(titles)]
			n++
			return []model.Candidate{{
				Title: title,
				Steps: []string{"Perform " + title, "Observe the outcome of " + title},
			}}, model.Usage{}, nil
		},
	}
}

type orchestratorFixture struct {
	orch       *Orchestrator
	chunks     *fakeChunkStore
	runs       *fakeRunStore
	cases      *fakeCaseStore
	reconciler *fakeReconciler
	docID      uuid.UUID
}

func newFixture(t *testing.T, chunkCount int) *orchestratorFixture {
	t.Helper()
	docID := uuid.New()
	chunks := &fakeChunkStore{}
	for i := 0; i < chunkCount; i++ {
		chunks.chunks = append(chunks.chunks, types.Chunk{
			ID:      uuid.New(),
			DocID:   docID,
			Index:   i,
			Content: "requirement text",
		})
	}
	runs := &fakeRunStore{}
	cases := &fakeCaseStore{}
	reconciler := &fakeReconciler{summary: &types.ReconcileSummary{DuplicateGroups: 1}}

	orch := NewOrchestrator(chunks, runs, cases, uniqueCandidates(), reconciler).WithPacingDelay(0)
	return &orchestratorFixture{
		orch:       orch,
		chunks:     chunks,
		runs:       runs,
		cases:      cases,
		reconciler: reconciler,
		docID:      docID,
	}
}

func generateParams(docID uuid.UUID) types.GenerateParams {
	return types.GenerateParams{
		DocID:     docID.String(),
		ProjectID: "p1",
		Settings:  &types.GenerationSettings{Model: "gpt-4o-mini"},
	}
}

func TestGenerateMore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject missing input", func(t *testing.T) {
		f := newFixture(t, 2)

		_, err := f.orch.GenerateMore(ctx, types.GenerateParams{})
		assert.ErrorIs(t, err, ErrMissingInput)

		_, err = f.orch.GenerateMore(ctx, types.GenerateParams{DocID: "not-a-uuid", Settings: &types.GenerationSettings{Model: "m"}})
		assert.ErrorIs(t, err, ErrMissingInput)
	})

	t.Run("Should distinguish a never chunked document from a finished one", func(t *testing.T) {
		f := newFixture(t, 0)

		_, err := f.orch.GenerateMore(ctx, generateParams(f.docID))
		assert.ErrorIs(t, err, ErrNoChunks)
	})

	t.Run("Should report success with no work when all chunks are processed", func(t *testing.T) {
		f := newFixture(t, 2)
		params := generateParams(f.docID)
		hash := BuildSettingsHash(*params.Settings)
		for _, c := range f.chunks.chunks {
			f.runs.runs = append(f.runs.runs, types.GenerationRun{
				ID: uuid.New(), ChunkID: c.ID, DocID: f.docID, SettingsHash: hash,
			})
		}

		resp, err := f.orch.GenerateMore(ctx, params)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.Message)
		assert.Empty(t, resp.Results)
		assert.Equal(t, 2, resp.TotalChunks)
	})

	t.Run("Should process at most the batch limit per call", func(t *testing.T) {
		f := newFixture(t, 5)

		resp, err := f.orch.GenerateMore(ctx, generateParams(f.docID))
		require.NoError(t, err)

		assert.Equal(t, 3, resp.ProcessedChunks)
		assert.Equal(t, 2, resp.RemainingChunks)
		assert.Equal(t, 5, resp.TotalChunks)
		assert.Len(t, resp.Results, 3)
		assert.Equal(t, 3, resp.Saved)
		assert.Len(t, f.runs.runs, 3)
	})

	t.Run("Should honor a caller supplied batch limit", func(t *testing.T) {
		f := newFixture(t, 5)
		params := generateParams(f.docID)
		params.MaxChunksPerCall = 2

		resp, err := f.orch.GenerateMore(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.ProcessedChunks)
		assert.Equal(t, 3, resp.RemainingChunks)
	})

	t.Run("Should drain a document in successive calls", func(t *testing.T) {
		f := newFixture(t, 7)
		params := generateParams(f.docID)

		var calls int
		for {
			calls++
			require.LessOrEqual(t, calls, 10, "generation loop did not terminate")

			resp, err := f.orch.GenerateMore(ctx, params)
			require.NoError(t, err)
			if resp.RemainingChunks == 0 && resp.ProcessedChunks == 0 {
				break
			}
		}

		// ceil(7/3) batches plus the final empty confirmation call.
		assert.Equal(t, 4, calls)
		assert.Len(t, f.runs.runs, 7)
	})

	t.Run("Should use caller supplied chunks and runs", func(t *testing.T) {
		f := newFixture(t, 0)
		params := generateParams(f.docID)
		hash := BuildSettingsHash(*params.Settings)

		c0 := types.Chunk{ID: uuid.New(), DocID: f.docID, Index: 0, Content: "chunk zero"}
		c1 := types.Chunk{ID: uuid.New(), DocID: f.docID, Index: 1, Content: "chunk one"}
		params.Chunks = []types.Chunk{c0, c1}
		params.Runs = []types.GenerationRun{{ID: uuid.New(), ChunkID: c0.ID, DocID: f.docID, SettingsHash: hash}}

		resp, err := f.orch.GenerateMore(ctx, params)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, c1.ID, resp.Results[0].ChunkID)
	})

	t.Run("Should capture chunk failures in results without failing the call", func(t *testing.T) {
		f := newFixture(t, 2)
		gen := &fakeGenerator{
			generate: func(context.Context, string, types.GenerationSettings) ([]model.Candidate, model.Usage, error) {
				return nil, model.Usage{}, errors.New("rate limited")
			},
		}
		f.orch = NewOrchestrator(f.chunks, f.runs, f.cases, gen, f.reconciler).WithPacingDelay(0)

		resp, err := f.orch.GenerateMore(ctx, generateParams(f.docID))
		require.NoError(t, err)

		require.Len(t, resp.Results, 2)
		for _, r := range resp.Results {
			assert.Equal(t, "rate limited", r.Error)
		}
		assert.Equal(t, 0, resp.Saved)
		assert.Empty(t, f.runs.runs, "failed chunks stay unprocessed and get retried")
	})

	t.Run("Should reconcile once the last chunk of a document completes", func(t *testing.T) {
		f := newFixture(t, 2)

		resp, err := f.orch.GenerateMore(ctx, generateParams(f.docID))
		require.NoError(t, err)

		assert.Equal(t, 0, resp.RemainingChunks)
		assert.Equal(t, 1, f.reconciler.calls)
		assert.Equal(t, "p1", f.reconciler.project)
		require.NotNil(t, resp.Reconciliation)
		assert.Equal(t, 1, resp.Reconciliation.DuplicateGroups)
	})

	t.Run("Should not reconcile while chunks remain", func(t *testing.T) {
		f := newFixture(t, 5)

		_, err := f.orch.GenerateMore(ctx, generateParams(f.docID))
		require.NoError(t, err)
		assert.Equal(t, 0, f.reconciler.calls)
	})

	t.Run("Should not reconcile when nothing was saved", func(t *testing.T) {
		f := newFixture(t, 1)
		gen := &fakeGenerator{
			generate: func(context.Context, string, types.GenerationSettings) ([]model.Candidate, model.Usage, error) {
				return nil, model.Usage{}, nil
			},
		}
		f.orch = NewOrchestrator(f.chunks, f.runs, f.cases, gen, f.reconciler).WithPacingDelay(0)

		resp, err := f.orch.GenerateMore(ctx, generateParams(f.docID))
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Saved)
		assert.Equal(t, 0, f.reconciler.calls)
	})

	t.Run("Should suppress reconciliation failures", func(t *testing.T) {
		f := newFixture(t, 1)
		f.reconciler.err = errors.New("reconcile blew up")

		resp, err := f.orch.GenerateMore(ctx, generateParams(f.docID))
		require.NoError(t, err, "generation already succeeded, reconciliation failure must not undo that")
		assert.Equal(t, 1, resp.Saved)
		assert.Nil(t, resp.Reconciliation)
	})

	t.Run("Should skip reconciliation without a project id", func(t *testing.T) {
		f := newFixture(t, 1)
		params := generateParams(f.docID)
		params.ProjectID = ""

		_, err := f.orch.GenerateMore(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, 0, f.reconciler.calls)
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Should report progress without generating", func(t *testing.T) {
		f := newFixture(t, 4)
		params := generateParams(f.docID)
		hash := BuildSettingsHash(*params.Settings)
		f.runs.runs = append(f.runs.runs, types.GenerationRun{
			ID: uuid.New(), ChunkID: f.chunks.chunks[0].ID, DocID: f.docID, SettingsHash: hash,
		})

		status, err := f.orch.Status(ctx, f.docID, hash)
		require.NoError(t, err)

		assert.Equal(t, 4, status.TotalChunks)
		assert.Equal(t, 3, status.RemainingChunks)
		assert.Equal(t, 1, status.ProcessedChunks)
		assert.True(t, status.CanGenerateMore)
		assert.Empty(t, f.cases.cases)
	})

	t.Run("Should report done when no chunks remain", func(t *testing.T) {
		f := newFixture(t, 1)
		hash := "h1"
		f.runs.runs = append(f.runs.runs, types.GenerationRun{
			ID: uuid.New(), ChunkID: f.chunks.chunks[0].ID, DocID: f.docID, SettingsHash: hash,
		})

		status, err := f.orch.Status(ctx, f.docID, hash)
		require.NoError(t, err)
		assert.False(t, status.CanGenerateMore)
		assert.Equal(t, 0, status.RemainingChunks)
	})
}
