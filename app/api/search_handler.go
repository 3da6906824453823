package api

import (
	"context"
	"log"

	"qaforge/model"
	"qaforge/store"
	"qaforge/types"

	"github.com/gofiber/fiber/v2"
)

const minDistance = 0.55 // lowest similarity still considered relevant

type SearchHandler struct {
	chunks   store.ChunkStorer
	docs     store.DocumentStorer
	embedder model.EmbedderInterface
}

func NewSearchHandler(chunks store.ChunkStorer, docs store.DocumentStorer, embedder model.EmbedderInterface) *SearchHandler {
	return &SearchHandler{
		chunks:   chunks,
		docs:     docs,
		embedder: embedder,
	}
}

// HandleSearch finds ingested document chunks semantically close to the
// query, so an author can locate the requirement text behind a test case.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var params types.SearchParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 5
	}

	embedded, err := h.embedder.Embed(params.Query)
	if err != nil {
		return err
	}

	chunks, err := h.chunks.SearchChunks(c.Context(), embedded, limit)
	if err != nil {
		log.Printf("[SEARCH] chunk search failed: %v", err)
		return err
	}

	resp := types.SearchResponse{Results: []types.SearchHit{}}
	for _, chunk := range chunks {
		if chunk.Distance < minDistance {
			log.Printf("[SEARCH] filtered chunk with distance=%.4f (less than %.2f)", chunk.Distance, minDistance)
			continue
		}
		hit, err := h.formatHit(c.Context(), chunk)
		if err != nil {
			return err
		}
		resp.Results = append(resp.Results, hit)
	}

	return c.JSON(resp)
}

func (h *SearchHandler) formatHit(ctx context.Context, chunk types.Chunk) (types.SearchHit, error) {
	doc, err := h.docs.GetDocumentByID(ctx, chunk.DocID)
	if err != nil {
		return types.SearchHit{}, err
	}

	return types.SearchHit{
		DocID:     chunk.DocID.String(),
		Title:     doc.Title,
		ChunkText: chunk.Content,
		Index:     chunk.Index,
		Distance:  chunk.Distance,
	}, nil
}
