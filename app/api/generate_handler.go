package api

import (
	"context"
	"errors"

	"qaforge/gen"
	"qaforge/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// GenerateOrchestrator is what the handler needs from the generation core.
type GenerateOrchestrator interface {
	GenerateMore(ctx context.Context, params types.GenerateParams) (*types.GenerateResponse, error)
	Status(ctx context.Context, docID uuid.UUID, settingsHash string) (*types.GenerationStatus, error)
}

type GenerateHandler struct {
	orch GenerateOrchestrator
}

func NewGenerateHandler(orch GenerateOrchestrator) *GenerateHandler {
	return &GenerateHandler{
		orch: orch,
	}
}

// HandleGenerate runs one generate-more batch. The caller always gets a
// structured response, with per-chunk failures reported inside it.
func (h *GenerateHandler) HandleGenerate(c *fiber.Ctx) error {
	var params types.GenerateParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	resp, err := h.orch.GenerateMore(c.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, gen.ErrMissingInput):
			return ErrMissingInput(err.Error())
		case errors.Is(err, gen.ErrNoChunks):
			return ErrNeverChunked(params.DocID)
		default:
			return err
		}
	}

	return c.JSON(resp)
}

// HandleStatus reports progress for a document + settings hash without
// generating anything.
func (h *GenerateHandler) HandleStatus(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Query("doc_id"))
	if err != nil {
		return ErrInvalidID()
	}
	settingsHash := c.Query("settings_hash")
	if settingsHash == "" {
		return ErrMissingInput("settings_hash is required")
	}

	status, err := h.orch.Status(c.Context(), docID, settingsHash)
	if err != nil {
		return err
	}

	return c.JSON(status)
}
