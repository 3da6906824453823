package api

import (
	"context"

	"qaforge/store"
	"qaforge/types"

	"github.com/gofiber/fiber/v2"
)

// CaseReconciler runs duplicate reconciliation for a project, with a
// read-only preview variant.
type CaseReconciler interface {
	Reconcile(ctx context.Context, projectID string) (*types.ReconcileSummary, error)
	Preview(ctx context.Context, projectID string) (*types.ReconcileSummary, error)
}

type ReconcileHandler struct {
	// build returns a reconciler for the requested Hamming threshold;
	// zero means the default.
	build func(threshold int) CaseReconciler
	cases store.CaseStorer
}

func NewReconcileHandler(build func(threshold int) CaseReconciler, cases store.CaseStorer) *ReconcileHandler {
	return &ReconcileHandler{
		build: build,
		cases: cases,
	}
}

// HandleReconcile collapses near-duplicate test cases within a project.
// With ?preview=true it reports the grouping without removing anything.
func (h *ReconcileHandler) HandleReconcile(c *fiber.Ctx) error {
	var params types.ReconcileParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	reconciler := h.build(params.HammingThreshold)

	var summary *types.ReconcileSummary
	var err error
	if c.QueryBool("preview") {
		summary, err = reconciler.Preview(c.Context(), params.ProjectID)
	} else {
		summary, err = reconciler.Reconcile(c.Context(), params.ProjectID)
	}
	if err != nil {
		return err
	}

	return c.JSON(summary)
}

// HandleListCases returns the stored test cases of a project.
func (h *ReconcileHandler) HandleListCases(c *fiber.Ctx) error {
	projectID := c.Params("id")
	if projectID == "" {
		return ErrInvalidID()
	}

	cases, err := h.cases.ListCasesByProject(c.Context(), projectID)
	if err != nil {
		return err
	}
	if cases == nil {
		cases = []types.TestCase{}
	}

	return c.JSON(cases)
}
