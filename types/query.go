package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

// GenerateParams is the generate-more request body. Chunks and Runs let the
// caller supply its own view of the document instead of the store's.
type GenerateParams struct {
	DocID                     string              `json:"doc_id" validate:"required"`
	ProjectID                 string              `json:"project_id"`
	Settings                  *GenerationSettings `json:"settings" validate:"required"`
	MaxChunksPerCall          int                 `json:"max_chunks_per_call"`
	UseCoveragePrioritization *bool               `json:"use_coverage_prioritization"`
	Chunks                    []Chunk             `json:"chunks,omitempty"`
	Runs                      []GenerationRun     `json:"runs,omitempty"`
}

func (params *GenerateParams) Validate() map[string]string {
	return validateStruct(params)
}

// Prioritize resolves the coverage-prioritization flag, defaulting to true.
func (params *GenerateParams) Prioritize() bool {
	if params.UseCoveragePrioritization == nil {
		return true
	}
	return *params.UseCoveragePrioritization
}

type GenerateResponse struct {
	Success         bool              `json:"success"`
	Message         string            `json:"message,omitempty"`
	ProcessedChunks int               `json:"processed_chunks"`
	RemainingChunks int               `json:"remaining_chunks"`
	TotalChunks     int               `json:"total_chunks"`
	Saved           int               `json:"saved"`
	Skipped         int               `json:"skipped"`
	Reused          int               `json:"reused"`
	Results         []ChunkResult     `json:"results"`
	Reconciliation  *ReconcileSummary `json:"reconciliation,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// GenerationStatus is the read-only counterpart of GenerateResponse: it
// reports progress for a document+settings pair without generating anything.
type GenerationStatus struct {
	TotalChunks     int  `json:"total_chunks"`
	RemainingChunks int  `json:"remaining_chunks"`
	ProcessedChunks int  `json:"processed_chunks"`
	CanGenerateMore bool `json:"can_generate_more"`
}

type ReconcileParams struct {
	ProjectID        string `json:"project_id" validate:"required"`
	HammingThreshold int    `json:"hamming_threshold"`
}

func (params *ReconcileParams) Validate() map[string]string {
	return validateStruct(params)
}

type SearchParams struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit"`
}

func (params *SearchParams) Validate() map[string]string {
	return validateStruct(params)
}

type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

type SearchHit struct {
	DocID     string  `json:"doc_id"`
	Title     string  `json:"title"`
	ChunkText string  `json:"chunk_text"`
	Index     int     `json:"index"`
	Distance  float64 `json:"distance"`
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}
