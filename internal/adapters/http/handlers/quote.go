package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/print-quote-service/internal/app"
	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
)

// QuoteHandler handles quote-related HTTP endpoints.
type QuoteHandler struct {
	service *app.QuoteService
	tempDir string
	save    func(c *gin.Context, fh *multipart.FileHeader, dst string) error
}

// NewQuoteHandler creates a new quote handler. Uploads are staged under
// tempDir before analysis.
func NewQuoteHandler(service *app.QuoteService, tempDir string) *QuoteHandler {
	return &QuoteHandler{
		service: service,
		tempDir: tempDir,
		save: func(c *gin.Context, fh *multipart.FileHeader, dst string) error {
			return c.SaveUploadedFile(fh, dst)
		},
	}
}

// Upload handles POST /api/v1/quotes/upload.
// Form fields are checked before any file is written; staged files are
// removed by the service if the submission is rejected later.
//
// @Summary Upload meshes and create a quote
// @Tags quotes
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "STL files"
// @Param materials formData []string true "Material per file"
// @Param quantities formData []int true "Quantity per file"
// @Param customer_email formData string false "Customer email"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/v1/quotes/upload [post]
func (h *QuoteHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			dto.HandleError(c, err)
			return
		}

		respondBadRequest(c, "request must be multipart/form-data with a files field")

		return
	}

	files := form.File[dto.FormFiles]
	materials := form.Value[dto.FormMaterials]
	quantities := form.Value[dto.FormQuantities]

	if len(files) != len(materials) || len(files) != len(quantities) {
		dto.HandleError(c, domain.NewValidationError("files",
			"Number of files, materials, and quantities must match"))
		return
	}

	sub := app.Submission{
		Uploads:       make([]app.Upload, len(files)),
		CustomerEmail: strings.TrimSpace(firstValue(form.Value[dto.FormCustomerEmail])),
	}

	for i, fh := range files {
		material, err := domain.ParseMaterial(materials[i])
		if err != nil {
			dto.HandleError(c, domain.NewValidationErrorWithValue(dto.FormMaterials,
				"Invalid material type: "+materials[i], materials[i]))
			return
		}

		quantity, err := strconv.Atoi(strings.TrimSpace(quantities[i]))
		if err != nil {
			dto.HandleError(c, domain.NewValidationErrorWithValue(dto.FormQuantities,
				"Quantity must be an integer, got: "+quantities[i], quantities[i]))
			return
		}

		sub.Uploads[i] = app.Upload{
			Filename: fh.Filename,
			Material: material,
			Quantity: quantity,
		}
	}

	if err := h.service.Precheck(sub); err != nil {
		dto.HandleError(c, err)
		return
	}

	limits, _ := h.service.Limits()
	for _, fh := range files {
		if limits.MaxFileSize > 0 && fh.Size > limits.MaxFileSize {
			respondError(c, dto.ErrorCodePayloadTooLarge,
				fmt.Sprintf("File %s too large. Maximum size: %d bytes", fh.Filename, limits.MaxFileSize))
			return
		}
	}

	ctx := c.Request.Context()

	for i, fh := range files {
		path, err := h.stage(c, fh)
		sub.Uploads[i].Path = path

		if err != nil {
			h.discard(ctx, sub.Paths())
			dto.HandleError(c, fmt.Errorf("staging %s: %w", fh.Filename, err))

			return
		}
	}

	quote, err := h.service.Submit(ctx, sub)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// stage writes an uploaded file to a collision-free name in the temp dir.
// The path is returned even when saving fails, since a partial file may
// already be on disk.
func (h *QuoteHandler) stage(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	if err := c.Request.Context().Err(); err != nil {
		return "", err
	}

	path := filepath.Join(h.tempDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := h.save(c, fh, path); err != nil {
		return path, err
	}

	return path, nil
}

func (h *QuoteHandler) discard(ctx context.Context, paths []string) {
	if err := h.service.Discard(context.WithoutCancel(ctx), paths...); err != nil {
		logging.FromContext(ctx).Warn("failed to discard staged uploads", slog.Any("error", err))
	}
}

// Get handles GET /api/v1/quotes/:quote_id.
// Expired quotes are reported as 410 Gone.
//
// @Summary Get a quote
// @Tags quotes
// @Produce json
// @Param quote_id path string true "Quote ID"
// @Success 200 {object} dto.QuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 410 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{quote_id} [get]
func (h *QuoteHandler) Get(c *gin.Context) {
	quote, err := h.service.Active(c.Request.Context(), c.Param("quote_id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// Breakdown handles GET /api/v1/quotes/:quote_id/breakdown.
//
// @Summary Get the pricing breakdown of a quote
// @Tags quotes
// @Produce json
// @Param quote_id path string true "Quote ID"
// @Success 200 {object} dto.BreakdownResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 410 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{quote_id}/breakdown [get]
func (h *QuoteHandler) Breakdown(c *gin.Context) {
	breakdown, err := h.service.Breakdown(c.Request.Context(), c.Param("quote_id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewBreakdownResponse(breakdown))
}

// List handles GET /api/v1/quotes.
//
// @Summary List quotes, newest first
// @Tags quotes
// @Produce json
// @Param customer_email query string false "Filter by customer email"
// @Param limit query int false "Page size (1-100)"
// @Param offset query int false "Items to skip"
// @Success 200 {object} dto.PaginatedResponse[dto.QuoteSummaryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) List(c *gin.Context) {
	var req dto.ListQuotesRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	filter := req.Filter()

	summaries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(
		dto.NewQuoteSummaryResponses(summaries), filter.Limit, filter.Offset))
}

// Update handles POST /api/v1/quotes/:quote_id/update.
//
// @Summary Change quantities or materials of files in a quote
// @Tags quotes
// @Accept json
// @Produce json
// @Param quote_id path string true "Quote ID"
// @Param body body dto.UpdateQuoteRequest true "File updates"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 410 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{quote_id}/update [post]
func (h *QuoteHandler) Update(c *gin.Context) {
	var req dto.UpdateQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	changes := make([]app.LineItemChange, 0, len(req.FileUpdates))
	for _, u := range req.FileUpdates {
		change := app.LineItemChange{Filename: u.Filename, Quantity: u.Quantity}

		if u.Material != nil {
			m, err := domain.ParseMaterial(*u.Material)
			if err != nil {
				dto.HandleError(c, err)
				return
			}

			change.Material = &m
		}

		changes = append(changes, change)
	}

	quote, err := h.service.Update(c.Request.Context(), c.Param("quote_id"), changes)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(quote))
}

// Delete handles DELETE /api/v1/quotes/:quote_id.
//
// @Summary Delete a quote
// @Tags quotes
// @Produce json
// @Param quote_id path string true "Quote ID"
// @Success 200 {object} dto.DeleteQuoteResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/quotes/{quote_id} [delete]
func (h *QuoteHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("quote_id")); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeleteQuoteResponse{Message: "Quote deleted successfully"})
}

// RegisterQuoteRoutes registers quote routes on the given router group.
// Config routes are registered separately by ConfigHandler under the same
// /quotes prefix; gin resolves the static /config segment before :quote_id.
func (h *QuoteHandler) RegisterQuoteRoutes(rg *gin.RouterGroup) {
	quotes := rg.Group("/quotes")
	quotes.POST("/upload", h.Upload)
	quotes.GET("", h.List)
	quotes.GET("/:quote_id", h.Get)
	quotes.GET("/:quote_id/breakdown", h.Breakdown)
	quotes.POST("/:quote_id/update", h.Update)
	quotes.DELETE("/:quote_id", h.Delete)
}

// respondBindError writes field errors for validation failures and a plain
// BAD_REQUEST for bodies that could not be decoded.
func respondBindError(c *gin.Context, err error) {
	if dto.IsValidationError(err) {
		resp := dto.NewErrorResponseWithDetails(
			dto.ErrorCodeValidation,
			"request validation failed",
			dto.ValidationErrors(err),
		).WithTraceID(dto.GetTraceID(c))
		c.JSON(http.StatusBadRequest, resp)

		return
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		dto.HandleError(c, err)
		return
	}

	respondBadRequest(c, "malformed request")
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, dto.ErrorCodeBadRequest, message)
}

func respondError(c *gin.Context, code, message string) {
	c.JSON(dto.HTTPStatusFromCode(code),
		dto.NewErrorResponse(code, message).WithTraceID(dto.GetTraceID(c)))
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
