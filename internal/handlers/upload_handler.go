package handlers

import (
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/middleware"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services/dto"
	"github.com/marcusgoll/cfipros-web-sub000/pkg/apperrors"
)

type UploadHandler struct {
	*BaseHandler
	uploadService    services.UploadService
	ocrResultService services.OcrResultService
	maxRequestBytes  int64
}

func NewUploadHandler(
	base *BaseHandler,
	uploadService services.UploadService,
	ocrResultService services.OcrResultService,
	maxRequestBytes int64,
) *UploadHandler {
	return &UploadHandler{
		BaseHandler:      base,
		uploadService:    uploadService,
		ocrResultService: ocrResultService,
		maxRequestBytes:  maxRequestBytes,
	}
}

func (h *UploadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	protected := rg.Group("")
	protected.Use(h.RequireAuth())

	limit := middleware.MaxBodySize(h.maxRequestBytes)
	protected.POST("/test-upload", limit, h.UploadFiles)
	protected.POST("/uploads", limit, h.UploadFiles)

	protected.GET("/uploads", h.ListUploads)
	protected.GET("/uploads/:fileId/ocr", h.GetOcrResult)
}

// UploadFiles godoc
// @Summary Upload a batch of documents for OCR
// @Description Every form entry gets its own result. The response is 200 even when entries fail.
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UploadBatchResponse
// @Failure 500 {object} apperrors.ErrorResponse "Form missing, malformed or too large"
// @Router /uploads [post]
// @Router /test-upload [post]
func (h *UploadHandler) UploadFiles(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := h.uploadService.PrepareTempDir(ctx); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		logger.CtxWithError(ctx, "failed to parse multipart form", err)
		apperrors.HandleError(c, apperrors.ErrInvalidUploadForm.WithError(err))
		return
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			logger.CtxWarn(ctx, "failed to remove multipart temp files", "error", err)
		}
	}()

	resp := h.uploadService.ProcessUpload(ctx, h.GetDB(c), userID, entriesFromForm(form.File, form.Value))
	c.JSON(http.StatusOK, resp)
}

// ListUploads godoc
// @Summary List the caller's uploads
// @Tags uploads
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page, from 1"
// @Param page_size query int false "Page size, at most 100"
// @Success 200 {object} dto.UploadListResponse
// @Failure 400 {object} apperrors.ErrorResponse
// @Router /uploads [get]
func (h *UploadHandler) ListUploads(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var query dto.ListUploadsQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}
	page, pageSize := query.Normalize()

	resp, err := h.uploadService.ListUploads(c.Request.Context(), h.GetDB(c), userID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetOcrResult godoc
// @Summary Get the OCR outcome of an upload
// @Description Returns 202 while the job is queued or processing.
// @Tags uploads
// @Produce json
// @Security BearerAuth
// @Param fileId path string true "Upload ID"
// @Success 200 {object} dto.OcrStatusResponse
// @Success 202 {object} dto.OcrStatusResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /uploads/{fileId}/ocr [get]
func (h *UploadHandler) GetOcrResult(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.ocrResultService.GetOcrStatus(c.Request.Context(), h.GetDB(c), userID, c.Param("fileId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	if resp.Pending() {
		c.JSON(http.StatusAccepted, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// entriesFromForm flattens the form in key order. Plain values become entries
// without a file so they are reported back rather than silently skipped.
func entriesFromForm(files map[string][]*multipart.FileHeader, values map[string][]string) []services.UploadEntry {
	keys := make([]string, 0, len(files)+len(values))
	seen := make(map[string]struct{}, len(files)+len(values))
	for k := range files {
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range values {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var entries []services.UploadEntry
	for _, k := range keys {
		for _, fh := range files[k] {
			entries = append(entries, services.UploadEntry{Key: k, File: fh})
		}
		for range values[k] {
			entries = append(entries, services.UploadEntry{Key: k})
		}
	}
	return entries
}
