package dto

import (
	"time"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

// UploadFileResult is one entry of the batch upload response.
// OriginalName is the client-supplied form key.
type UploadFileResult struct {
	Success      bool   `json:"success"`
	OriginalName string `json:"originalName"`
	FileID       string `json:"fileId,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

type UploadBatchResponse struct {
	Files          []UploadFileResult `json:"files"`
	OverallSuccess bool               `json:"overallSuccess"`
}

type UploadResponse struct {
	ID           string              `json:"id"`
	OriginalName string              `json:"originalName"`
	MimeType     string              `json:"mimeType"`
	Size         int64               `json:"size"`
	Status       models.UploadStatus `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListUploadsQuery binds GET /uploads. Out of range values are clamped, not rejected.
type ListUploadsQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

func (q ListUploadsQuery) Normalize() (page, pageSize int) {
	page, pageSize = q.Page, q.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

type UploadListResponse struct {
	Uploads    []UploadResponse `json:"uploads"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

func NewUploadResponse(u *models.Upload) UploadResponse {
	return UploadResponse{
		ID:           u.ID,
		OriginalName: u.OriginalName,
		MimeType:     u.MimeType,
		Size:         u.Size,
		Status:       u.Status,
		CreatedAt:    u.CreatedAt,
	}
}

// OcrStatusResponse is returned by the OCR result endpoint. Result is nil while
// the upload is still queued or processing.
type OcrStatusResponse struct {
	FileID string              `json:"fileId"`
	Status models.UploadStatus `json:"status"`
	Result *OcrResultResponse  `json:"result,omitempty"`
}

func (r *OcrStatusResponse) Pending() bool {
	return r.Result == nil &&
		(r.Status == models.UploadStatusQueued || r.Status == models.UploadStatusProcessing)
}

type OcrResultResponse struct {
	Status          string    `json:"status"`
	RawText         string    `json:"rawText,omitempty"`
	OcrErrorMessage string    `json:"ocrErrorMessage,omitempty"`
	GeminiModelUsed string    `json:"geminiModelUsed,omitempty"`
	Attempts        int       `json:"attempts"`
	CompletedAt     time.Time `json:"completedAt"`
}

func NewOcrResultResponse(r *models.OcrResult) *OcrResultResponse {
	return &OcrResultResponse{
		Status:          r.Status,
		RawText:         r.RawText,
		OcrErrorMessage: r.ErrorMessage,
		GeminiModelUsed: r.ModelUsed,
		Attempts:        r.Attempts,
		CompletedAt:     r.CompletedAt,
	}
}
