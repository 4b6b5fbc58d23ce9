package models

import (
	"time"
)

// Upload tracks a file accepted by the upload endpoint. ID is the server side fileId.
type Upload struct {
	BaseModel
	UserID       string       `gorm:"type:uuid;not null;index" json:"userId"`
	ClientKey    string       `json:"clientKey"`
	OriginalName string       `json:"originalName"`
	TempPath     string       `json:"-"`
	ArchivePath  string       `json:"archivePath,omitempty"`
	MimeType     string       `json:"mimeType"`
	Size         int64        `json:"size"`
	Status       UploadStatus `gorm:"type:varchar(20);not null;default:'queued';index" json:"status"`
}

// OcrResult is the durable outcome of OCR for one upload.
type OcrResult struct {
	BaseModel
	FileID       string     `gorm:"type:uuid;uniqueIndex;not null" json:"fileId"`
	UserID       string     `gorm:"type:uuid;index;not null" json:"userId"`
	Status       string     `gorm:"type:varchar(32);not null" json:"status"`
	RawText      string     `gorm:"type:text" json:"rawText,omitempty"`
	ErrorMessage string     `json:"ocrErrorMessage,omitempty"`
	ErrorKind    string     `gorm:"type:varchar(32)" json:"errorKind,omitempty"`
	ModelUsed    string     `json:"geminiModelUsed,omitempty"`
	Attempts     int        `json:"attempts"`
	CompletedAt  time.Time  `json:"completedAt"`
	ArchivedAt   *time.Time `json:"archivedAt,omitempty"`
}
