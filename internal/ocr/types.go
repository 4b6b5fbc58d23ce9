package ocr

// Status is the externally visible outcome of OCR for one file.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusProcessingError Status = "error_ocr_processing"
	StatusAPIUnavailable  Status = "error_api_unavailable"
)

// ErrorKind classifies a failed extraction. The orchestrator retries on Retryable kinds only.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindProcessing covers bad input, missing files and API rejections.
	KindProcessing
	// KindUnavailable covers network failures, timeouts, rate limits and 5xx responses.
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindProcessing:
		return "processing"
	case KindUnavailable:
		return "unavailable"
	}
	return "none"
}

func (k ErrorKind) Retryable() bool {
	return k == KindUnavailable
}

func (k ErrorKind) Status() Status {
	switch k {
	case KindProcessing:
		return StatusProcessingError
	case KindUnavailable:
		return StatusAPIUnavailable
	}
	return StatusSuccess
}

// Request identifies the file to extract text from.
type Request struct {
	FileID       string
	FilePath     string
	OriginalName string
	UserID       string
}

type Result struct {
	FileID       string    `json:"fileId"`
	Status       Status    `json:"status"`
	RawText      string    `json:"rawText,omitempty"`
	ErrorMessage string    `json:"ocrErrorMessage,omitempty"`
	Kind         ErrorKind `json:"-"`
	ModelUsed    string    `json:"geminiModelUsed,omitempty"`
	Attempts     int       `json:"attempts"`
}

func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

func Success(fileID, text, model string) Result {
	return Result{
		FileID:    fileID,
		Status:    StatusSuccess,
		RawText:   text,
		Kind:      KindNone,
		ModelUsed: model,
	}
}

func Failure(fileID string, kind ErrorKind, message string) Result {
	if kind == KindNone {
		kind = KindProcessing
	}
	return Result{
		FileID:       fileID,
		Status:       kind.Status(),
		ErrorMessage: message,
		Kind:         kind,
	}
}
