package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-1.5-flash"
	defaultTimeout       = 60 * time.Second
)

// ExtractionPrompt is sent with every document.
const ExtractionPrompt = "Extract all text from this FAA knowledge test report. " +
	"Return the plain text exactly as printed, preserving line breaks, including the applicant name, " +
	"test name, score, date, and every Airman Certification Standards (ACS) code listed. " +
	"Do not summarize or add commentary."

type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GeminiExtractor calls the Gemini generateContent REST endpoint with the file inlined as base64.
type GeminiExtractor struct {
	apiKey     string
	model      string
	baseURL    string
	reqTimeout time.Duration
	httpClient *http.Client
}

func NewGeminiExtractor(cfg GeminiConfig) *GeminiExtractor {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &GeminiExtractor{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		reqTimeout: cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}
}

func (g *GeminiExtractor) Model() string {
	return g.model
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	ModelVersion string `json:"modelVersion"`
}

func (g *GeminiExtractor) Extract(ctx context.Context, req Request) Result {
	log := logger.FromContext(ctx).With("file_id", req.FileID, "model", g.model)

	if _, err := os.Stat(req.FilePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Failure(req.FileID, KindProcessing, "File not found")
		}
		return Failure(req.FileID, KindProcessing, fmt.Sprintf("Failed to access file: %v", err))
	}
	if g.apiKey == "" {
		return Failure(req.FileID, KindProcessing, "OCR API key is not configured")
	}

	data, err := os.ReadFile(req.FilePath)
	if err != nil {
		return Failure(req.FileID, KindProcessing, fmt.Sprintf("Failed to read file: %v", err))
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: ExtractionPrompt},
				{InlineData: &geminiInlineData{
					MimeType: MimeTypeFromPath(req.FilePath),
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return Failure(req.FileID, KindProcessing, fmt.Sprintf("encode request: %v", err))
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return Failure(req.FileID, KindProcessing, fmt.Sprintf("create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.do(httpReq)
	if err != nil {
		kind := ClassifyTransportError(err)
		log.Warn("gemini request failed", "error", err, "kind", kind.String())
		return Failure(req.FileID, kind, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := g.decodeAPIError(resp)
		kind := ClassifyStatus(resp.StatusCode)
		log.Warn("gemini api error", "status", resp.StatusCode, "error", apiErr, "kind", kind.String())
		return Failure(req.FileID, kind, apiErr.Error())
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Failure(req.FileID, KindProcessing, fmt.Sprintf("decode gemini response: %v", err))
	}

	if out.PromptFeedback.BlockReason != "" {
		return Failure(req.FileID, KindProcessing, "Request blocked by OCR provider: "+out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return Failure(req.FileID, KindProcessing, "OCR provider returned no candidates")
	}

	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Failure(req.FileID, KindProcessing, "OCR provider returned empty text")
	}

	model := g.model
	if out.ModelVersion != "" {
		model = out.ModelVersion
	}
	return Success(req.FileID, text, model)
}

func (g *GeminiExtractor) do(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), g.reqTimeout)
	req = req.WithContext(ctx)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// APIError is a non-2xx response from the OCR provider.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini api error: status %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini api error: status %d: %s", e.StatusCode, e.Message)
}

func (g *GeminiExtractor) decodeAPIError(resp *http.Response) *APIError {
	var apiErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Status: apiErr.Error.Status, Message: apiErr.Error.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

// ClassifyStatus maps an HTTP status from the provider to an ErrorKind.
func ClassifyStatus(code int) ErrorKind {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return KindUnavailable
	}
	return KindProcessing
}

// ClassifyTransportError maps a client side failure (no HTTP response) to an ErrorKind.
func ClassifyTransportError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindUnavailable
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return KindUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindUnavailable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindUnavailable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnavailable
	}
	return KindProcessing
}
