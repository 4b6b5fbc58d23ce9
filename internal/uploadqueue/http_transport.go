package uploadqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
	"time"
)

const defaultUploadTimeout = 5 * time.Minute

// HTTPTransport streams files to the upload endpoint as one multipart request.
// Each part is named by its client id and carries the original file name.
type HTTPTransport struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewHTTPTransport(endpoint, token string, httpClient *http.Client) *HTTPTransport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultUploadTimeout}
	}
	return &HTTPTransport{
		endpoint:   endpoint,
		token:      token,
		httpClient: httpClient,
	}
}

// ServerError is a non-200 answer from the upload endpoint.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("upload failed: status %d: %s", e.StatusCode, e.Message)
}

func (t *HTTPTransport) Upload(ctx context.Context, files map[string]File, onProgress ProgressFunc) (*BatchResult, error) {
	if onProgress == nil {
		onProgress = func(string, int) {}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	written := make(chan struct{})
	go func() {
		defer close(written)
		pw.CloseWithError(writeParts(mw, files, onProgress))
	}()
	// onProgress is never called after Upload returns.
	defer func() {
		pr.Close()
		<-written
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeServerError(resp)
	}

	var out BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &out, nil
}

func writeParts(mw *multipart.Writer, files map[string]File, onProgress ProgressFunc) error {
	ids := make([]string, 0, len(files))
	for id := range files {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := writePart(mw, id, files[id], onProgress); err != nil {
			return err
		}
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writePart(mw *multipart.Writer, clientID string, f File, onProgress ProgressFunc) error {
	if f.Open == nil {
		return fmt.Errorf("file %q has no content", f.Name)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(clientID), quoteEscaper.Replace(f.Name)))
	contentType := f.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part for %q: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %q: %w", f.Name, err)
	}
	defer src.Close()

	onProgress(clientID, 0)
	pw := &progressWriter{w: part, total: f.Size, report: func(p int) { onProgress(clientID, p) }}
	if _, err := io.Copy(pw, src); err != nil {
		return fmt.Errorf("write %q: %w", f.Name, err)
	}
	onProgress(clientID, 100)
	return nil
}

type progressWriter struct {
	w       io.Writer
	total   int64
	written int64
	last    int
	report  func(percent int)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.total > 0 {
		pct := int(p.written * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}

// decodeServerError reads either {"error": {"message": ...}} or {"error": "..."}.
func decodeServerError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var s string
		var obj struct {
			Message string `json:"message"`
		}
		switch {
		case json.Unmarshal(envelope.Error, &s) == nil && s != "":
			msg = s
		case json.Unmarshal(envelope.Error, &obj) == nil && obj.Message != "":
			msg = obj.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &ServerError{StatusCode: resp.StatusCode, Message: msg}
}
