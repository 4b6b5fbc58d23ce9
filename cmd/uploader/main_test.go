package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcusgoll/cfipros-web-sub000/internal/uploadqueue"
)

// uploadServer accepts every file part and echoes its form key.
func uploadServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/test-upload", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var out uploadqueue.BatchResult
		for key := range r.MultipartForm.File {
			out.Files = append(out.Files, uploadqueue.FileResult{Success: true, OriginalName: key, FileID: "f-" + key})
		}
		out.OverallSuccess = true
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func TestRun_UploadsSniffedFiles(t *testing.T) {
	srv := uploadServer(t, http.StatusOK)
	defer srv.Close()
	path := writeFile(t, "report.bin", pdfBytes)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-server", srv.URL, "-token", "tok", path}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "OK   "+path)
	assert.Equal(t, 1, strings.Count(stdout.String(), "progress: 100%"))
}

func TestRun_PrintsProgressWhileUploading(t *testing.T) {
	srv := uploadServer(t, http.StatusOK)
	defer srv.Close()
	big := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte{' '}, 256<<10)...)
	path := writeFile(t, "big.pdf", big)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-server", srv.URL, "-token", "tok", path}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	var progress []string
	for _, l := range lines {
		if strings.HasPrefix(l, "progress: ") {
			progress = append(progress, l)
		}
	}
	require.Greater(t, len(progress), 1, stdout.String())
	assert.Equal(t, "progress: 100%", progress[len(progress)-1])
}

func TestRun_InvalidTypeFails(t *testing.T) {
	srv := uploadServer(t, http.StatusOK)
	defer srv.Close()
	good := writeFile(t, "report.pdf", pdfBytes)
	bad := writeFile(t, "notes.txt", []byte("just some text"))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-server", srv.URL, "-token", "tok", good, bad}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Invalid file type")
	assert.Contains(t, stdout.String(), "FAIL "+bad)
	assert.Contains(t, stdout.String(), "OK   "+good)
}

func TestRun_ServerErrorFailsEveryFile(t *testing.T) {
	srv := uploadServer(t, http.StatusInternalServerError)
	defer srv.Close()
	path := writeFile(t, "report.pdf", pdfBytes)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-server", srv.URL, "-token", "tok", path}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "FAIL "+path)
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage")
}

func TestRun_MissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-token", "tok", filepath.Join(t.TempDir(), "nope.pdf")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
}
