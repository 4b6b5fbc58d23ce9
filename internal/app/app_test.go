package app

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcusgoll/cfipros-web-sub000/database"
	"github.com/marcusgoll/cfipros-web-sub000/internal/config"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services/dto"
	"github.com/marcusgoll/cfipros-web-sub000/internal/uploadqueue"
)

const testWebhookSecret = "whsec_integration"

type testServer struct {
	server *httptest.Server
	cfg    *config.Config
}

// newTestServer wires the full application against TEST_DATABASE_URL with a
// fake Gemini endpoint that always reads the same text.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"AKTR PLT 72%"}]},"finishReason":"STOP"}],"modelVersion":"gemini-test"}`)
	}))
	t.Cleanup(gemini.Close)

	t.Setenv("SERVER_ENV", "test")
	t.Setenv("DATABASE_URL", dsn)
	t.Setenv("JWT_SECRET", "integration-secret")
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_BASE_URL", gemini.URL)
	t.Setenv("OCR_QUEUE", "memory")
	t.Setenv("UPLOAD_TEMP_DIR", filepath.Join(t.TempDir(), "uploads"))
	t.Setenv("STORAGE_TYPE", "local")
	t.Setenv("STORAGE_BASE_PATH", filepath.Join(t.TempDir(), "archive"))

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	db, err := database.Connect(cfg.Database.DSN, false)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	ctx, cancel := context.WithCancel(context.Background())
	router, bg, err := SetupRouter(ctx, cfg, db)
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		bg.stop()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &testServer{server: srv, cfg: cfg}
}

func (ts *testServer) sendRequest(t *testing.T, method, path, token string, body []byte, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, out
}

func (ts *testServer) signup(t *testing.T) *dto.AuthResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"email":    uuid.NewString() + "@example.com",
		"password": "correct-horse",
		"fullName": "Integration Pilot",
		"role":     "student",
	})
	res, out := ts.sendRequest(t, http.MethodPost, "/api/v1/auth/signup", "", body, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(out))

	var auth dto.AuthResponse
	require.NoError(t, json.Unmarshal(out, &auth))
	return &auth
}

func TestUploadToOcrResult(t *testing.T) {
	ts := newTestServer(t)
	auth := ts.signup(t)

	pdf := filepath.Join(t.TempDir(), "aktr.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4\n%%EOF\n"), 0o600))
	bad := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("hello"), 0o600))

	q := uploadqueue.New(uploadqueue.NewHTTPTransport(ts.server.URL+"/api/v1/test-upload", auth.Token, nil))
	good, err := uploadqueue.FileFromPath(pdf, "application/pdf")
	require.NoError(t, err)
	invalid, err := uploadqueue.FileFromPath(bad, "text/plain")
	require.NoError(t, err)
	q.AddFiles(good, invalid)

	batch := q.UploadAllFiles(context.Background())
	require.True(t, batch.OverallSuccess)
	require.Len(t, batch.Files, 1)
	fileID := batch.Files[0].FileID
	require.NotEmpty(t, fileID)

	records := q.Records()
	assert.Equal(t, uploadqueue.StatusUploadedQueued, records[0].Status)
	assert.Equal(t, uploadqueue.StatusErrorUpload, records[1].Status)

	var status dto.OcrStatusResponse
	require.Eventually(t, func() bool {
		res, out := ts.sendRequest(t, http.MethodGet, "/api/v1/uploads/"+fileID+"/ocr", auth.Token, nil, nil)
		if res.StatusCode != http.StatusOK {
			return false
		}
		return json.Unmarshal(out, &status) == nil
	}, 10*time.Second, 50*time.Millisecond)

	require.NotNil(t, status.Result)
	assert.Equal(t, "success", status.Result.Status)
	assert.Equal(t, "AKTR PLT 72%", status.Result.RawText)

	other := ts.signup(t)
	res, _ := ts.sendRequest(t, http.MethodGet, "/api/v1/uploads/"+fileID+"/ocr", other.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestUploadRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	res, _ := ts.sendRequest(t, http.MethodPost, "/api/v1/test-upload", "", []byte("x"), http.Header{
		"Content-Type": {"multipart/form-data; boundary=x"},
	})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestStripeWebhookCreatesSubscription(t *testing.T) {
	ts := newTestServer(t)
	auth := ts.signup(t)
	subID := "sub_" + uuid.NewString()

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_%s",
		"object": "event",
		"type": "customer.subscription.created",
		"api_version": "2020-08-27",
		"data": {"object": {
			"id": %q,
			"object": "subscription",
			"customer": "cus_1",
			"status": "active",
			"current_period_start": %d,
			"current_period_end": %d,
			"metadata": {"user_id": %q}
		}}
	}`, uuid.NewString(), subID, time.Now().Unix(), time.Now().Add(30*24*time.Hour).Unix(), auth.User.ID))

	ts0 := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts0, payload)))
	sig := fmt.Sprintf("t=%d,v1=%s", ts0, hex.EncodeToString(mac.Sum(nil)))

	res, out := ts.sendRequest(t, http.MethodPost, "/api/v1/webhooks/stripe", "", payload, http.Header{
		"Stripe-Signature": {sig},
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(out))

	res, out = ts.sendRequest(t, http.MethodGet, "/api/v1/subscriptions/me", auth.Token, nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(out))

	var sub dto.SubscriptionResponse
	require.NoError(t, json.Unmarshal(out, &sub))
	assert.Equal(t, subID, sub.StripeSubscriptionID)
	assert.Equal(t, "user", sub.OwnerType)
}

func TestOcrJobTimeoutCoversRetries(t *testing.T) {
	cfg := &config.Config{}
	cfg.OCR.TimeoutSeconds = 10
	retries := 2
	cfg.OCR.MaxRetries = &retries

	assert.Equal(t, 33*time.Second, ocrJobTimeout(cfg))
}
