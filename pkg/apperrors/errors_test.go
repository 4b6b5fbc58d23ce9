package apperrors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsMatchesCopies(t *testing.T) {
	cause := errors.New("boom")
	wrapped := ErrSubscriptionNotFound.WithError(cause)

	assert.True(t, Is(wrapped, ErrSubscriptionNotFound))
	assert.True(t, Is(wrapped, cause))
	assert.False(t, Is(wrapped, ErrUploadNotFound))
	assert.Nil(t, ErrSubscriptionNotFound.Err, "shared value must not be mutated")
}

func TestHandleError_WrapsUnknownErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleError(c, errors.New("db exploded"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(CodeInternalError), body["error"]["code"])
	assert.NotContains(t, w.Body.String(), "db exploded")
}

func TestHandleError_UsesAppErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleError(c, NewUnauthorizedError("User not authenticated"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "User not authenticated")
	assert.True(t, c.IsAborted())
}
