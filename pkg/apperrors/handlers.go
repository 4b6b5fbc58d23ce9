package apperrors

import (
	"github.com/gin-gonic/gin"
	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

// ErrorResponse is the JSON envelope for every API error.
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// GinErrorHandler renders errors for gin handlers.
type GinErrorHandler struct {
	Debug bool
}

func (h *GinErrorHandler) HandleGinError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}
	if appErr.HTTPCode >= 500 && !h.Debug {
		appErr = appErr.WithDetails(nil)
	}

	if appErr.HTTPCode >= 500 {
		logger.CtxError(c.Request.Context(), "server error",
			"code", appErr.Code,
			"domain", appErr.Domain,
			"cause", errString(appErr.Unwrap()),
		)
	}

	c.AbortWithStatusJSON(appErr.HTTPCode, ErrorResponse{Error: appErr})
}

// HandleError renders err using release mode rules unless gin runs in debug mode.
func HandleError(c *gin.Context, err error) {
	handler := &GinErrorHandler{Debug: gin.Mode() == gin.DebugMode}
	handler.HandleGinError(c, err)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
