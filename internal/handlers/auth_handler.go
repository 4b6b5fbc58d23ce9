package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services/dto"
)

type AuthHandler struct {
	*BaseHandler
	authService  services.AuthService
	emailService services.EmailService
}

func NewAuthHandler(base *BaseHandler, authService services.AuthService, emailService services.EmailService) *AuthHandler {
	return &AuthHandler{
		BaseHandler:  base,
		authService:  authService,
		emailService: emailService,
	}
}

func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
	}
}

// Signup godoc
// @Summary Register a new account
// @Description Creates a user with the given role. school_admin signups also create the school.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "Signup data"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} apperrors.ErrorResponse "Validation failed"
// @Failure 409 {object} apperrors.ErrorResponse "Email already registered"
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.authService.Signup(c.Request.Context(), h.GetDB(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	if h.emailService != nil {
		user := &models.User{Email: resp.User.Email, FullName: resp.User.FullName, Role: resp.User.Role}
		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			if err := h.emailService.SendWelcome(ctx, user); err != nil {
				logger.CtxWarn(ctx, "failed to send welcome email", "error", err)
			}
		}()
	}

	c.JSON(http.StatusCreated, resp)
}

// Login godoc
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} apperrors.ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), h.GetDB(c), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
