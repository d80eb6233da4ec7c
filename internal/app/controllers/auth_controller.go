// Package controllers handles HTTP request handling
package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"github.com/yigit/slotbook/internal/app/services"
	"github.com/yigit/slotbook/internal/middleware"
	"github.com/yigit/slotbook/internal/pkg/auth"
	"github.com/yigit/slotbook/internal/pkg/helpers"
)

// CookieConfig controls the admin session cookie
type CookieConfig struct {
	Secure bool
	// Path defaults to "/"
	Path string
}

// AuthController handles admin login and logout
type AuthController struct {
	authService services.AuthService
	cookie      CookieConfig
	logger      zerolog.Logger
}

// NewAuthController creates a new AuthController
func NewAuthController(authService services.AuthService, cookie CookieConfig, logger zerolog.Logger) *AuthController {
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &AuthController{
		authService: authService,
		cookie:      cookie,
		logger:      logger,
	}
}

func (c *AuthController) setSessionCookie(ctx *gin.Context, token string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(auth.SessionCookieName, token, maxAge, c.cookie.Path, "", c.cookie.Secure, true)
}

// Login handles admin login
// @Summary Admin login
// @Description Checks the admin credentials and sets the httpOnly session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Admin credentials"
// @Success 200 {object} dto.APIResponse{data=dto.SessionResponse} "Logged in"
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Failure 401 {object} dto.ErrorResponse "Invalid credentials"
// @Failure 429 {object} dto.ErrorResponse "Too many requests"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req dto.LoginRequest
	if !middleware.BindJSON(ctx, &req) {
		c.logger.Debug().Msg("Invalid login request payload")
		return
	}

	token, expiresAt, err := c.authService.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.setSessionCookie(ctx, token, helpers.CookieMaxAge(expiresAt, time.Now()))

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SessionResponse{
		Username:  req.Username,
		ExpiresAt: expiresAt,
	}, "Logged in"))
}

// Logout clears the session cookie
// @Summary Admin logout
// @Tags auth
// @Produce json
// @Success 200 {object} dto.SuccessResponse "Logged out"
// @Router /auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	c.setSessionCookie(ctx, "", -1)
	ctx.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: "Logged out"})
}

// Session reports the current admin session
// @Summary Current admin session
// @Tags auth
// @Produce json
// @Security AdminSession
// @Success 200 {object} dto.APIResponse{data=dto.SessionResponse} "Active session"
// @Failure 401 {object} dto.ErrorResponse "Admin session required"
// @Router /auth/session [get]
func (c *AuthController) Session(ctx *gin.Context) {
	resp := dto.SessionResponse{Username: ctx.GetString(middleware.AdminUsernameKey)}
	if expiresAt, ok := ctx.Get(middleware.SessionExpiresAtKey); ok {
		resp.ExpiresAt, _ = expiresAt.(time.Time)
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp, ""))
}
