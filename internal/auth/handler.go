package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"archive/internal/apperr"
	"archive/internal/validation"
	"archive/pkg/models"
)

type Handler struct {
	Service   *Service
	Tokens    TokenService
	Cookie    CookieConfig
	Validator *validation.Validator
	// Gate guards the profile and account routes.
	Gate gin.HandlerFunc
	// Limit, when set, throttles register and login.
	Limit gin.HandlerFunc
}

func NewHandler(svc *Service, tokens TokenService, cookie CookieConfig, gate, limit gin.HandlerFunc) *Handler {
	return &Handler{Service: svc, Tokens: tokens, Cookie: cookie, Validator: svc.Validator, Gate: gate, Limit: limit}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	throttled := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		if h.Limit == nil {
			return []gin.HandlerFunc{fn}
		}
		return []gin.HandlerFunc{h.Limit, fn}
	}

	rg.POST("/register", throttled(h.register)...)
	rg.POST("/login", throttled(h.login)...)
	rg.POST("/logout", h.logout)
	rg.GET("/profile", h.Gate, h.profile)
	rg.PUT("/profile", h.Gate, h.updateProfile)
	rg.DELETE("/:id", h.Gate, h.deleteAccount)
}

type sessionResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
	Token    string `json:"token"`
}

// startSession issues a token for u, sets the session cookie and writes the
// session body.
func (h *Handler) startSession(c *gin.Context, status int, u *models.User) {
	token, exp, err := h.Tokens.Issue(u.ID)
	if err != nil {
		apperr.Respond(c, apperr.Internal("Failed to issue token.", err))
		return
	}
	SetSessionCookie(c, h.Cookie, token, exp)

	c.JSON(status, sessionResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		IsAdmin:  u.IsAdmin,
		Token:    token,
	})
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.InvalidInput("invalid json").WithCause(err))
		return
	}

	u, err := h.Service.Register(c.Request.Context(), req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, u)
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.InvalidInput("invalid json").WithCause(err))
		return
	}
	if err := h.Validator.Validate("Email and password are required.", req); err != nil {
		apperr.Respond(c, err)
		return
	}

	u, err := h.Service.VerifyCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if u == nil {
		// don't reveal which part failed
		apperr.Respond(c, apperr.Unauthorized("Invalid email or password"))
		return
	}
	h.startSession(c, http.StatusOK, u)
}

func (h *Handler) logout(c *gin.Context) {
	ClearSessionCookie(c, h.Cookie)
	c.JSON(http.StatusOK, gin.H{"message": "User logged out successfully"})
}

func (h *Handler) profile(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentUser(c))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.InvalidInput("invalid json").WithCause(err))
		return
	}

	u, err := h.Service.UpdateProfile(c.Request.Context(), CurrentUser(c).ID, req)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) deleteAccount(c *gin.Context) {
	if err := h.Service.DeleteAccount(c.Request.Context(), c.Param("id"), CurrentUser(c).ID); err != nil {
		apperr.Respond(c, err)
		return
	}

	ClearSessionCookie(c, h.Cookie)
	c.JSON(http.StatusOK, gin.H{"message": "User account and associated data successfully removed."})
}
