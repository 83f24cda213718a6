package reviews

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"archive/internal/apperr"
	"archive/internal/auth"
)

type Handler struct {
	Engine *Engine
	Repo   *Repo
}

func NewHandler(engine *Engine, repo *Repo) *Handler {
	return &Handler{Engine: engine, Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, gate gin.HandlerFunc) {
	rg.GET("", h.list)
	rg.POST("/:bookId", gate, h.create)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Repo.ListAll(c.Request.Context())
	if err != nil {
		apperr.Respond(c, apperr.Internal("Failed to list reviews.", err))
		return
	}
	c.JSON(http.StatusOK, items)
}

type createReq struct {
	Rating   *int   `json:"rating"`
	Headline string `json:"headline"`
	Text     string `json:"text"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.InvalidInput("Rating must be a whole number; headline and text must be strings.").WithCause(err))
		return
	}

	res, err := h.Engine.Submit(c.Request.Context(), SubmitInput{
		BookID:   c.Param("bookId"),
		UserID:   auth.CurrentUser(c).ID,
		Rating:   req.Rating,
		Headline: req.Headline,
		Text:     req.Text,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Review submitted successfully!",
		"review":  res.Review,
		"book":    res.Book,
	})
}
