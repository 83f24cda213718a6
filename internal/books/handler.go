package books

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"archive/internal/apperr"
	"archive/internal/auth"
	"archive/internal/validation"
	"archive/pkg/models"
)

type Handler struct {
	Repo      *Repo
	Validator *validation.Validator
	// BaseURL prefixes the Location header of created books.
	BaseURL string
	Now     func() time.Time
}

func NewHandler(repo *Repo, v *validation.Validator) *Handler {
	return &Handler{Repo: repo, Validator: v, Now: time.Now}
}

// RegisterRoutes mounts the catalog. Reads are public; gate guards creation.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, gate gin.HandlerFunc) {
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.POST("", gate, h.create)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Repo.List(c.Request.Context())
	if err != nil {
		apperr.Respond(c, apperr.Internal("Failed to list books.", err))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		apperr.Respond(c, apperr.NotFound("Book not found"))
		return
	}

	book, err := h.Repo.GetDetail(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, apperr.Internal("Failed to load book.", err))
		return
	}
	if book == nil {
		apperr.Respond(c, apperr.NotFound("Book not found"))
		return
	}
	c.JSON(http.StatusOK, book)
}

type createReq struct {
	Title           string        `json:"title" validate:"required,max=300"`
	Author          string        `json:"author" validate:"required,max=200"`
	Description     string        `json:"description" validate:"required"`
	Genre           models.Genres `json:"genre" validate:"required,min=1"`
	PublicationYear int           `json:"publicationYear" validate:"required"`
	CoverImage      string        `json:"coverImage" validate:"omitempty,max=2048"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.InvalidInput("invalid json").WithCause(err))
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	req.Description = strings.TrimSpace(req.Description)
	req.CoverImage = strings.TrimSpace(req.CoverImage)
	if err := h.Validator.Validate("Please fill all required fields.", req); err != nil {
		apperr.Respond(c, err)
		return
	}

	now := h.Now().UTC()
	book := &models.Book{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Author:          req.Author,
		Description:     req.Description,
		Genre:           req.Genre,
		PublicationYear: req.PublicationYear,
		CoverImage:      req.CoverImage,
		SubmittedBy:     auth.CurrentUser(c).ID,
		Reviews:         []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.Repo.Create(c.Request.Context(), book); err != nil {
		apperr.Respond(c, apperr.Internal("Failed to create book.", err))
		return
	}
	c.Header("Location", strings.TrimRight(h.BaseURL, "/")+c.Request.URL.Path+"/"+book.ID)
	c.JSON(http.StatusCreated, book)
}
