package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/bookmatch-backend/internal/http/response"
	"github.com/yungbote/bookmatch-backend/internal/services"
)

const (
	msgBookAdded         = "book added"
	msgBookAlreadyExists = "book already exists"
	msgBookDeleted       = "book deleted"
	msgBookNotFound      = "book not found"
)

type BookHandler struct {
	intake services.BookIntake
	index  services.BookIndex
}

func NewBookHandler(intake services.BookIntake, index services.BookIndex) *BookHandler {
	return &BookHandler{intake: intake, index: index}
}

// BookView is the vector record of a book in the shape clients have always
// received: list fields stay ", "-joined strings.
type BookView struct {
	Title        string `json:"title"`
	Author       string `json:"author"`
	ISBN         string `json:"isbn"`
	Description  string `json:"description"`
	Hashtags     string `json:"hashtags"`
	MainCategory string `json:"mainCategory"`
	SubCategory  string `json:"subCategory"`
}

// POST /api/books/:isbn
func (h *BookHandler) AddBook(c *gin.Context) {
	res, err := h.intake.AddByISBN(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	msg := msgBookAdded
	if res.VectorOutcome == services.AddOutcomeAlreadyExists {
		msg = msgBookAlreadyExists
	}
	response.RespondOK(c, gin.H{
		"status":  res.VectorOutcome,
		"message": msg,
		"book":    res,
	})
}

// DELETE /api/books/:isbn
func (h *BookHandler) DeleteBook(c *gin.Context) {
	outcome, err := h.index.Remove(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	msg := msgBookDeleted
	if outcome == services.RemoveOutcomeNotFound {
		msg = msgBookNotFound
	}
	response.RespondOK(c, gin.H{"status": outcome, "message": msg})
}

// GET /api/books/:isbn
func (h *BookHandler) GetBook(c *gin.Context) {
	b, err := h.index.Get(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, BookView{
		Title:        b.Metadata[services.MetaTitle],
		Author:       b.Metadata[services.MetaAuthor],
		ISBN:         b.ISBN,
		Description:  b.Document,
		Hashtags:     b.Metadata[services.MetaHashtags],
		MainCategory: b.Metadata[services.MetaMainCategory],
		SubCategory:  b.Metadata[services.MetaSubCategory],
	})
}
