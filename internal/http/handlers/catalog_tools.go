package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bookmatch-backend/internal/http/response"
	"github.com/yungbote/bookmatch-backend/internal/platform/apierr"
	"github.com/yungbote/bookmatch-backend/internal/services"
)

// CatalogToolsHandler exposes the enrichment collaborators on their own.
type CatalogToolsHandler struct {
	classifier services.Classifier
	crawler    services.HashtagCrawler
	generator  services.TextGenerator
}

func NewCatalogToolsHandler(classifier services.Classifier, crawler services.HashtagCrawler, generator services.TextGenerator) *CatalogToolsHandler {
	return &CatalogToolsHandler{classifier: classifier, crawler: crawler, generator: generator}
}

type classifyRequest struct {
	Title       string   `json:"title" binding:"required"`
	Author      string   `json:"author"`
	ISBN        string   `json:"isbn"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
}

// POST /api/classify
func (h *CatalogToolsHandler) Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondServiceError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	out, err := h.classifier.Classify(c.Request.Context(), services.ClassifyInput{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Description: req.Description,
		Hashtags:    req.Hashtags,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/crawl/:isbn
func (h *CatalogToolsHandler) Crawl(c *gin.Context) {
	isbn := strings.TrimSpace(c.Param("isbn"))
	res, err := h.crawler.Hashtags(c.Request.Context(), isbn)
	if err != nil {
		response.RespondServiceError(c, &services.ExternalServiceError{Service: "crawler", Op: "hashtags", Err: err})
		return
	}
	hashtags := res.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	response.RespondOK(c, gin.H{"isbn": isbn, "category_hint": res.CategoryHint, "hashtags": hashtags})
}

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	System string `json:"system"`
}

// POST /api/generate
func (h *CatalogToolsHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondServiceError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	text, err := h.generator.GenerateText(c.Request.Context(), req.System, req.Prompt)
	if err != nil {
		response.RespondServiceError(c, &services.ExternalServiceError{Service: "llm", Op: "generate", Err: err})
		return
	}
	response.RespondOK(c, gin.H{"generated_text": text})
}
