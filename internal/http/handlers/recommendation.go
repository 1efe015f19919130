package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bookmatch-backend/internal/http/response"
	"github.com/yungbote/bookmatch-backend/internal/platform/apierr"
	"github.com/yungbote/bookmatch-backend/internal/services"
)

type RecommendationHandler struct {
	resolver services.RecommendationResolver
}

func NewRecommendationHandler(resolver services.RecommendationResolver) *RecommendationHandler {
	return &RecommendationHandler{resolver: resolver}
}

// POST /api/recommendations/:memberId
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	memberID, err := strconv.ParseInt(c.Param("memberId"), 10, 64)
	if err != nil || memberID <= 0 {
		response.RespondServiceError(c, apierr.BadRequest("invalid_member_id", fmt.Errorf("member id must be a positive integer")))
		return
	}
	res, err := h.resolver.Recommend(c.Request.Context(), memberID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"message":        recommendMessage(res),
		"recommendation": res,
	})
}

func recommendMessage(res *services.RecommendResult) string {
	switch {
	case res.Status == services.RecommendStatusRecommended:
		return fmt.Sprintf("recommended book id: %d", res.BookID)
	case res.Status == services.RecommendStatusNoPreferences:
		return "no preferences found for the member"
	case res.Drift:
		return "no book id found for isbn " + res.ISBN
	default:
		return "no book found for the given preferences"
	}
}
