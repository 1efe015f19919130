package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/bookmatch-backend/internal/http/response"
	"github.com/yungbote/bookmatch-backend/internal/services"
)

type AdminHandler struct {
	reconciler services.Reconciler
}

func NewAdminHandler(reconciler services.Reconciler) *AdminHandler {
	return &AdminHandler{reconciler: reconciler}
}

// GET /api/admin/drift
func (h *AdminHandler) Drift(c *gin.Context) {
	report, err := h.reconciler.Check(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"consistent": report.Consistent(), "report": report})
}

// POST /api/admin/drift/repair
func (h *AdminHandler) RepairDrift(c *gin.Context) {
	res, err := h.reconciler.Repair(c.Request.Context(), nil)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"repair": res})
}
