package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/hci-study-backend/internal/domain"
	"github.com/yungbote/hci-study-backend/internal/http/response"
	"github.com/yungbote/hci-study-backend/internal/services"
)

type SelectionHandler struct {
	selectionService services.SelectionService
}

func NewSelectionHandler(selectionService services.SelectionService) *SelectionHandler {
	return &SelectionHandler{selectionService: selectionService}
}

type upsertSelectionRequest struct {
	UserID    *int64 `json:"user_id"`
	ImageID   string `json:"image_id"`
	Selection string `json:"selection"`
}

// PUT /api/selections
func (h *SelectionHandler) UpsertSelection(c *gin.Context) {
	var req upsertSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.UserID == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errMissingUserID)
		return
	}
	out, err := h.selectionService.Upsert(c.Request.Context(), types.Selection{
		UserID:    *req.UserID,
		ImageID:   req.ImageID,
		Selection: req.Selection,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}
