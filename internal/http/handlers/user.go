package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/hci-study-backend/internal/domain"
	"github.com/yungbote/hci-study-backend/internal/http/response"
	"github.com/yungbote/hci-study-backend/internal/services"
)

type UserHandler struct {
	userService      services.UserService
	selectionService services.SelectionService
}

func NewUserHandler(userService services.UserService, selectionService services.SelectionService) *UserHandler {
	return &UserHandler{userService: userService, selectionService: selectionService}
}

var (
	errBadUserID     = errors.New("user id must be an integer")
	errMissingUserID = errors.New("user_id is required")
)

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errBadUserID)
		return 0, false
	}
	return id, true
}

func bindProfile(c *gin.Context) (types.UserProfile, bool) {
	var p types.UserProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return p, false
	}
	return p, true
}

// GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, users)
}

// GET /api/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	u, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, u)
}

// POST /api/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	p, ok := bindProfile(c)
	if !ok {
		return
	}
	u, err := h.userService.Create(c.Request.Context(), p)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, u)
}

// PUT /api/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	p, ok := bindProfile(c)
	if !ok {
		return
	}
	u, err := h.userService.Update(c.Request.Context(), id, p)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, u)
}

// GET /api/users/:id/selections
func (h *UserHandler) ListSelections(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	rows, err := h.selectionService.ListForUser(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, rows)
}
