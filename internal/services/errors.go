package services

import (
	"errors"
	"net/http"

	"github.com/yungbote/hci-study-backend/internal/platform/apierr"
)

var (
	ErrUserNotFound     = errors.New("User not found")
	ErrInvalidSelection = errors.New("selection must be 'A' or 'B'")
	ErrInvalidTechScore = errors.New("tech_comfort must be between 1 and 7")
)

func notFound() error {
	return apierr.New(http.StatusNotFound, "user_not_found", ErrUserNotFound)
}

func invalidSelection() error {
	return apierr.New(http.StatusBadRequest, "invalid_selection", ErrInvalidSelection)
}

func invalidRequest(err error) error {
	return apierr.New(http.StatusBadRequest, "invalid_request", err)
}
