package handler

import (
	"errors"
	"net/http"

	"github.com/itskevin-zz/testframe/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// respondError maps typed error kinds onto HTTP statuses. Lock contention
// surfaces as 409 with the owner's identity so the UI can name who has the
// run open in another tab.
func respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}

	switch kind {
	case apperrors.NotFound:
		status = http.StatusNotFound
	case apperrors.Validation:
		status = http.StatusBadRequest
	case apperrors.LockHeld:
		status = http.StatusConflict
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			body["lockedBy"] = ae.LockedBy
			body["tabId"] = ae.TabID
		}
		body["message"] = "another tab is modifying this run, retry shortly"
	case apperrors.LockExpired:
		status = http.StatusConflict
	case apperrors.Allocation:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, body)
}
