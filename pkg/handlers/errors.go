package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/warplanner-api-go/pkg/groups"
	"github.com/arnavshah/warplanner-api-go/pkg/lineup"
	"github.com/arnavshah/warplanner-api-go/pkg/planner"
)

var errorCodes = []struct {
	target error
	status int
	code   string
}{
	{lineup.ErrIneligibleMember, http.StatusUnprocessableEntity, "ineligible_member"},
	{lineup.ErrSlotOutOfRange, http.StatusBadRequest, "slot_out_of_range"},
	{lineup.ErrUnknownMember, http.StatusNotFound, "unknown_member"},
	{groups.ErrGroupOverlap, http.StatusConflict, "group_overlap"},
	{groups.ErrGroupNotFound, http.StatusNotFound, "group_not_found"},
	{groups.ErrInvalidGroup, http.StatusBadRequest, "invalid_group"},
	{planner.ErrInvalidColor, http.StatusBadRequest, "invalid_color"},
	{planner.ErrSaveInProgress, http.StatusConflict, "save_in_progress"},
	{planner.ErrNoSession, http.StatusNotFound, "no_session"},
	{planner.ErrPersistenceFailure, http.StatusBadGateway, "persistence_failure"},
}

// respondError maps domain errors onto HTTP statuses. Unrecognised errors are 500s.
func (h *Handler) respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	for _, ec := range errorCodes {
		if !errors.Is(err, ec.target) {
			continue
		}
		body := gin.H{"error": err.Error(), "code": ec.code}
		var pe *planner.PersistenceError
		if errors.As(err, &pe) {
			body["step"] = pe.Step
		}
		c.JSON(ec.status, body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "internal"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
}
