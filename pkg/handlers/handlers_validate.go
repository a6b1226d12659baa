package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/warplanner-api-go/pkg/lineup"
	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// ValidateLineup checks an assignment payload without touching any state.
// When the unit has an open session, members on leave for the variant are reported too.
func (h *Handler) ValidateLineup(c *gin.Context) {
	var input models.AssignmentPayload
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	var blocked func(models.MemberID) bool
	if s, err := h.Sessions.Get(unitOf(c)); err == nil {
		e := s.Eligibility()
		blocked = func(id models.MemberID) bool { return e.Blocked(id, input.Variant) }
	}

	h.RecordUsage(c, 0, 0)
	c.JSON(http.StatusOK, lineup.CheckPayload(input, blocked))
}
