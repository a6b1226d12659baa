package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arnavshah/warplanner-api-go/pkg/annotation"
	"github.com/arnavshah/warplanner-api-go/pkg/groups"
	"github.com/arnavshah/warplanner-api-go/pkg/lineup"
	"github.com/arnavshah/warplanner-api-go/pkg/models"
	"github.com/arnavshah/warplanner-api-go/pkg/notify"
	"github.com/arnavshah/warplanner-api-go/pkg/planner"
)

// session resolves the caller's open session or writes the error response
func (h *Handler) session(c *gin.Context) (*planner.Session, bool) {
	s, err := h.Sessions.Get(unitOf(c))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return s, true
}

// mutate runs fn against the open session and answers with the refreshed view
func (h *Handler) mutate(c *gin.Context, fn func(*planner.Session) error) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.View())
}

func intParam(c *gin.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

// OpenSession opens the unit's planning session, or returns the one already open.
// An optional war_date (YYYY-MM-DD) picks the date leave is resolved for.
func (h *Handler) OpenSession(c *gin.Context) {
	var req struct {
		WarDate string `json:"war_date"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	var date time.Time
	if req.WarDate != "" {
		d, err := time.Parse("2006-01-02", req.WarDate)
		if err != nil {
			badRequest(c, fmt.Errorf("war_date: %w", err))
			return
		}
		date = d
	}

	s, created, err := h.Sessions.Open(c.Request.Context(), unitOf(c))
	if err != nil {
		h.Logger.Error("open session", zap.String("unit", unitOf(c)), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not load roster", "code": "roster_unavailable"})
		return
	}
	if !date.IsZero() && !date.Equal(s.WarDate()) {
		s.SetWarDate(date)
		if err := s.Refresh(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not load roster", "code": "roster_unavailable"})
			return
		}
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, s.View())
}

// GetSession returns the open session's view
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// DiscardSession drops the session and all of its unsaved edits
func (h *Handler) DiscardSession(c *gin.Context) {
	if !h.Sessions.Discard(unitOf(c)) {
		h.respondError(c, planner.ErrNoSession)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session discarded"})
}

// RefreshSession reloads roster, leave and layout
func (h *Handler) RefreshSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not load roster", "code": "roster_unavailable"})
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// SwitchVariant selects the draft being edited
func (h *Handler) SwitchVariant(c *gin.Context) {
	var req struct {
		Variant string `json:"variant" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := models.ParseVariant(req.Variant)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.mutate(c, func(s *planner.Session) error { return s.SwitchVariant(v) })
}

// MoveFromRoster places a member in a slot
func (h *Handler) MoveFromRoster(c *gin.Context) {
	var req struct {
		MemberID  models.MemberID `json:"member_id" binding:"required"`
		TeamID    int             `json:"team_id"`
		SlotIndex int             `json:"slot_index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	target := lineup.Position{TeamID: req.TeamID, SlotIndex: req.SlotIndex}
	h.mutate(c, func(s *planner.Session) error { return s.MoveFromRoster(req.MemberID, target) })
}

// MoveSlotToSlot swaps the contents of two slots
func (h *Handler) MoveSlotToSlot(c *gin.Context) {
	var req struct {
		Source lineup.Position `json:"source"`
		Target lineup.Position `json:"target"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.mutate(c, func(s *planner.Session) error { return s.MoveSlotToSlot(req.Source, req.Target) })
}

// Evict empties a slot
func (h *Handler) Evict(c *gin.Context) {
	team, err := intParam(c, "team")
	if err != nil {
		badRequest(c, err)
		return
	}
	slot, err := intParam(c, "slot")
	if err != nil {
		badRequest(c, err)
		return
	}
	h.mutate(c, func(s *planner.Session) error {
		return s.Evict(lineup.Position{TeamID: team, SlotIndex: slot})
	})
}

// ClearAll empties the active draft
func (h *Handler) ClearAll(c *gin.Context) {
	h.mutate(c, func(s *planner.Session) error { s.ClearAll(); return nil })
}

// Restore drops the active draft's unsaved edits
func (h *Handler) Restore(c *gin.Context) {
	h.mutate(c, func(s *planner.Session) error { s.RestoreFromBaseline(); return nil })
}

// CopyOther copies the other variant's lineup onto the active draft
func (h *Handler) CopyOther(c *gin.Context) {
	h.mutate(c, func(s *planner.Session) error { s.CopyFromOtherVariant(); return nil })
}

// AutoFill fills empty slots from unassigned members
func (h *Handler) AutoFill(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := s.AutoFill()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "session": s.View()})
}

// SetTeamLabel renames a team of the active draft
func (h *Handler) SetTeamLabel(c *gin.Context) {
	team, err := intParam(c, "team")
	if err != nil {
		badRequest(c, err)
		return
	}
	var req struct {
		Label string `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.mutate(c, func(s *planner.Session) error { return s.SetTeamLabel(team, req.Label) })
}

// StageColors stages one color for every selected member
func (h *Handler) StageColors(c *gin.Context) {
	var req struct {
		MemberIDs []models.MemberID `json:"member_ids" binding:"required,min=1"`
		Color     string            `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.mutate(c, func(s *planner.Session) error { return s.StageColor(req.MemberIDs, req.Color) })
}

// StageAnnotation stages a member's annotation
func (h *Handler) StageAnnotation(c *gin.Context) {
	id, err := intParam(c, "member")
	if err != nil {
		badRequest(c, err)
		return
	}
	var req annotation.Value
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.mutate(c, func(s *planner.Session) error {
		return s.StageAnnotation(models.MemberID(id), string(req.Color), req.Text)
	})
}

// SetNote replaces the war note
func (h *Handler) SetNote(c *gin.Context) {
	var req struct {
		Lines []annotation.Value `json:"lines"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.mutate(c, func(s *planner.Session) error { return s.SetNote(req.Lines) })
}

type groupRequest struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	TeamIDs []int  `json:"team_ids"`
}

func groupID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id must be a number")
	}
	return id, nil
}

// CreateGroup adds a display group
func (h *Handler) CreateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	g, err := s.CreateGroup(req.Name, req.Color, req.TeamIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// UpdateGroup edits a display group
func (h *Handler) UpdateGroup(c *gin.Context) {
	id, err := groupID(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	g, err := s.UpdateGroup(id, req.Name, req.Color, req.TeamIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// DeleteGroup removes a display group
func (h *Handler) DeleteGroup(c *gin.Context) {
	id, err := groupID(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.mutate(c, func(s *planner.Session) error { return s.DeleteGroup(id) })
}

// ReorderGroup moves a group up or down one place
func (h *Handler) ReorderGroup(c *gin.Context) {
	id, err := groupID(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	var req struct {
		Direction groups.Direction `json:"direction" binding:"required,oneof=up down"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.mutate(c, func(s *planner.Session) error { return s.ReorderGroup(id, req.Direction) })
}

// Save writes the active draft and every staged change
func (h *Handler) Save(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := s.Save(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.RecordUsage(c, 1, res.Assignments)
	h.publish(c.Request.Context(), s.UnitID, notify.LineupSaved, gin.H{"variant": res.Variant})
	c.JSON(http.StatusOK, gin.H{"result": res, "session": s.View()})
}

func (h *Handler) publish(ctx context.Context, unitID, event string, data interface{}) {
	if err := h.Notifier.Publish(ctx, unitID, event, data); err != nil {
		h.Logger.Warn("publish event", zap.String("unit", unitID), zap.String("event", event), zap.Error(err))
	}
}
