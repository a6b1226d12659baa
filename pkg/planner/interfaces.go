package planner

import (
	"context"
	"time"

	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// RosterSource lists active members of a guild unit
type RosterSource interface {
	ListEligibleMembers(ctx context.Context, unitID string) ([]models.Member, error)
}

// LeaveSource lists leave marks of a unit for a calendar date
type LeaveSource interface {
	ListLeaveMarks(ctx context.Context, unitID string, date time.Time) ([]models.LeaveMark, error)
}

// LayoutSource loads groups, note and team labels of a unit
type LayoutSource interface {
	LoadLayout(ctx context.Context, unitID string) (models.Layout, error)
}

// Persistence receives the writes of a save, one call per step
type Persistence interface {
	WriteAssignments(ctx context.Context, payload models.AssignmentPayload) error
	WriteNote(ctx context.Context, unitID, note string) error
	WriteColors(ctx context.Context, unitID string, updates []models.FieldUpdate) error
	WriteAnnotations(ctx context.Context, unitID string, updates []models.FieldUpdate) error
	WriteGroups(ctx context.Context, unitID string, groups []models.GroupRecord) error
}

// Backend is everything a session reads from and writes to
type Backend interface {
	RosterSource
	LeaveSource
	LayoutSource
	Persistence
}
