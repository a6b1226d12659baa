package models

import (
	"fmt"
	"time"
)

// MemberID identifies a roster member
type MemberID int64

// TimeVariant is one of the two weekly war windows
type TimeVariant string

const (
	VariantEarly TimeVariant = "early"
	VariantLate  TimeVariant = "late"
)

// Variants lists every time-variant in display order
var Variants = []TimeVariant{VariantEarly, VariantLate}

// Other returns the opposite time-variant
func (v TimeVariant) Other() TimeVariant {
	if v == VariantEarly {
		return VariantLate
	}
	return VariantEarly
}

// Valid reports whether v is a known time-variant
func (v TimeVariant) Valid() bool {
	return v == VariantEarly || v == VariantLate
}

// ParseVariant converts user input into a TimeVariant
func ParseVariant(s string) (TimeVariant, error) {
	v := TimeVariant(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown time variant %q", s)
	}
	return v, nil
}

// Lifecycle statuses used by the roster
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusLeft     = "left"
)

// Placement is a member's team and slot for one time-variant
type Placement struct {
	TeamID    int `json:"team_id"`
	SlotIndex int `json:"slot_index"`
}

// Member represents a roster entry as read from the roster provider
type Member struct {
	ID              MemberID                  `json:"id"`
	DisplayName     string                    `json:"display_name"`
	Strength        int64                     `json:"strength"`
	TeamRoleID      *int                      `json:"team_role_id,omitempty"`
	ColorTag        string                    `json:"color_tag,omitempty"`
	Annotation      string                    `json:"annotation,omitempty"`
	LifecycleStatus string                    `json:"lifecycle_status"`
	Placements      map[TimeVariant]Placement `json:"placements,omitempty"`
}

// LeaveMark is a read-only fact that a member is unavailable on a date.
// Variant, when set, pins the mark to one window; From/Until narrow it to a time range.
type LeaveMark struct {
	MemberID MemberID     `json:"member_id"`
	Date     time.Time    `json:"date"`
	Variant  *TimeVariant `json:"variant,omitempty"`
	From     *time.Time   `json:"from,omitempty"`
	Until    *time.Time   `json:"until,omitempty"`
	Reason   string       `json:"reason,omitempty"`
}

// AssignmentRow is one occupied slot in an outgoing assignment write
type AssignmentRow struct {
	MemberID  MemberID `json:"member_id"`
	TeamID    int      `json:"team_id"`
	SlotIndex int      `json:"slot_index"`
}

// AssignmentPayload is the per-save assignment write for one variant
type AssignmentPayload struct {
	UnitID      string          `json:"unit_id"`
	Variant     TimeVariant     `json:"variant"`
	Assignments []AssignmentRow `json:"assignments"`
	TeamLabels  map[int]string  `json:"team_labels,omitempty"`
}

// FieldUpdate is a batched color or annotation write
type FieldUpdate struct {
	MemberID MemberID `json:"member_id"`
	Value    string   `json:"value"`
}

// GroupRecord is the persisted shape of a team group
type GroupRecord struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	OrderRank int    `json:"order_rank"`
	TeamIDs   string `json:"team_ids"`
}

// Layout is the unit-wide state loaded alongside the roster
type Layout struct {
	Groups     []GroupRecord                  `json:"groups"`
	Note       string                         `json:"note"`
	TeamLabels map[TimeVariant]map[int]string `json:"team_labels"`
}

// ValidationIssue describes why a lineup payload was rejected
type ValidationIssue struct {
	MemberID MemberID `json:"member_id,omitempty"`
	TeamID   int      `json:"team_id,omitempty"`
	Slot     int      `json:"slot_index"`
	Reasons  []string `json:"reasons"`
}

// ValidateResponse is returned by the validation endpoint
type ValidateResponse struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}
