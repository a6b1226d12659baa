package lineup

import (
	"errors"
	"fmt"

	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

var (
	ErrIneligibleMember = errors.New("ineligible member")
	ErrSlotOutOfRange   = errors.New("slot out of range")
	ErrUnknownMember    = errors.New("unknown member")
)

// IneligibleMemberError is returned when leave blocks a placement
type IneligibleMemberError struct {
	MemberID models.MemberID
	Variant  models.TimeVariant
}

func (e *IneligibleMemberError) Error() string {
	return fmt.Sprintf("member %d is on leave for the %s window", e.MemberID, e.Variant)
}

func (e *IneligibleMemberError) Is(target error) bool { return target == ErrIneligibleMember }

// SlotOutOfRangeError is returned for team ids outside 1..10 or slot indices outside 0..5
type SlotOutOfRangeError struct {
	TeamID    int
	SlotIndex int
}

func (e *SlotOutOfRangeError) Error() string {
	return fmt.Sprintf("team %d slot %d is out of range", e.TeamID, e.SlotIndex)
}

func (e *SlotOutOfRangeError) Is(target error) bool { return target == ErrSlotOutOfRange }

// UnknownMemberError is returned when a member id is not on the active roster
type UnknownMemberError struct {
	MemberID models.MemberID
}

func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("member %d is not on the roster", e.MemberID)
}

func (e *UnknownMemberError) Is(target error) bool { return target == ErrUnknownMember }
