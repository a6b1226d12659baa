package lineup

import (
	"fmt"

	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// Controller applies move commands to the active draft of a DraftStore.
// Every successful call leaves the grid free of duplicate members;
// every refused call leaves it untouched.
type Controller struct {
	Drafts      *DraftStore
	Eligibility *Eligibility
	Roster      map[models.MemberID]*models.Member
}

// NewController creates a controller over drafts with an empty leave snapshot
func NewController(drafts *DraftStore) *Controller {
	return &Controller{
		Drafts:      drafts,
		Eligibility: NoLeave(),
		Roster:      make(map[models.MemberID]*models.Member),
	}
}

// SetRoster replaces the known roster
func (c *Controller) SetRoster(members []models.Member) {
	roster := make(map[models.MemberID]*models.Member, len(members))
	for i := range members {
		roster[members[i].ID] = &members[i]
	}
	c.Roster = roster
}

func (c *Controller) active() *Draft {
	return c.Drafts.Draft(c.Drafts.Active())
}

func (c *Controller) checkEligible(id models.MemberID) error {
	v := c.Drafts.Active()
	if c.Eligibility.Blocked(id, v) {
		return &IneligibleMemberError{MemberID: id, Variant: v}
	}
	return nil
}

// commit validates the candidate grid before it replaces the active one
func (c *Controller) commit(g Grid) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("rejecting move: %w", err)
	}
	c.Drafts.replace(g, true)
	return nil
}

// MoveFromRoster places member id at target, removing any prior occurrence.
// The previous occupant of target becomes unassigned.
func (c *Controller) MoveFromRoster(id models.MemberID, target Position) error {
	if err := checkPosition(target); err != nil {
		return err
	}
	if _, ok := c.Roster[id]; !ok {
		return &UnknownMemberError{MemberID: id}
	}
	if err := c.checkEligible(id); err != nil {
		return err
	}

	g := c.active().Grid.Clone()
	g.remove(id)
	g.set(target, &id)
	return c.commit(g)
}

// MoveSlotToSlot swaps the occupants of source and target.
// An empty target simply receives the source occupant. Both occupants must be
// eligible for the active variant; Evict is the only way out for one on leave.
func (c *Controller) MoveSlotToSlot(source, target Position) error {
	if err := checkPosition(source); err != nil {
		return err
	}
	if err := checkPosition(target); err != nil {
		return err
	}

	g := c.active().Grid.Clone()
	moving, ok := g.At(source)
	if ok {
		if err := c.checkEligible(moving); err != nil {
			return err
		}
	}
	if source == target {
		return c.commit(g)
	}

	var movingPtr, displacedPtr *models.MemberID
	if ok {
		movingPtr = &moving
	}
	if displaced, taken := g.At(target); taken {
		// a member on leave cannot be relocated by dropping someone onto them
		if err := c.checkEligible(displaced); err != nil {
			return err
		}
		displacedPtr = &displaced
	}
	g.set(target, movingPtr)
	g.set(source, displacedPtr)
	return c.commit(g)
}

// Evict clears a slot. Leave never blocks removal.
func (c *Controller) Evict(p Position) error {
	if err := checkPosition(p); err != nil {
		return err
	}
	g := c.active().Grid.Clone()
	g.set(p, nil)
	return c.commit(g)
}

// ClearAll empties every slot of the active draft and marks it dirty
func (c *Controller) ClearAll() {
	g := NewGrid()
	for i, t := range c.active().Grid.Teams {
		g.Teams[i].Label = t.Label
	}
	c.Drafts.replace(g, true)
}

// RestoreFromBaseline discards the active draft's edits
func (c *Controller) RestoreFromBaseline() {
	v := c.Drafts.Active()
	c.Drafts.replace(c.Drafts.Baseline(v), false)
}

// CopyFromOtherVariant clones the other variant's grid into the active draft.
// A dirty source contributes its in-memory grid, a clean one its baseline.
func (c *Controller) CopyFromOtherVariant() {
	other := c.Drafts.Active().Other()
	src := c.Drafts.Draft(other)
	var g Grid
	if src.Dirty {
		g = src.Grid.Clone()
	} else {
		g = c.Drafts.Baseline(other)
	}
	c.Drafts.replace(g, true)
}

// SetTeamLabel renames a team in the active draft
func (c *Controller) SetTeamLabel(teamID int, label string) error {
	if !ValidTeam(teamID) {
		return &SlotOutOfRangeError{TeamID: teamID, SlotIndex: 0}
	}
	if label == "" {
		label = DefaultLabel(teamID)
	}
	c.active().Grid.Teams[teamID-1].Label = label
	c.Drafts.touch()
	return nil
}
