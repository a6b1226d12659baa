package lineup

import (
	"fmt"
	"sort"

	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

const (
	TeamCount    = 10
	SlotsPerTeam = 6
	Capacity     = TeamCount * SlotsPerTeam
)

// Slot holds at most one member reference
type Slot struct {
	Occupant *models.MemberID `json:"occupant_id"`
}

// Empty reports whether nobody occupies the slot
func (s Slot) Empty() bool { return s.Occupant == nil }

// Team is one row of the assignment grid
type Team struct {
	ID    int                `json:"id"`
	Label string             `json:"label"`
	Slots [SlotsPerTeam]Slot `json:"slots"`
}

// Grid is the full 10x6 assignment grid. Teams[i] has ID i+1.
type Grid struct {
	Teams [TeamCount]Team `json:"teams"`
}

// Position addresses one slot of the grid
type Position struct {
	TeamID    int `json:"team_id"`
	SlotIndex int `json:"slot_index"`
}

// NewGrid returns an empty grid with default team labels
func NewGrid() Grid {
	var g Grid
	for i := range g.Teams {
		g.Teams[i].ID = i + 1
		g.Teams[i].Label = DefaultLabel(i + 1)
	}
	return g
}

// DefaultLabel is the label a team carries until someone renames it
func DefaultLabel(teamID int) string {
	return fmt.Sprintf("Party %d", teamID)
}

// ValidTeam reports whether id is a grid team id
func ValidTeam(id int) bool {
	return id >= 1 && id <= TeamCount
}

func checkPosition(p Position) error {
	if !ValidTeam(p.TeamID) || p.SlotIndex < 0 || p.SlotIndex >= SlotsPerTeam {
		return &SlotOutOfRangeError{TeamID: p.TeamID, SlotIndex: p.SlotIndex}
	}
	return nil
}

// Clone deep-copies the grid so no occupant pointer is shared
func (g Grid) Clone() Grid {
	out := g
	for t := range out.Teams {
		for s := range out.Teams[t].Slots {
			if occ := g.Teams[t].Slots[s].Occupant; occ != nil {
				id := *occ
				out.Teams[t].Slots[s].Occupant = &id
			}
		}
	}
	return out
}

// At returns the occupant of p, if any
func (g Grid) At(p Position) (models.MemberID, bool) {
	occ := g.Teams[p.TeamID-1].Slots[p.SlotIndex].Occupant
	if occ == nil {
		return 0, false
	}
	return *occ, true
}

func (g *Grid) set(p Position, id *models.MemberID) {
	if id == nil {
		g.Teams[p.TeamID-1].Slots[p.SlotIndex].Occupant = nil
		return
	}
	v := *id
	g.Teams[p.TeamID-1].Slots[p.SlotIndex].Occupant = &v
}

// Find returns every position holding member id
func (g Grid) Find(id models.MemberID) []Position {
	var out []Position
	for t := range g.Teams {
		for s, slot := range g.Teams[t].Slots {
			if slot.Occupant != nil && *slot.Occupant == id {
				out = append(out, Position{TeamID: t + 1, SlotIndex: s})
			}
		}
	}
	return out
}

// remove clears every occurrence of id
func (g *Grid) remove(id models.MemberID) {
	for _, p := range g.Find(id) {
		g.set(p, nil)
	}
}

// Without returns a copy of g with every listed member removed
func (g Grid) Without(ids ...models.MemberID) Grid {
	out := g.Clone()
	for _, id := range ids {
		out.remove(id)
	}
	return out
}

// Occupants maps every placed member to its position
func (g Grid) Occupants() map[models.MemberID]Position {
	out := make(map[models.MemberID]Position)
	for t := range g.Teams {
		for s, slot := range g.Teams[t].Slots {
			if slot.Occupant != nil {
				out[*slot.Occupant] = Position{TeamID: t + 1, SlotIndex: s}
			}
		}
	}
	return out
}

// Filled counts occupied slots
func (g Grid) Filled() int {
	n := 0
	for t := range g.Teams {
		for _, slot := range g.Teams[t].Slots {
			if slot.Occupant != nil {
				n++
			}
		}
	}
	return n
}

// Duplicates lists member ids placed more than once, ascending
func (g Grid) Duplicates() []models.MemberID {
	seen := make(map[models.MemberID]int)
	for t := range g.Teams {
		for _, slot := range g.Teams[t].Slots {
			if slot.Occupant != nil {
				seen[*slot.Occupant]++
			}
		}
	}
	var out []models.MemberID
	for id, n := range seen {
		if n > 1 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks the uniqueness invariant
func (g Grid) Validate() error {
	if dup := g.Duplicates(); len(dup) > 0 {
		return fmt.Errorf("members placed more than once: %v", dup)
	}
	return nil
}

// Rows lists occupied slots in grid order
func (g Grid) Rows() []models.AssignmentRow {
	var rows []models.AssignmentRow
	for t := range g.Teams {
		for s, slot := range g.Teams[t].Slots {
			if slot.Occupant != nil {
				rows = append(rows, models.AssignmentRow{
					MemberID:  *slot.Occupant,
					TeamID:    t + 1,
					SlotIndex: s,
				})
			}
		}
	}
	return rows
}

// Labels returns team labels keyed by team id
func (g Grid) Labels() map[int]string {
	out := make(map[int]string, TeamCount)
	for _, t := range g.Teams {
		out[t.ID] = t.Label
	}
	return out
}

// BaselineIssue describes a persisted placement that could not be loaded
type BaselineIssue struct {
	MemberID models.MemberID `json:"member_id"`
	TeamID   int             `json:"team_id"`
	Slot     int             `json:"slot_index"`
	Reason   string          `json:"reason"`
}

// BuildGrid places each member at its stored position for variant.
// Out of range rows and rows colliding with an earlier member are dropped and reported.
func BuildGrid(members []models.Member, variant models.TimeVariant, labels map[int]string) (Grid, []BaselineIssue) {
	g := NewGrid()
	for id, label := range labels {
		if ValidTeam(id) && label != "" {
			g.Teams[id-1].Label = label
		}
	}

	sorted := make([]models.Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var issues []BaselineIssue
	for _, m := range sorted {
		pl, ok := m.Placements[variant]
		if !ok {
			continue
		}
		p := Position{TeamID: pl.TeamID, SlotIndex: pl.SlotIndex}
		if err := checkPosition(p); err != nil {
			issues = append(issues, BaselineIssue{MemberID: m.ID, TeamID: p.TeamID, Slot: p.SlotIndex, Reason: "position out of range"})
			continue
		}
		if holder, taken := g.At(p); taken {
			issues = append(issues, BaselineIssue{
				MemberID: m.ID,
				TeamID:   p.TeamID,
				Slot:     p.SlotIndex,
				Reason:   fmt.Sprintf("slot already held by member %d", holder),
			})
			continue
		}
		id := m.ID
		g.set(p, &id)
	}
	return g, issues
}
