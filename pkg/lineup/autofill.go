package lineup

import (
	"fmt"
	"math"
	"sort"

	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// UnfilledSlot records why a slot stayed empty after AutoFill
type UnfilledSlot struct {
	TeamID    int      `json:"team_id"`
	SlotIndex int      `json:"slot_index"`
	Reasons   []string `json:"reasons"`
}

// AutoFillResult summarizes an AutoFill run
type AutoFillResult struct {
	Placed       []models.AssignmentRow `json:"placed"`
	Unfilled     []UnfilledSlot         `json:"unfilled,omitempty"`
	BalanceScore float64                `json:"balance_score"`
}

// AutoFill fills empty slots of the active draft with unassigned eligible members,
// strongest first, each going to the weakest team that still has room.
func (c *Controller) AutoFill() (AutoFillResult, error) {
	v := c.Drafts.Active()
	g := c.active().Grid.Clone()
	placed := g.Occupants()

	var candidates []*models.Member
	onLeave := 0
	for id, m := range c.Roster {
		if _, ok := placed[id]; ok {
			continue
		}
		if c.Eligibility.Blocked(id, v) {
			onLeave++
			continue
		}
		candidates = append(candidates, m)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Strength != candidates[j].Strength {
			return candidates[i].Strength > candidates[j].Strength
		}
		return candidates[i].ID < candidates[j].ID
	})

	totals := c.teamStrength(&g)
	var result AutoFillResult
	for _, m := range candidates {
		best := -1
		for t := range g.Teams {
			if freeSlot(&g.Teams[t]) < 0 {
				continue
			}
			if best < 0 || totals[t] < totals[best] {
				best = t
			}
		}
		if best < 0 {
			break
		}
		slot := freeSlot(&g.Teams[best])
		id := m.ID
		g.set(Position{TeamID: best + 1, SlotIndex: slot}, &id)
		totals[best] += m.Strength
		result.Placed = append(result.Placed, models.AssignmentRow{MemberID: id, TeamID: best + 1, SlotIndex: slot})
	}

	for t := range g.Teams {
		for s, slot := range g.Teams[t].Slots {
			if !slot.Empty() {
				continue
			}
			var reasons []string
			if onLeave > 0 {
				reasons = append(reasons, fmt.Sprintf("%d members were on leave", onLeave))
			}
			reasons = append(reasons, "no unassigned members left")
			result.Unfilled = append(result.Unfilled, UnfilledSlot{TeamID: t + 1, SlotIndex: s, Reasons: reasons})
		}
	}

	result.BalanceScore = BalanceScore(totals[:])
	if len(result.Placed) == 0 {
		return result, nil
	}
	return result, c.commit(g)
}

func freeSlot(t *Team) int {
	for s, slot := range t.Slots {
		if slot.Empty() {
			return s
		}
	}
	return -1
}

func (c *Controller) teamStrength(g *Grid) [TeamCount]int64 {
	var totals [TeamCount]int64
	for t := range g.Teams {
		for _, slot := range g.Teams[t].Slots {
			if slot.Occupant == nil {
				continue
			}
			if m, ok := c.Roster[*slot.Occupant]; ok {
				totals[t] += m.Strength
			}
		}
	}
	return totals
}

// TeamStrength sums member strength per team of the active draft
func (c *Controller) TeamStrength() [TeamCount]int64 {
	return c.teamStrength(&c.active().Grid)
}

// BalanceScore returns a percentage (0-100) representing how evenly strength
// is spread across teams. 100% means every team has the same total.
func BalanceScore(totals []int64) float64 {
	if len(totals) == 0 {
		return 100.0
	}

	var sum float64
	for _, t := range totals {
		sum += float64(t)
	}
	if sum == 0 {
		return 100.0
	}

	mean := sum / float64(len(totals))
	var varianceSum float64
	for _, t := range totals {
		diff := float64(t) - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(totals)))

	score := (1.0 - (stdDev / mean)) * 100.0
	if score < 0 {
		return 0.0
	}
	return score
}
