package lineup

import (
	"fmt"
	"sort"

	"github.com/arnavshah/warplanner-api-go/pkg/models"
)

// CheckPayload reports every problem with an assignment payload without applying it.
// Blocked, when non-nil, marks members on leave for the payload's variant.
func CheckPayload(p models.AssignmentPayload, blocked func(models.MemberID) bool) models.ValidateResponse {
	var issues []models.ValidationIssue
	if !p.Variant.Valid() {
		issues = append(issues, models.ValidationIssue{
			Slot:    -1,
			Reasons: []string{fmt.Sprintf("unknown time variant %q", p.Variant)},
		})
	}

	seenMember := make(map[models.MemberID]Position)
	seenSlot := make(map[Position]models.MemberID)
	for _, row := range p.Assignments {
		pos := Position{TeamID: row.TeamID, SlotIndex: row.SlotIndex}
		var reasons []string
		if err := checkPosition(pos); err != nil {
			reasons = append(reasons, err.Error())
		}
		if prev, dup := seenMember[row.MemberID]; dup {
			reasons = append(reasons, fmt.Sprintf("member already placed in team %d slot %d", prev.TeamID, prev.SlotIndex))
		} else {
			seenMember[row.MemberID] = pos
		}
		if other, taken := seenSlot[pos]; taken {
			reasons = append(reasons, fmt.Sprintf("slot already holds member %d", other))
		} else {
			seenSlot[pos] = row.MemberID
		}
		if blocked != nil && blocked(row.MemberID) {
			reasons = append(reasons, "member is on leave")
		}
		if len(reasons) > 0 {
			issues = append(issues, models.ValidationIssue{
				MemberID: row.MemberID,
				TeamID:   row.TeamID,
				Slot:     row.SlotIndex,
				Reasons:  reasons,
			})
		}
	}

	for team := range p.TeamLabels {
		if !ValidTeam(team) {
			issues = append(issues, models.ValidationIssue{
				TeamID:  team,
				Slot:    -1,
				Reasons: []string{"label for unknown team"},
			})
		}
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].TeamID < issues[j].TeamID })
	return models.ValidateResponse{Valid: len(issues) == 0, Issues: issues}
}
